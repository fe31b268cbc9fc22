// Package kvstore provides the string key-value persistence the matcher
// stores its per-locale collections in.
//
// Values are opaque strings and writes overwrite the whole value. Backends:
//
//   - memory: in-process (go-cache), lost on restart
//   - bolt: single-file embedded B+ tree (bbolt)
//   - sqlite: single-file SQL database (modernc.org/sqlite, no cgo)
//   - redis: shared remote cache (go-redis)
//   - postgres: shared SQL database (pgx)
//
// Networked backends should be wrapped with WithTimeout so a stalled store
// cannot hang a chat turn.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Supported providers.
const (
	ProviderMemory   = "memory"
	ProviderBolt     = "bolt"
	ProviderSQLite   = "sqlite"
	ProviderRedis    = "redis"
	ProviderPostgres = "postgres"
)

var (
	// ErrUnknownProvider is returned by New for an unrecognized provider.
	ErrUnknownProvider = errors.New("unknown store provider")

	// ErrEmptyKey is returned when an operation is given an empty key.
	ErrEmptyKey = errors.New("key cannot be empty")
)

// Store is a string key-value store.
type Store interface {
	// Get returns the value for key. ok is false if the key does not exist.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend's resources.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Provider is one of memory, bolt, sqlite, redis, postgres.
	Provider string

	// Path is the database file for bolt and sqlite.
	Path string

	// URL is the connection string for redis and postgres.
	URL string

	// KeyPrefix namespaces keys in shared backends (redis).
	KeyPrefix string

	// Timeout bounds each operation. Zero disables the limit.
	Timeout time.Duration
}

// New opens the configured backend.
func New(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderMemory:
		s = NewMemoryStore()
	case ProviderBolt:
		s, err = NewBoltStore(cfg.Path)
	case ProviderSQLite:
		s, err = NewSQLiteStore(cfg.Path)
	case ProviderRedis:
		s, err = NewRedisStore(ctx, cfg.URL, cfg.KeyPrefix)
	case ProviderPostgres:
		s, err = NewPostgresStore(ctx, cfg.URL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Timeout > 0 {
		s = WithTimeout(s, cfg.Timeout)
	}
	return s, nil
}

func checkKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}
