// Package chatmemory persists what the assistant has learned: per-locale
// conversation history and learned responses, stored as JSON arrays in a
// key-value store.
package chatmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/chatmatch/internal/kvstore"
	"github.com/fyrsmithlabs/chatmatch/internal/logging"
	"go.uber.org/zap"
)

const (
	conversationsKeyPrefix = "conversations_"
	learnedKeyPrefix       = "learned_responses_"
)

// ConversationsKey returns the storage key for a locale's history.
func ConversationsKey(locale string) string { return conversationsKeyPrefix + locale }

// LearnedKey returns the storage key for a locale's learned responses.
func LearnedKey(locale string) string { return learnedKeyPrefix + locale }

// Store reads and writes learned data for each locale.
//
// Reads never fail: a missing, unreadable or corrupt value is logged and
// treated as empty, so a broken store degrades the assistant to static
// answers instead of breaking it. Writes return errors.
//
// Store does not serialize read-modify-write cycles; callers hold a
// per-locale lock around them.
type Store struct {
	kv            kvstore.Store
	defaultLocale string
	logger        *logging.Logger
	onReadError   func(key string, err error)
}

// Option configures a Store.
type Option func(*Store)

// WithReadErrorHook registers fn to be called for every swallowed read
// failure (backend error or corrupt value).
func WithReadErrorHook(fn func(key string, err error)) Option {
	return func(s *Store) { s.onReadError = fn }
}

// NewStore wraps kv. Empty locales map to defaultLocale.
func NewStore(kv kvstore.Store, defaultLocale string, logger *logging.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	if defaultLocale == "" {
		defaultLocale = "en"
	}
	s := &Store{kv: kv, defaultLocale: defaultLocale, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) locale(l string) string {
	l = strings.TrimSpace(l)
	if l == "" {
		return s.defaultLocale
	}
	return l
}

// Learned returns the learned responses for locale.
func (s *Store) Learned(ctx context.Context, locale string) []LearnedResponse {
	return readList[LearnedResponse](ctx, s, LearnedKey(s.locale(locale)))
}

// SetLearned replaces the learned responses for locale.
func (s *Store) SetLearned(ctx context.Context, locale string, records []LearnedResponse) error {
	if records == nil {
		records = []LearnedResponse{}
	}
	return s.write(ctx, LearnedKey(s.locale(locale)), records)
}

// Conversations returns the history for locale, oldest first.
func (s *Store) Conversations(ctx context.Context, locale string) []ConversationTurn {
	return readList[ConversationTurn](ctx, s, ConversationsKey(s.locale(locale)))
}

// AppendConversation appends turn to the history and keeps the newest
// MaxHistory turns.
func (s *Store) AppendConversation(ctx context.Context, locale string, turn ConversationTurn) error {
	locale = s.locale(locale)
	turns := append(s.Conversations(ctx, locale), turn)
	if len(turns) > MaxHistory {
		turns = turns[len(turns)-MaxHistory:]
	}
	return s.write(ctx, ConversationsKey(locale), turns)
}

// Reset deletes both collections for locale. Resetting an empty locale is
// not an error.
func (s *Store) Reset(ctx context.Context, locale string) error {
	locale = s.locale(locale)
	if err := s.kv.Delete(ctx, ConversationsKey(locale)); err != nil {
		return fmt.Errorf("deleting conversations: %w", err)
	}
	if err := s.kv.Delete(ctx, LearnedKey(locale)); err != nil {
		return fmt.Errorf("deleting learned responses: %w", err)
	}
	return nil
}

// readList decodes the JSON array stored under key. It never returns nil.
func readList[T any](ctx context.Context, s *Store, key string) []T {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.Warn(ctx, "store read failed, using empty value", zap.String("key", key), zap.Error(err))
		s.readFailed(key, err)
		return []T{}
	}
	if !ok || raw == "" {
		return []T{}
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.logger.Warn(ctx, "stored value is corrupt, using empty value", zap.String("key", key), zap.Error(err))
		s.readFailed(key, err)
		return []T{}
	}
	if out == nil {
		out = []T{}
	}
	return out
}

func (s *Store) readFailed(key string, err error) {
	if s.onReadError != nil {
		s.onReadError(key, err)
	}
}

func (s *Store) write(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, string(b)); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}
