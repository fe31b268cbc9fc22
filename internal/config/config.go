// Package config loads chatmatch configuration from an optional YAML file
// and environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete chatmatch configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Store         StoreConfig         `koanf:"store"`
	Matcher       MatcherConfig       `koanf:"matcher"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
	Events        EventsConfig        `koanf:"events"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// RateLimit is chat requests per second per client; 0 disables.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
	BodyLimit string  `koanf:"body_limit"`
}

// StoreConfig selects the key-value backend.
type StoreConfig struct {
	Provider  string   `koanf:"provider"` // memory, bolt, sqlite, redis, postgres
	Path      string   `koanf:"path"`
	URL       Secret   `koanf:"url"`
	KeyPrefix string   `koanf:"key_prefix"`
	Timeout   Duration `koanf:"timeout"`
}

// MatcherConfig holds response matching settings.
type MatcherConfig struct {
	// TaxonomyFile overrides the built-in keyword taxonomy (.yaml or .toml).
	TaxonomyFile  string `koanf:"taxonomy_file"`
	WatchTaxonomy bool   `koanf:"watch_taxonomy"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level    string `koanf:"level"`
	Format   string `koanf:"format"`
	OTEL     bool   `koanf:"otel"`
	Sampling bool   `koanf:"sampling"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	Endpoint        string `koanf:"endpoint"`
	Insecure        bool   `koanf:"insecure"`
}

// EventsConfig holds learning event publishing settings.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

var validProviders = map[string]bool{
	"memory": true, "bolt": true, "sqlite": true, "redis": true, "postgres": true,
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit cannot be negative"))
	}

	provider := strings.ToLower(c.Store.Provider)
	if !validProviders[provider] {
		errs = append(errs, fmt.Errorf("store.provider %q is not supported", c.Store.Provider))
	}
	switch provider {
	case "bolt", "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("store.path is required for %s", provider))
		}
	case "redis", "postgres":
		if !c.Store.URL.IsSet() {
			errs = append(errs, fmt.Errorf("store.url is required for %s", provider))
		}
	}

	if c.Events.Enabled && c.Events.URL == "" {
		errs = append(errs, fmt.Errorf("events.url is required when events are enabled"))
	}
	if c.Observability.EnableTelemetry && c.Observability.Endpoint == "" {
		errs = append(errs, fmt.Errorf("observability.endpoint is required when telemetry is enabled"))
	}

	return errors.Join(errs...)
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = 10
	}
	if cfg.Server.BodyLimit == "" {
		cfg.Server.BodyLimit = "64K"
	}

	if cfg.Store.Provider == "" {
		cfg.Store.Provider = "memory"
	}
	if cfg.Store.KeyPrefix == "" {
		cfg.Store.KeyPrefix = "chatmatch:"
	}
	if cfg.Store.Timeout == 0 {
		cfg.Store.Timeout = Duration(2 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "chatmatch"
	}
	if cfg.Observability.Endpoint == "" {
		cfg.Observability.Endpoint = "localhost:4317"
	}

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "chatmatch"
	}
}
