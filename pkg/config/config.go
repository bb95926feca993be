// Package config provides unified configuration for the gantry server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. Optional .env file (variables already set in the environment win)
//  3. YAML config file (discovered or explicitly specified)
//  4. Environment variable overrides (GANTRY_ prefix)
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import "time"

// Config holds all configuration for the gantry server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	App           AppConfig           `yaml:"app"`
	Session       SessionConfig       `yaml:"session"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig selects the adapter backend and its listener settings.
type ServerConfig struct {
	Adapter           string        `yaml:"adapter"`             // registry id, default: "nethttp"
	Host              string        `yaml:"host"`                // default: "0.0.0.0"
	Port              int           `yaml:"port"`                // default: 8080
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`    // default: 30s
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"` // default: 10s
	MaxBodySize       int64         `yaml:"max_body_size"`       // default: 10MB
	DeferredLimit     int           `yaml:"deferred_limit"`      // default: 16
	DeferredWait      time.Duration `yaml:"deferred_wait"`       // default: 5s
}

// AppConfig controls which middleware the chain is built from.
type AppConfig struct {
	PathPrefix      string     `yaml:"path_prefix"`
	PublicDir       string     `yaml:"public_dir"` // default: "public"
	Static          bool       `yaml:"static"`     // default: true
	DeferredPattern string     `yaml:"deferred_pattern"`
	ConditionalGet  bool       `yaml:"conditional_get"` // default: true
	CSRF            CSRFConfig `yaml:"csrf"`
}

// CSRFConfig holds request forgery protection settings.
type CSRFConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"` // _file variant for secret
}

// SessionConfig holds session cookie and store settings.
type SessionConfig struct {
	Enabled    bool           `yaml:"enabled"`     // default: true
	Store      string         `yaml:"store"`       // "memory", "postgres" or "cookie", default: "memory"
	CookieName string         `yaml:"cookie_name"` // default: "_session_id"
	MaxAge     time.Duration  `yaml:"max_age"`     // 0 = browser session
	Secure     bool           `yaml:"secure"`
	Secret     string         `yaml:"secret"`      // signing key for the cookie store
	SecretFile string         `yaml:"secret_file"` // _file variant for secret
	MaxSize    int            `yaml:"max_size"`    // for memory store, default: 10000
	Postgres   PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // DEBUG, INFO, WARN, ERROR or TRACE, default: INFO
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// TracingConfig holds OpenTelemetry exporter settings.
type TracingConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Endpoint    string            `yaml:"endpoint"` // OTLP gRPC endpoint, e.g. "localhost:4317"
	Insecure    bool              `yaml:"insecure"`
	ServiceName string            `yaml:"service_name"` // default: "gantry"
	Headers     map[string]string `yaml:"headers"`
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Adapter:           "nethttp",
			Host:              "0.0.0.0",
			Port:              8080,
			ShutdownTimeout:   30 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			MaxBodySize:       10 << 20,
			DeferredLimit:     16,
			DeferredWait:      5 * time.Second,
		},
		App: AppConfig{
			PublicDir:      "public",
			Static:         true,
			ConditionalGet: true,
		},
		Session: SessionConfig{
			Enabled:    true,
			Store:      "memory",
			CookieName: "_session_id",
			MaxSize:    10000,
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
			Tracing: TracingConfig{
				ServiceName: "gantry",
			},
		},
	}
}
