package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rhuss/gantry/pkg/debug"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. .env file (GANTRY_ENV_FILE or ./.env), never overriding the environment
//  3. YAML config file (explicit path, GANTRY_CONFIG env, ./gantry.yaml, /etc/gantry/gantry.yaml)
//  4. GANTRY_* environment variable overrides
//  5. File reference resolution (_file suffix)
//  6. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "loaded config file", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// Path returns the config file Load would read for configPath, or "" when
// none exists.
func Path(configPath string) string {
	return discoverConfigFile(configPath)
}

// loadDotEnv reads a .env file into the process environment. A missing
// file is not an error.
func loadDotEnv() error {
	path := os.Getenv("GANTRY_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. GANTRY_CONFIG environment variable
// 3. ./gantry.yaml in the current directory
// 4. /etc/gantry/gantry.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("GANTRY_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"gantry.yaml",
		"/etc/gantry/gantry.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// envBinding maps one GANTRY_* variable onto a config field.
type envBinding struct {
	name  string
	apply func(cfg *Config, v string) error
}

var envBindings = []envBinding{
	{"GANTRY_ADAPTER", func(c *Config, v string) error { c.Server.Adapter = v; return nil }},
	{"GANTRY_HOST", func(c *Config, v string) error { c.Server.Host = v; return nil }},
	{"GANTRY_PORT", intVar(func(c *Config) *int { return &c.Server.Port })},
	{"GANTRY_SHUTDOWN_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.ShutdownTimeout })},
	{"GANTRY_READ_HEADER_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.ReadHeaderTimeout })},
	{"GANTRY_MAX_BODY_SIZE", func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		c.Server.MaxBodySize = n
		return nil
	}},
	{"GANTRY_DEFERRED_LIMIT", intVar(func(c *Config) *int { return &c.Server.DeferredLimit })},
	{"GANTRY_DEFERRED_WAIT", durationVar(func(c *Config) *time.Duration { return &c.Server.DeferredWait })},

	{"GANTRY_PATH_PREFIX", func(c *Config, v string) error { c.App.PathPrefix = v; return nil }},
	{"GANTRY_PUBLIC_DIR", func(c *Config, v string) error { c.App.PublicDir = v; return nil }},
	{"GANTRY_STATIC", boolVar(func(c *Config) *bool { return &c.App.Static })},
	{"GANTRY_DEFERRED_PATTERN", func(c *Config, v string) error { c.App.DeferredPattern = v; return nil }},
	{"GANTRY_CONDITIONAL_GET", boolVar(func(c *Config) *bool { return &c.App.ConditionalGet })},
	{"GANTRY_CSRF_ENABLED", boolVar(func(c *Config) *bool { return &c.App.CSRF.Enabled })},
	{"GANTRY_CSRF_SECRET", func(c *Config, v string) error { c.App.CSRF.Secret = v; return nil }},

	{"GANTRY_SESSION_ENABLED", boolVar(func(c *Config) *bool { return &c.Session.Enabled })},
	{"GANTRY_SESSION_STORE", func(c *Config, v string) error { c.Session.Store = v; return nil }},
	{"GANTRY_SESSION_SECRET", func(c *Config, v string) error { c.Session.Secret = v; return nil }},
	{"GANTRY_SESSION_MAX_AGE", durationVar(func(c *Config) *time.Duration { return &c.Session.MaxAge })},
	{"GANTRY_SESSION_DSN", func(c *Config, v string) error { c.Session.Postgres.DSN = v; return nil }},

	{"GANTRY_LOG_LEVEL", func(c *Config, v string) error { c.Logging.Level = v; return nil }},
	{"GANTRY_LOG_FORMAT", func(c *Config, v string) error { c.Logging.Format = v; return nil }},
	{"GANTRY_DEBUG", func(c *Config, v string) error { c.Logging.Debug = v; return nil }},

	{"GANTRY_METRICS_ENABLED", boolVar(func(c *Config) *bool { return &c.Observability.Metrics.Enabled })},
	{"GANTRY_OTLP_ENDPOINT", func(c *Config, v string) error {
		c.Observability.Tracing.Endpoint = v
		c.Observability.Tracing.Enabled = true
		return nil
	}},
}

// applyEnvOverrides maps GANTRY_* environment variables onto config fields.
// Malformed numeric, boolean or duration values are reported together.
func applyEnvOverrides(cfg *Config) error {
	var errs []error
	for _, b := range envBindings {
		v, ok := os.LookupEnv(b.name)
		if !ok || v == "" {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", b.name, v, err))
		}
	}
	return errors.Join(errs...)
}

func intVar(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func boolVar(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func durationVar(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	refs := []struct {
		name  string
		file  string
		value *string
	}{
		{"app.csrf.secret_file", cfg.App.CSRF.SecretFile, &cfg.App.CSRF.Secret},
		{"session.secret_file", cfg.Session.SecretFile, &cfg.Session.Secret},
		{"session.postgres.dsn_file", cfg.Session.Postgres.DSNFile, &cfg.Session.Postgres.DSN},
	}

	for _, ref := range refs {
		if ref.file == "" || *ref.value != "" {
			continue
		}
		val, err := readSecretFile(ref.file)
		if err != nil {
			return fmt.Errorf("%s: %w", ref.name, err)
		}
		*ref.value = val
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
