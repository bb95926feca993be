package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate clears variables that would leak host settings into a test.
func isolate(t *testing.T) {
	t.Helper()
	for _, b := range envBindings {
		t.Setenv(b.name, "")
	}
	t.Setenv("GANTRY_CONFIG", "")
	t.Setenv("GANTRY_ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Adapter != "nethttp" {
		t.Errorf("default server.adapter = %q, want \"nethttp\"", cfg.Server.Adapter)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default server.host = %q, want \"0.0.0.0\"", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("default server.shutdown_timeout = %v, want 30s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.MaxBodySize != 10<<20 {
		t.Errorf("default server.max_body_size = %d, want 10MB", cfg.Server.MaxBodySize)
	}
	if !cfg.App.Static || cfg.App.PublicDir != "public" {
		t.Errorf("default static = %v in %q, want enabled in \"public\"", cfg.App.Static, cfg.App.PublicDir)
	}
	if cfg.App.CSRF.Enabled {
		t.Error("csrf should be disabled by default")
	}
	if cfg.Session.Store != "memory" || cfg.Session.CookieName != "_session_id" {
		t.Errorf("default session = %q/%q", cfg.Session.Store, cfg.Session.CookieName)
	}
	if !cfg.Observability.Metrics.Enabled || cfg.Observability.Metrics.Path != "/metrics" {
		t.Errorf("default metrics = %+v", cfg.Observability.Metrics)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	isolate(t)

	yamlContent := `
server:
  adapter: fasthttp
  host: 127.0.0.1
  port: 9090
  shutdown_timeout: 5s
  max_body_size: 1024
  deferred_limit: 4
  deferred_wait: 250ms
app:
  path_prefix: /app
  public_dir: /srv/public
  deferred_pattern: ^/uploads
  conditional_get: false
  csrf:
    enabled: true
    secret: s3cret
session:
  store: cookie
  cookie_name: sid
  max_age: 1h
  secure: true
  secret: cookie-key
logging:
  level: debug
  format: json
  debug: csrf,session
observability:
  metrics:
    path: /internal/metrics
  tracing:
    enabled: true
    endpoint: otel:4317
    insecure: true
    headers:
      x-tenant: acme
`
	cfg, err := Load(writeTemp(t, "gantry-*.yaml", yamlContent))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Adapter != "fasthttp" || cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9090 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("server.shutdown_timeout = %v, want 5s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.DeferredWait != 250*time.Millisecond {
		t.Errorf("server.deferred_wait = %v, want 250ms", cfg.Server.DeferredWait)
	}
	if cfg.App.PathPrefix != "/app" || cfg.App.DeferredPattern != "^/uploads" {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.App.ConditionalGet {
		t.Error("app.conditional_get should be false")
	}
	if !cfg.App.Static {
		t.Error("app.static should keep its default when absent from YAML")
	}
	if !cfg.App.CSRF.Enabled || cfg.App.CSRF.Secret != "s3cret" {
		t.Errorf("app.csrf = %+v", cfg.App.CSRF)
	}
	if cfg.Session.Store != "cookie" || cfg.Session.CookieName != "sid" || cfg.Session.MaxAge != time.Hour {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Debug != "csrf,session" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Observability.Metrics.Path != "/internal/metrics" {
		t.Errorf("metrics.path = %q", cfg.Observability.Metrics.Path)
	}
	if tr := cfg.Observability.Tracing; !tr.Enabled || tr.Endpoint != "otel:4317" || tr.Headers["x-tenant"] != "acme" {
		t.Errorf("tracing = %+v", tr)
	}
}

func TestLoadDiscoversConfigFromEnv(t *testing.T) {
	isolate(t)
	path := writeTemp(t, "gantry-*.yaml", "server:\n  port: 7070\n")
	t.Setenv("GANTRY_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("server.port = %d, want 7070", cfg.Server.Port)
	}
	if Path("") != path {
		t.Errorf("Path() = %q, want %q", Path(""), path)
	}
}

func TestLoadWithoutConfigFile(t *testing.T) {
	isolate(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want default 8080", cfg.Server.Port)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	isolate(t)
	path := writeTemp(t, "gantry-*.yaml", "server:\n  port: 9090\n  adapter: fcgi\n")

	t.Setenv("GANTRY_PORT", "9999")
	t.Setenv("GANTRY_ADAPTER", "thin")
	t.Setenv("GANTRY_STATIC", "false")
	t.Setenv("GANTRY_SESSION_MAX_AGE", "90m")
	t.Setenv("GANTRY_READ_HEADER_TIMEOUT", "3s")
	t.Setenv("GANTRY_OTLP_ENDPOINT", "collector:4317")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("server.port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Server.Adapter != "thin" {
		t.Errorf("server.adapter = %q, want \"thin\"", cfg.Server.Adapter)
	}
	if cfg.App.Static {
		t.Error("GANTRY_STATIC=false should disable static files")
	}
	if cfg.Server.ReadHeaderTimeout != 3*time.Second {
		t.Errorf("server.read_header_timeout = %v, want 3s", cfg.Server.ReadHeaderTimeout)
	}
	if cfg.Session.MaxAge != 90*time.Minute {
		t.Errorf("session.max_age = %v, want 90m", cfg.Session.MaxAge)
	}
	if !cfg.Observability.Tracing.Enabled || cfg.Observability.Tracing.Endpoint != "collector:4317" {
		t.Errorf("tracing = %+v", cfg.Observability.Tracing)
	}
}

func TestEnvOverrideRejectsMalformedValues(t *testing.T) {
	isolate(t)
	t.Chdir(t.TempDir())
	t.Setenv("GANTRY_PORT", "eighty")
	t.Setenv("GANTRY_DEFERRED_WAIT", "soon")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error for malformed env values")
	}
	for _, want := range []string{"GANTRY_PORT", "GANTRY_DEFERRED_WAIT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}

func TestDotEnvFile(t *testing.T) {
	isolate(t)
	t.Chdir(t.TempDir())

	envFile := writeTemp(t, "gantry-*.env", "GANTRY_HOST=10.0.0.1\nGANTRY_PORT=6060\n")
	t.Setenv("GANTRY_ENV_FILE", envFile)
	// Variables already in the environment win over the file.
	t.Setenv("GANTRY_PORT", "6161")
	// godotenv sets variables directly; make sure the test restores them.
	t.Setenv("GANTRY_HOST", "")
	os.Unsetenv("GANTRY_HOST")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Host != "10.0.0.1" {
		t.Errorf("server.host = %q, want value from .env", cfg.Server.Host)
	}
	if cfg.Server.Port != 6161 {
		t.Errorf("server.port = %d, environment should win over .env", cfg.Server.Port)
	}
}

func TestFileReferences(t *testing.T) {
	isolate(t)
	csrfFile := writeTemp(t, "csrf-*", "  csrf-from-file\n")
	dsnFile := writeTemp(t, "dsn-*", "postgres://u:p@db/gantry\n")

	yamlContent := "app:\n  csrf:\n    enabled: true\n    secret_file: " + csrfFile + "\n" +
		"session:\n  store: postgres\n  postgres:\n    dsn_file: " + dsnFile + "\n"

	cfg, err := Load(writeTemp(t, "gantry-*.yaml", yamlContent))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.App.CSRF.Secret != "csrf-from-file" {
		t.Errorf("csrf secret = %q, want trimmed file content", cfg.App.CSRF.Secret)
	}
	if cfg.Session.Postgres.DSN != "postgres://u:p@db/gantry" {
		t.Errorf("dsn = %q", cfg.Session.Postgres.DSN)
	}
}

func TestFileReferenceExplicitValueWins(t *testing.T) {
	cfg := Defaults()
	cfg.Session.Secret = "inline"
	cfg.Session.SecretFile = "/does/not/exist"
	if err := resolveFileReferences(&cfg); err != nil {
		t.Fatalf("resolveFileReferences() error: %v", err)
	}
	if cfg.Session.Secret != "inline" {
		t.Errorf("secret = %q, want inline value", cfg.Session.Secret)
	}
}

func TestFileReferenceMissingFile(t *testing.T) {
	cfg := Defaults()
	cfg.App.CSRF.SecretFile = filepath.Join(t.TempDir(), "missing")
	err := resolveFileReferences(&cfg)
	if err == nil || !strings.Contains(err.Error(), "app.csrf.secret_file") {
		t.Errorf("error = %v, want mention of app.csrf.secret_file", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"empty adapter", func(c *Config) { c.Server.Adapter = "" }, "server.adapter"},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"body size", func(c *Config) { c.Server.MaxBodySize = 0 }, "server.max_body_size"},
		{"deferred limit", func(c *Config) { c.Server.DeferredLimit = 0 }, "server.deferred_limit"},
		{"relative prefix", func(c *Config) { c.App.PathPrefix = "app" }, "app.path_prefix"},
		{"bad pattern", func(c *Config) { c.App.DeferredPattern = "(" }, "app.deferred_pattern"},
		{"static without dir", func(c *Config) { c.App.PublicDir = "" }, "app.public_dir"},
		{"csrf without secret", func(c *Config) { c.App.CSRF.Enabled = true }, "app.csrf.secret"},
		{"csrf without sessions", func(c *Config) {
			c.App.CSRF = CSRFConfig{Enabled: true, Secret: "s"}
			c.Session.Enabled = false
		}, "session.enabled"},
		{"unknown store", func(c *Config) { c.Session.Store = "redis" }, "session.store"},
		{"cookie without secret", func(c *Config) { c.Session.Store = "cookie" }, "session.secret"},
		{"postgres without dsn", func(c *Config) { c.Session.Store = "postgres" }, "session.postgres.dsn"},
		{"log level", func(c *Config) { c.Logging.Level = "LOUD" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"metrics path", func(c *Config) { c.Observability.Metrics.Path = "metrics" }, "observability.metrics.path"},
		{"tracing endpoint", func(c *Config) { c.Observability.Tracing.Enabled = true }, "observability.tracing.endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error mentioning %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = -1
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "server.port") || !strings.Contains(err.Error(), "logging.format") {
		t.Errorf("error should report every problem, got %q", err)
	}
}

func TestValidateSkipsDisabledSession(t *testing.T) {
	cfg := Defaults()
	cfg.Session.Enabled = false
	cfg.Session.Store = "bogus"
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled session should not be validated, got %v", err)
	}
}

func writeTemp(t *testing.T, pattern, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), pattern)
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		t.Fatalf("writing temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("closing temp file: %v", err)
	}
	return f.Name()
}
