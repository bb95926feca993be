package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Adapter == "" {
		errs = append(errs, fmt.Errorf("server.adapter is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}
	if c.Server.DeferredLimit <= 0 {
		errs = append(errs, fmt.Errorf("server.deferred_limit must be > 0, got %d", c.Server.DeferredLimit))
	}

	if p := c.App.PathPrefix; p != "" && !strings.HasPrefix(p, "/") {
		errs = append(errs, fmt.Errorf("app.path_prefix must start with \"/\", got %q", p))
	}
	if c.App.DeferredPattern != "" {
		if _, err := regexp.Compile(c.App.DeferredPattern); err != nil {
			errs = append(errs, fmt.Errorf("app.deferred_pattern: %w", err))
		}
	}
	if c.App.Static && c.App.PublicDir == "" {
		errs = append(errs, fmt.Errorf("app.public_dir is required when app.static is enabled"))
	}
	if c.App.CSRF.Enabled && c.App.CSRF.Secret == "" && c.App.CSRF.SecretFile == "" {
		errs = append(errs, fmt.Errorf("app.csrf.secret or app.csrf.secret_file is required when csrf is enabled"))
	}
	if c.App.CSRF.Enabled && !c.Session.Enabled {
		errs = append(errs, fmt.Errorf("app.csrf.enabled requires session.enabled: tokens are derived from the session id"))
	}

	if c.Session.Enabled {
		switch c.Session.Store {
		case "memory":
		case "cookie":
			if c.Session.Secret == "" && c.Session.SecretFile == "" {
				errs = append(errs, fmt.Errorf("session.secret or session.secret_file is required when session.store is \"cookie\""))
			}
		case "postgres":
			if c.Session.Postgres.DSN == "" && c.Session.Postgres.DSNFile == "" {
				errs = append(errs, fmt.Errorf("session.postgres.dsn or session.postgres.dsn_file is required when session.store is \"postgres\""))
			}
		default:
			errs = append(errs, fmt.Errorf("session.store must be \"memory\", \"postgres\", or \"cookie\", got %q", c.Session.Store))
		}
		if c.Session.MaxAge < 0 {
			errs = append(errs, fmt.Errorf("session.max_age must not be negative"))
		}
	}

	switch strings.ToUpper(c.Logging.Level) {
	case "", "TRACE", "DEBUG", "INFO", "WARN", "ERROR":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be TRACE, DEBUG, INFO, WARN, or ERROR, got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	if m := c.Observability.Metrics; m.Enabled && !strings.HasPrefix(m.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", m.Path))
	}
	if tr := c.Observability.Tracing; tr.Enabled && tr.Endpoint == "" {
		errs = append(errs, fmt.Errorf("observability.tracing.endpoint is required when tracing is enabled"))
	}

	return errors.Join(errs...)
}
