package http

import (
	"log/slog"
	"net/http"

	"github.com/rhuss/gantry/pkg/transport"
)

// Adapter bridges net/http to a transport.Handler chain. It builds the
// environment record from the request, runs the chain and writes the
// response back.
type Adapter struct {
	app    transport.Handler
	config Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	// MaxBodySize limits the request body. Zero disables the limit.
	MaxBodySize int64
	Logger      *slog.Logger
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
		Logger:      slog.Default(),
	}
}

// NewAdapter creates an HTTP adapter serving app.
func NewAdapter(app transport.Handler, cfg Config) *Adapter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Adapter{app: app, config: cfg}
}

// ServeHTTP implements http.Handler.
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if a.config.MaxBodySize > 0 && r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	}
	env := RequestEnv(r)

	resp, err := a.app.Handle(r.Context(), env)
	if err != nil {
		// The chain normally ends in transport.Application, which never
		// returns an error. Bare chains still get a response.
		a.config.Logger.Error("unhandled chain error",
			slog.String("path", env.Path()),
			slog.String("error", err.Error()),
		)
		resp = transport.ErrorResponse(err)
	}
	if resp == nil {
		resp = transport.TextResponse(http.StatusInternalServerError, "handler returned no response")
	}
	if err := resp.Validate(); err != nil {
		resp = transport.ErrorResponse(err)
	}

	if err := WriteResponse(w, resp); err != nil {
		a.config.Logger.Debug("response write aborted",
			slog.String("path", env.Path()),
			slog.String("request_id", env.RequestID()),
			slog.String("error", err.Error()),
		)
	}
}
