package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rhuss/gantry/pkg/config"
)

// Supervisor runs an App and, in watch mode, rebuilds it whenever the
// config file changes. A config that fails to load or validate is logged
// and the running server is kept.
type Supervisor struct {
	// ConfigPath is passed to config.Load.
	ConfigPath string

	// Override adjusts every loaded config, e.g. with command line flags.
	Override func(*config.Config)

	// Options are applied to every App the supervisor builds.
	Options []Option

	Logger   *slog.Logger
	Debounce time.Duration
}

// Load reads the config and applies Override.
func (s *Supervisor) Load() (*config.Config, error) {
	cfg, err := config.Load(s.ConfigPath)
	if err != nil {
		return nil, err
	}
	if s.Override != nil {
		s.Override(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config validation: %w", err)
		}
	}
	return cfg, nil
}

func (s *Supervisor) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Run serves until ctx is cancelled or the adapter fails.
func (s *Supervisor) Run(ctx context.Context, watch bool) error {
	cfg, err := s.Load()
	if err != nil {
		return err
	}

	var changes <-chan struct{}
	if watch {
		path := config.Path(s.ConfigPath)
		if path == "" {
			return errors.New("watch mode needs a config file")
		}
		watchCtx, stop := context.WithCancel(ctx)
		defer stop()
		changes, err = NewWatcher(path, s.Debounce, s.logger()).Start(watchCtx)
		if err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
	}

	a, err := s.build(ctx, cfg)
	if err != nil {
		return err
	}
	for {
		next, err := s.serve(ctx, a, changes)
		if next == nil || err != nil {
			return err
		}
		s.logger().Info("restarting with reloaded config", "adapter", next.Config().Server.Adapter)
		a = next
	}
}

func (s *Supervisor) build(ctx context.Context, cfg *config.Config) (*App, error) {
	opts := append([]Option{WithLogger(s.logger())}, s.Options...)
	return New(ctx, cfg, opts...)
}

// serve runs one App generation. The replacement is built while a keeps
// serving, so a reload that can not load its config or open its session
// store leaves a running. serve returns the replacement App, or nil once
// serving is over.
func (s *Supervisor) serve(ctx context.Context, a *App, changes <-chan struct{}) (*App, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(runCtx) }()

	var next *App
wait:
	for {
		select {
		case runErr := <-done:
			return nil, errors.Join(runErr, a.Close(ctx))
		case <-ctx.Done():
			break wait
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			reloaded, err := s.Load()
			if err != nil {
				s.logger().Error("config reload failed, keeping current config", "error", err)
				continue
			}
			built, err := s.build(ctx, reloaded)
			if err != nil {
				s.logger().Error("rebuilding app failed, keeping current server", "error", err)
				continue
			}
			next = built
			break wait
		}
	}

	cancel()
	if err := errors.Join(<-done, a.Close(ctx)); err != nil {
		if next != nil {
			next.Close(ctx)
		}
		return nil, err
	}
	return next, nil
}
