package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses bursts of file events into one reload.
const DefaultDebounce = time.Second

// Watcher reports changes to a single config file.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a watcher for path. A debounce of 0 uses
// DefaultDebounce.
func NewWatcher(path string, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: path, debounce: debounce, logger: logger}
}

// Start begins watching and returns a channel that receives one value per
// debounced change. The channel is closed when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) (<-chan struct{}, error) {
	target, err := filepath.Abs(w.path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors often write a temp file and rename it
	// over the original, which drops a watch on the file itself.
	if err := fw.Add(filepath.Dir(target)); err != nil {
		fw.Close()
		return nil, err
	}

	w.logger.Info("config watcher started", "config_path", target)

	changes := make(chan struct{}, 1)
	go w.loop(ctx, fw, target, changes)
	return changes, nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, target string, changes chan struct{}) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		fw.Close()
		close(changes)
	}()

	fire := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || name != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("config file event", "event", event.Op.String(), "file", event.Name)

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			select {
			case changes <- struct{}{}:
			default:
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)

		case <-ctx.Done():
			w.logger.Info("config watcher stopped")
			return
		}
	}
}
