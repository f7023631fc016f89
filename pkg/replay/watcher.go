package replay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"mercator-hq/playback/pkg/intercept"
	"mercator-hq/playback/pkg/recording"
)

// WatcherConfig contains configuration for a Watcher.
type WatcherConfig struct {
	// Path is the snapshot file.
	Path string

	// DebounceInterval is the quiet period after the last file event before
	// the snapshot is reloaded.
	// Default: 100ms
	DebounceInterval time.Duration

	// Options configure every Engine the watcher builds.
	Options Options
}

// Watcher serves requests from the most recently loaded version of a
// snapshot file. A reload that fails keeps the previous Engine.
type Watcher struct {
	config  WatcherConfig
	current atomic.Pointer[Engine]
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewWatcher loads the snapshot at cfg.Path and returns a Watcher serving
// it. Call Watch to follow changes.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = 100 * time.Millisecond
	}
	logger := cfg.Options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		config: cfg,
		logger: logger.With("component", "replay.watcher", "path", cfg.Path),
	}
	if err := w.Reload(); err != nil {
		return nil, err
	}
	return w, nil
}

// Engine returns the current engine.
func (w *Watcher) Engine() *Engine {
	return w.current.Load()
}

// Reload loads the snapshot file and swaps engines.
func (w *Watcher) Reload() error {
	snap, err := recording.Load(w.config.Path)
	if err != nil {
		return err
	}
	engine, err := New(snap, w.config.Options)
	if err != nil {
		return err
	}
	w.current.Store(engine)
	return nil
}

// RoundTrip implements http.RoundTripper with the current engine.
func (w *Watcher) RoundTrip(req *http.Request) (*http.Response, error) {
	return w.Engine().RoundTrip(req)
}

// Transport returns a RoundTripper that replays through the current engine
// and passes misses to next.
func (w *Watcher) Transport(next http.RoundTripper) http.RoundTripper {
	return intercept.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return w.Engine().roundTrip(req, next)
	})
}

// Watch reloads the snapshot whenever its file changes. It blocks until ctx
// is cancelled.
//
// The parent directory is watched rather than the file, since snapshots are
// saved by renaming a temporary file over the old one.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.config.Path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	debounce := newDebouncer(w.config.DebounceInterval)
	defer debounce.stop()

	target := filepath.Clean(w.config.Path)
	w.logger.Info("snapshot watcher started",
		"debounce_ms", w.config.DebounceInterval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("snapshot watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.Debug("snapshot file event", "op", event.Op.String())
			debounce.trigger(func() {
				if err := w.Reload(); err != nil {
					w.logger.Error("snapshot reload failed, keeping previous recordings", "error", err)
					return
				}
				w.logger.Info("snapshot reloaded", "recordings", w.Engine().Store().Len())
			})

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("snapshot watcher error", "error", err)
		}
	}
}

// debouncer runs the most recent callback once events stop arriving for
// interval.
type debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, callback)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
