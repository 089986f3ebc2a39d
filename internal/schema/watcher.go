package schema

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/juju/clock"
	"github.com/juju/retry"
)

// Synchronizing is what the watcher re-runs on template change.
type Synchronizing interface {
	Synchronize(ctx context.Context) (*Report, error)
}

// WatcherConfig tunes the template watcher. Zero values select the defaults.
type WatcherConfig struct {
	Debounce time.Duration
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
	Clock    clock.Clock
}

// Watcher re-synchronizes the schema whenever the template file changes.
type Watcher struct {
	path   string
	target Synchronizing
	cfg    WatcherConfig
	// synced, when set, receives the outcome of every resync.
	synced chan<- error
}

// NewWatcher returns a watcher of the template at path.
func NewWatcher(path string, target Synchronizing, cfg WatcherConfig) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 5
	}
	if cfg.Delay <= 0 {
		cfg.Delay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	return &Watcher{path: filepath.Clean(path), target: target, cfg: cfg}
}

// Run watches until ctx is done. Editors often replace the file instead of writing it, so the
// containing directory is watched and events are filtered by name.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create template watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	customLog.Infof("Schema: Watching template %s", w.path)

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			customLog.Infoln("Schema: Template watcher stopped.")
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			customLog.Debugf("Schema: Template event %s", event.Op)
			fire = w.cfg.Clock.After(w.cfg.Debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			customLog.Warnf("Schema: Template watcher error: %v", err)
		case <-fire:
			fire = nil
			err := w.resync(ctx)
			if w.synced != nil {
				w.synced <- err
			}
		}
	}
}

func (w *Watcher) resync(ctx context.Context) error {
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			_, err := w.target.Synchronize(ctx)
			return err
		},
		NotifyFunc: func(err error, attempt int) {
			customLog.Warnf("Schema: Resync attempt %d failed: %v", attempt, err)
		},
		Attempts:    w.cfg.Attempts,
		Delay:       w.cfg.Delay,
		MaxDelay:    w.cfg.MaxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       w.cfg.Clock,
		Stop:        ctx.Done(),
	})
	if err != nil {
		err = retry.LastError(err)
		customLog.Errorf("Schema: Giving up on template resync: %v", err)
		return err
	}
	customLog.Infoln("Schema: Template change applied.")
	return nil
}
