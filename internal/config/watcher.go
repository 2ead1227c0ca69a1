package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long config.yaml must stay quiet before a reload is
// reported.
const DefaultSettle = 100 * time.Millisecond

// ReloadEvent reports that config.yaml settled after one or more changes.
type ReloadEvent struct {
	Path    string
	Op      fsnotify.Op
	Changes int
}

// Watcher reports changes to config.yaml. The home directory is watched
// rather than the file so editors that replace the file are still seen.
type Watcher struct {
	homeDir string
	settle  time.Duration
	logger  *slog.Logger
	events  chan ReloadEvent
}

func NewWatcher(homeDir string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		homeDir: homeDir,
		settle:  DefaultSettle,
		logger:  logger,
		events:  make(chan ReloadEvent, 1),
	}
}

func (w *Watcher) Events() <-chan ReloadEvent {
	return w.events
}

// Start begins watching until ctx is done, then closes Events. A burst of
// writes yields one event.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.homeDir); err != nil {
		fsw.Close()
		return err
	}
	go w.loop(ctx, fsw, filepath.Clean(ConfigPath(w.homeDir)))
	return nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, target string) {
	defer fsw.Close()
	defer close(w.events)

	timer := time.NewTimer(w.settle)
	if !timer.Stop() {
		<-timer.C
	}
	var pending ReloadEvent

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			pending.Path = ev.Name
			pending.Op |= ev.Op
			pending.Changes++
			timer.Reset(w.settle)
		case <-timer.C:
			if pending.Changes == 0 {
				continue
			}
			w.logger.Info("config file changed", "path", pending.Path, "op", pending.Op.String(), "changes", pending.Changes)
			select {
			case w.events <- pending:
			default:
				// A reload is already queued; it will read the latest file.
			}
			pending = ReloadEvent{}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}
