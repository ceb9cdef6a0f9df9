package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher loads files dropped into a directory as workspace tables.
type Watcher struct {
	ws       *Workspace
	fsw      *fsnotify.Watcher
	dir      string
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher starts watching dir for loadable files. The caller must run
// Run to pump events and should cancel its context to stop.
func NewWatcher(ws *Workspace, dir string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &Watcher{
		ws:       ws,
		fsw:      fsw,
		dir:      dir,
		debounce: 100 * time.Millisecond,
		logger:   logger,
	}, nil
}

// Run pumps filesystem events until the context is cancelled. Writes are
// debounced per burst so a file still being copied in loads once, after the
// last write settles.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !Loadable(event.Name) {
				continue
			}
			path := event.Name
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				w.load(path)
			})

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) load(path string) {
	res, err := w.ws.LoadFile(context.Background(), path, LoadOptions{})
	if err != nil {
		w.logger.Error("failed to load dropped file", "file", path, "error", err)
		return
	}
	w.logger.Info("dropped file loaded", "file", path, "table", res.Table, "role", res.Role)
}
