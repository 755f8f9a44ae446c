package mailbox

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// OutboxWatcher nudges the poller as soon as an outbox file appears, so
// delivery latency is not bound to the poll interval. The poller remains
// the authoritative delivery mechanism; the watcher only produces wake
// signals. Watching is best-effort: directories created after startup
// are picked up via create events, and any watch failure degrades to
// plain polling.
type OutboxWatcher struct {
	Layout Layout
	Logger Logger

	watcher *fsnotify.Watcher
	wake    chan struct{}
}

// NewOutboxWatcher starts watching the task tree rooted at layout.Base().
func NewOutboxWatcher(layout Layout, logger Logger) (*OutboxWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &OutboxWatcher{
		Layout:  layout,
		Logger:  logger,
		watcher: fw,
		wake:    make(chan struct{}, 1),
	}
	w.addTree(layout.Base())
	return w, nil
}

// Wake is the channel the poller selects on. It has capacity one; a
// pending wake coalesces with later ones.
func (w *OutboxWatcher) Wake() <-chan struct{} {
	return w.wake
}

// Run consumes filesystem events until ctx is cancelled.
func (w *OutboxWatcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				w.onCreate(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.Logger != nil {
				w.Logger.Printf("outbox watcher error: %v", err)
			}
		}
	}
}

func (w *OutboxWatcher) onCreate(path string) {
	// New directories must be watched so outbox entries created inside
	// them later are seen.
	if isDir(path) {
		w.addTree(path)
		return
	}
	if _, ok := w.Layout.ParseOutboxPath(path); !ok {
		return
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *OutboxWatcher) addTree(root string) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil && w.Logger != nil {
			w.Logger.Printf("failed to watch %s: %v", path, err)
		}
		return nil
	})
	if err != nil && w.Logger != nil {
		w.Logger.Printf("failed to walk %s for watching: %v", root, err)
	}
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
