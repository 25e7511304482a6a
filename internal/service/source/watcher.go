package source

import (
	"context"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zhouzirui/jr-studio/backend/internal/service/reader"
)

// defaultQuietPeriod 文件在最后一次 Create/Write 之后需要静止的时间
const defaultQuietPeriod = 500 * time.Millisecond

// Watcher feeds files created in a directory into a Registry. A file is read
// only after it has stopped changing for the quiet period.
type Watcher struct {
	watcher  *fsnotify.Watcher
	registry *Registry
	dir      string
	quiet    time.Duration
}

// NewWatcher starts watching dir. Call Run to process events.
func NewWatcher(registry *Registry, dir string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{watcher: w, registry: registry, dir: dir, quiet: defaultQuietPeriod}, nil
}

// Run blocks until ctx is done or the watcher is closed. added, when not nil,
// receives the outcome of every batch the watcher loads.
func (w *Watcher) Run(ctx context.Context, added chan<- BatchResult) {
	defer w.watcher.Close()

	tick := w.quiet / 4
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	// path -> time of the last Create/Write
	pending := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.track(event, pending)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[source] watcher error: %v", err)
		case now := <-ticker.C:
			w.flush(ctx, now, pending, added)
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) track(event fsnotify.Event, pending map[string]time.Time) {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}

	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if w.registry.HasFile(filepath.Base(event.Name)) {
			log.Printf("[source] ignoring %s on %s: loaded sources are immutable", event.Op, event.Name)
			return
		}
		pending[event.Name] = time.Now()
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		delete(pending, event.Name)
		log.Printf("[source] ignoring %s on %s: loaded sources are immutable", event.Op, event.Name)
	}
}

// flush loads every pending path that has been quiet long enough, in name order.
func (w *Watcher) flush(ctx context.Context, now time.Time, pending map[string]time.Time, added chan<- BatchResult) {
	var ready []string
	for path, last := range pending {
		if now.Sub(last) >= w.quiet {
			ready = append(ready, path)
		}
	}
	if len(ready) == 0 {
		return
	}
	sort.Strings(ready)

	files := make([]reader.File, 0, len(ready))
	for _, path := range ready {
		delete(pending, path)
		if w.registry.HasFile(filepath.Base(path)) {
			continue
		}
		f, err := reader.FromPath(path)
		if err != nil {
			// directories and files that vanished before we got to them
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return
	}

	result, err := w.registry.AddBatch(ctx, files)
	if err != nil {
		log.Printf("[source] failed to load %d watched files: %v", len(files), err)
		return
	}
	if added != nil {
		select {
		case added <- result:
		case <-ctx.Done():
		}
	}
}
