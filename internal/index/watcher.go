package index

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"briefsmith/internal/logging"
)

// Watcher marks the index cache stale whenever a corpus document changes.
// It never triggers a rebuild itself; the next GetOrLoad after an explicit
// Invalidate+rebuild picks up the new generation.
type Watcher struct {
	fs   *fsnotify.Watcher
	done chan struct{}
}

// WatchCorpus starts watching corpusDir for changes to supported documents
// and invalidates the cache when one occurs.
func WatchCorpus(corpusDir string, cache *Cache) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create corpus watcher: %w", err)
	}
	if err := fsw.Add(corpusDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", corpusDir, err)
	}

	w := &Watcher{fs: fsw, done: make(chan struct{})}
	log := logging.Get(logging.CategoryIndex)

	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				ext := strings.ToLower(filepath.Ext(event.Name))
				if ext != ".md" && ext != ".txt" {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					log.Info("Corpus change detected (%s), invalidating index cache", event.Name)
					cache.Invalidate()
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				log.Warn("Corpus watcher error: %v", err)
			}
		}
	}()

	return w, nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	err := w.fs.Close()
	<-w.done
	return err
}
