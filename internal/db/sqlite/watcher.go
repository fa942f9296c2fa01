package sqlite

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// StaleWatcher complements DetectStale's on-demand mtime poll with a
// real-time fsnotify watch: the moment a referenced file changes, its
// observations flip is_stale without waiting for the next maintenance
// sweep. The poll remains the source of truth; this only shortens the gap.
type StaleWatcher struct {
	consolidation *ConsolidationStore
	watcher       *fsnotify.Watcher

	mu        sync.Mutex
	pathToObs map[string][]int64
}

// NewStaleWatcher opens an fsnotify watcher. Callers add paths via Watch
// and must call Close when done.
func NewStaleWatcher(consolidation *ConsolidationStore) (*StaleWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &StaleWatcher{consolidation: consolidation, watcher: w, pathToObs: make(map[string][]int64)}, nil
}

// Watch registers path as a dependency of observationID. Re-registering the
// same path appends another observation id rather than replacing it.
// Safe to call concurrently with Run's event loop.
func (w *StaleWatcher) Watch(path string, observationID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.pathToObs[path]; !ok {
		if err := w.watcher.Add(path); err != nil {
			return err
		}
	}
	w.pathToObs[path] = append(w.pathToObs[path], observationID)
	return nil
}

// Run processes fsnotify events until ctx is canceled, marking affected
// observations stale on write or remove events.
func (w *StaleWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = w.watcher.Close()
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			ids := append([]int64(nil), w.pathToObs[ev.Name]...)
			w.mu.Unlock()
			if len(ids) == 0 {
				continue
			}
			markCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := w.consolidation.MarkStale(markCtx, ids, true); err != nil {
				log.Warn().Err(err).Str("path", ev.Name).Msg("failed to mark observations stale from watch event")
			}
			cancel()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("stale watcher error")
		}
	}
}
