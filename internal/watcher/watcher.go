// Package watcher observes a filesystem tree recursively and feeds
// detected audio files into the scheduler, debounced and batched (§4.7).
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/oshokin/lrc-harvester/internal/logger"
)

// initialScanPauseBetweenBatches is the short inter-batch sleep during the
// optional initial scan (§4.7).
const initialScanPauseBetweenBatches = 500 * time.Millisecond

// BatchFunc receives a deduplicated batch of paths to process (§4.7).
type BatchFunc func(ctx context.Context, paths []string)

// Watcher is the §4.7 directory watcher.
type Watcher struct {
	root            string
	debounceSeconds int64
	batchSize       int64
	audioExtensions map[string]struct{}
	onBatch         BatchFunc

	mu      sync.Mutex
	pending []string
	seen    map[string]struct{}
}

// New builds a Watcher over root. debounceSeconds and batchSize are
// expected to already be clamped by config.ValidateConfig (§4.7, §8).
func New(root string, debounceSeconds, batchSize int64, audioExtensions map[string]struct{}, onBatch BatchFunc) *Watcher {
	return &Watcher{
		root:            root,
		debounceSeconds: debounceSeconds,
		batchSize:       batchSize,
		audioExtensions: audioExtensions,
		onBatch:         onBatch,
		seen:            make(map[string]struct{}),
	}
}

// InitialScan enumerates the whole tree before watching begins, processing
// in batches of batchSize with a short inter-batch sleep (§4.7).
func (w *Watcher) InitialScan(ctx context.Context) error {
	var batch []string

	err := filepath.Walk(w.root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if info.IsDir() || !w.accepts(path) {
			return nil
		}

		batch = append(batch, path)

		if int64(len(batch)) >= w.batchSize {
			w.onBatch(ctx, batch)
			batch = nil

			select {
			case <-time.After(initialScanPauseBetweenBatches):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	if len(batch) > 0 {
		w.onBatch(ctx, batch)
	}

	return nil
}

// Run watches the tree and dispatches batches on a debounce tick until ctx
// is cancelled (§4.7). A watcher channel error terminates the loop after a
// clean shutdown (§4.7: "terminates the loop after a clean shutdown of
// in-flight batches").
func (w *Watcher) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	defer fsWatcher.Close() //nolint:errcheck // Best-effort cleanup.

	if err = w.addRecursive(ctx, fsWatcher); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(w.debounceSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drainAll(ctx)

			return nil

		case event, ok := <-fsWatcher.Events:
			if !ok {
				w.drainAll(ctx)

				return nil
			}

			w.handleEvent(fsWatcher, event)

		case err, ok := <-fsWatcher.Errors:
			if !ok || err != nil {
				w.drainAll(ctx)

				return err
			}

		case <-ticker.C:
			w.drainBatch(ctx)
		}
	}
}

func (w *Watcher) handleEvent(fsWatcher *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}

	if info.IsDir() {
		_ = fsWatcher.Add(event.Name) //nolint:errcheck // Best-effort: new subdirectories join the watch set.

		return
	}

	if !w.accepts(event.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, dup := w.seen[event.Name]; dup {
		return
	}

	w.seen[event.Name] = struct{}{}
	w.pending = append(w.pending, event.Name)
}

// drainBatch removes up to batchSize paths from the pending set and
// dispatches them as one batch; overflow paths remain pending (§4.7).
func (w *Watcher) drainBatch(ctx context.Context) {
	w.mu.Lock()

	if len(w.pending) == 0 {
		w.mu.Unlock()

		return
	}

	n := int64(len(w.pending))
	if n > w.batchSize {
		n = w.batchSize
	}

	batch := w.pending[:n]
	w.pending = w.pending[n:]

	for _, p := range batch {
		delete(w.seen, p)
	}

	w.mu.Unlock()

	w.onBatch(ctx, batch)
}

// drainAll flushes every remaining pending path on shutdown.
func (w *Watcher) drainAll(ctx context.Context) {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	if len(batch) > 0 {
		w.onBatch(ctx, batch)
	}
}

func (w *Watcher) accepts(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := w.audioExtensions[ext]

	return ok
}

func (w *Watcher) addRecursive(ctx context.Context, fsWatcher *fsnotify.Watcher) error {
	return filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if addErr := fsWatcher.Add(path); addErr != nil {
				logger.Warnf(ctx, "Failed to watch directory %q: %v", path, addErr)
			}
		}

		return nil
	})
}
