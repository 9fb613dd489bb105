package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oshokin/lrc-harvester/internal/constants"
	"github.com/oshokin/lrc-harvester/internal/fingerprint"
	"github.com/oshokin/lrc-harvester/internal/logger"
	"github.com/oshokin/lrc-harvester/internal/lyrics"
)

// IndexFilename is the fixed name of the on-disk cache index (§6).
const IndexFilename = "cache_index.json"

// fileIndexDocument is the JSON shape persisted at <data-dir>/cache/cache_index.json.
type fileIndexDocument struct {
	Entries       map[string]*Entry `json:"entries"`
	TotalRequests int64             `json:"total_requests"`
	CacheHits     int64             `json:"cache_hits"`
	LastCleanup   time.Time         `json:"last_cleanup"`
}

// FileIndexTier is the single-JSON-document cache tier (§4.2.c). Writes
// batch in memory; Flush persists atomically via a temp file plus rename.
type FileIndexTier struct {
	mu             sync.Mutex
	dir            string
	doc            fileIndexDocument
	dirty          bool
	maxAge         time.Duration
	negativeMaxAge time.Duration
}

// NewFileIndexTier loads (or initializes) the index under dir/cache_index.json.
// A missing or corrupt file is tolerated and reinitialized empty (§4.2.c, §6).
func NewFileIndexTier(ctx context.Context, dir string, maxAge, negativeMaxAge time.Duration) (*FileIndexTier, error) {
	t := &FileIndexTier{
		dir:            dir,
		maxAge:         maxAge,
		negativeMaxAge: negativeMaxAge,
		doc:            fileIndexDocument{Entries: make(map[string]*Entry)},
	}

	if err := os.MkdirAll(dir, constants.DefaultFolderPermissions); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(filepath.Join(dir, IndexFilename)) //nolint:gosec // Path is operator-configured, not user input.
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}

		logger.Warnf(ctx, "Cache index unreadable, reinitializing empty: %v", err)

		return t, nil
	}

	var doc fileIndexDocument
	if err = json.Unmarshal(raw, &doc); err != nil {
		logger.Warnf(ctx, "Cache index corrupt, reinitializing empty: %v", err)

		return t, nil
	}

	if doc.Entries == nil {
		doc.Entries = make(map[string]*Entry)
	}

	t.doc = doc

	return t, nil
}

func (t *FileIndexTier) ttlFor(rec lyrics.Record) time.Duration {
	if rec.Kind == lyrics.KindNotFound {
		return t.negativeMaxAge
	}

	return t.maxAge
}

// Get implements Tier.
func (t *FileIndexTier) Get(_ context.Context, fp fingerprint.Fingerprint) (*Entry, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.doc.TotalRequests++

	key := fp.String()

	entry, ok := t.doc.Entries[key]
	if !ok {
		return nil, false, nil
	}

	now := time.Now()
	if entry.Expired(now, t.ttlFor(entry.Record)) {
		delete(t.doc.Entries, key)
		t.dirty = true

		return nil, false, nil
	}

	entry.LastAccessed = now
	entry.AccessCount++
	t.doc.CacheHits++
	t.dirty = true

	return entry, true, nil
}

// Put implements Tier.
func (t *FileIndexTier) Put(_ context.Context, fp fingerprint.Fingerprint, rec lyrics.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.doc.Entries[fp.String()] = &Entry{Record: rec, CachedAt: now, LastAccessed: now}
	t.dirty = true

	return nil
}

// Clear deletes the cache directory and recreates it empty (§4.2.c).
func (t *FileIndexTier) Clear(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.RemoveAll(t.dir); err != nil {
		return err
	}

	if err := os.MkdirAll(t.dir, constants.DefaultFolderPermissions); err != nil {
		return err
	}

	t.doc = fileIndexDocument{Entries: make(map[string]*Entry), LastCleanup: time.Now()}
	t.dirty = false

	return nil
}

// Stats implements Tier.
func (t *FileIndexTier) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Stats{
		TotalEntries:  len(t.doc.Entries),
		TotalRequests: t.doc.TotalRequests,
		Hits:          t.doc.CacheHits,
		LastCleanup:   t.doc.LastCleanup,
	}
}

// Cleanup sweeps expired entries and marks the document dirty for the next Flush.
func (t *FileIndexTier) Cleanup(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()

	for key, entry := range t.doc.Entries {
		if entry.Expired(now, t.ttlFor(entry.Record)) {
			delete(t.doc.Entries, key)
			t.dirty = true
		}
	}

	t.doc.LastCleanup = now

	return nil
}

// Flush writes the index atomically via a sibling temp file and rename
// (§4.2.c). A no-op if nothing changed since the last flush.
func (t *FileIndexTier) Flush(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.dirty {
		return nil
	}

	raw, err := json.Marshal(&t.doc)
	if err != nil {
		return err
	}

	finalPath := filepath.Join(t.dir, IndexFilename)
	tempPath := finalPath + constants.ExtensionPartial

	if err = os.WriteFile(tempPath, raw, constants.DefaultFilePermissions); err != nil {
		return err
	}

	if err = os.Rename(tempPath, finalPath); err != nil {
		return err
	}

	t.dirty = false

	return nil
}
