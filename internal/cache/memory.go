package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/oshokin/lrc-harvester/internal/fingerprint"
	"github.com/oshokin/lrc-harvester/internal/lyrics"
)

// MemoryTier is the process-local in-memory cache (§4.2.a): an LRU
// eviction on insert, with independent TTLs for positive and NotFound
// entries (§4.1: NotFound cached for a shorter TTL, default ¼ of the hit
// TTL).
type MemoryTier struct {
	mu             sync.Mutex
	entries        *lru.Cache[string, *Entry]
	maxAge         time.Duration
	negativeMaxAge time.Duration
	stats          Stats
	nowFn          func() time.Time
}

// NewMemoryTier builds a MemoryTier bounded to maxEntries, evicting the
// least-recently-accessed entry once that bound is exceeded (§4.2.a step 2).
func NewMemoryTier(maxEntries int, maxAge, negativeMaxAge time.Duration) (*MemoryTier, error) {
	entries, err := lru.New[string, *Entry](maxEntries)
	if err != nil {
		return nil, err
	}

	return &MemoryTier{
		entries:        entries,
		maxAge:         maxAge,
		negativeMaxAge: negativeMaxAge,
		nowFn:          time.Now,
	}, nil
}

func (t *MemoryTier) ttlFor(rec lyrics.Record) time.Duration {
	if rec.Kind == lyrics.KindNotFound {
		return t.negativeMaxAge
	}

	return t.maxAge
}

// Get implements Tier. Expired entries are evicted and reported as misses
// (§4.2: "the tier must never return an expired entry without first
// removing it").
func (t *MemoryTier) Get(_ context.Context, fp fingerprint.Fingerprint) (*Entry, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.TotalRequests++

	key := fp.String()

	entry, ok := t.entries.Get(key)
	if !ok {
		return nil, false, nil
	}

	now := t.nowFn()
	if entry.Expired(now, t.ttlFor(entry.Record)) {
		t.entries.Remove(key)

		return nil, false, nil
	}

	entry.LastAccessed = now
	entry.AccessCount++
	t.stats.Hits++

	return entry, true, nil
}

// Put implements Tier. An existing entry for fp is replaced in place (§4.2.a
// step 1): CachedAt and AccessCount are carried over from the prior entry so
// the TTL clock and access history survive a write-back, only Record and
// LastAccessed are refreshed. A fingerprint with no prior entry gets a fresh
// one.
func (t *MemoryTier) Put(_ context.Context, fp fingerprint.Fingerprint, rec lyrics.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFn()
	key := fp.String()

	if existing, ok := t.entries.Peek(key); ok {
		existing.Record = rec
		existing.LastAccessed = now
		t.entries.Add(key, existing)

		return nil
	}

	entry := &Entry{
		Record:       rec,
		CachedAt:     now,
		LastAccessed: now,
		AccessCount:  0,
	}

	t.entries.Add(key, entry)

	return nil
}

// Clear implements Tier.
func (t *MemoryTier) Clear(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries.Purge()
	t.stats.LastCleanup = t.nowFn()

	return nil
}

// Stats implements Tier.
func (t *MemoryTier) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.stats
	s.TotalEntries = t.entries.Len()

	return s
}

// Cleanup sweeps expired entries proactively (§4.2.a step 3 made explicit).
func (t *MemoryTier) Cleanup(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFn()

	for _, key := range t.entries.Keys() {
		entry, ok := t.entries.Peek(key)
		if !ok {
			continue
		}

		if entry.Expired(now, t.ttlFor(entry.Record)) {
			t.entries.Remove(key)
		}
	}

	t.stats.LastCleanup = now

	return nil
}

// Flush is a no-op: the in-memory tier has no durable backing store.
func (t *MemoryTier) Flush(_ context.Context) error {
	return nil
}
