// Package cache implements the multi-tier lookup cache (§4.2): an
// in-memory LRU tier, an optional remote-KV tier, an on-disk JSON-index
// tier, and their composition into a single hybrid cache.
package cache

import (
	"context"
	"time"

	"github.com/oshokin/lrc-harvester/internal/fingerprint"
	"github.com/oshokin/lrc-harvester/internal/lyrics"
)

// Entry holds one LyricsRecord plus the bookkeeping fields every tier
// shares (§3 CacheEntry).
type Entry struct {
	Record       lyrics.Record `json:"record"`
	CachedAt     time.Time     `json:"cached_at"`
	LastAccessed time.Time     `json:"last_accessed"`
	AccessCount  int64         `json:"access_count"`
}

// Expired reports whether the entry has outlived maxAge as of now.
func (e *Entry) Expired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(e.CachedAt) > maxAge
}

// Stats mirrors §3's CacheStats: monotonic counters plus a derived hit rate.
type Stats struct {
	TotalEntries  int       `json:"total_entries"`
	TotalRequests int64     `json:"total_requests"`
	Hits          int64     `json:"hits"`
	LastCleanup   time.Time `json:"last_cleanup"`
}

// HitRate derives hits/requests, guarding the zero-requests case.
func (s Stats) HitRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}

	return float64(s.Hits) / float64(s.TotalRequests)
}

// Tier is the contract every cache implementation (memory, remote-KV,
// file-index) and the composite cache all satisfy (§4.2).
type Tier interface {
	// Get returns the entry for fp, or ok=false on a miss. An expired entry
	// is removed as a side effect and reported as a miss.
	Get(ctx context.Context, fp fingerprint.Fingerprint) (entry *Entry, ok bool, err error)
	// Put stores rec for fp, replacing any existing entry in place.
	Put(ctx context.Context, fp fingerprint.Fingerprint, rec lyrics.Record) error
	// Clear removes every entry.
	Clear(ctx context.Context) error
	// Stats returns a snapshot of this tier's counters.
	Stats() Stats
	// Cleanup performs an explicit expired-entry sweep; optional for
	// tiers whose TTL is enforced elsewhere (e.g. the remote-KV store).
	Cleanup(ctx context.Context) error
	// Flush persists any in-memory batching to durable storage.
	Flush(ctx context.Context) error
}
