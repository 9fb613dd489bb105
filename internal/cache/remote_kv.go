package cache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oshokin/lrc-harvester/internal/fingerprint"
	"github.com/oshokin/lrc-harvester/internal/logger"
	"github.com/oshokin/lrc-harvester/internal/lyrics"
)

// keyPrefix namespaces every key this tier writes, so the remote store can
// be shared with unrelated applications.
const keyPrefix = "lrc-harvester:cache:"

// RemoteKVTier is the optional remote-KV cache tier (§4.2.b), backed by
// Redis. TTL is enforced by the store itself; connection failures degrade
// silently, per §7's "optional collaborator" recovery policy.
type RemoteKVTier struct {
	client         *redis.Client
	maxAge         time.Duration
	negativeMaxAge time.Duration
	requests       atomic.Int64
	hits           atomic.Int64
	mu             sync.Mutex
	lastCleanup    time.Time
}

// NewRemoteKVTier dials addr lazily (redis.NewClient never blocks); the
// first failing call is what actually surfaces connectivity problems.
func NewRemoteKVTier(addr string, maxAge, negativeMaxAge time.Duration) *RemoteKVTier {
	client := redis.NewClient(&redis.Options{Addr: addr})

	return &RemoteKVTier{client: client, maxAge: maxAge, negativeMaxAge: negativeMaxAge}
}

func (t *RemoteKVTier) ttlFor(rec lyrics.Record) time.Duration {
	if rec.Kind == lyrics.KindNotFound {
		return t.negativeMaxAge
	}

	return t.maxAge
}

// Get implements Tier. A connection error or a corrupt stored value is
// treated as a miss and logged, never surfaced to the caller.
func (t *RemoteKVTier) Get(ctx context.Context, fp fingerprint.Fingerprint) (*Entry, bool, error) {
	t.requests.Add(1)

	raw, err := t.client.Get(ctx, keyPrefix+fp.String()).Bytes()
	if err != nil {
		if err != redis.Nil { //nolint:errorlint // sentinel comparison is the documented go-redis idiom.
			logger.Warnf(ctx, "Remote-KV cache get failed, degrading to miss: %v", err)
		}

		return nil, false, nil
	}

	var entry Entry
	if err = json.Unmarshal(raw, &entry); err != nil {
		logger.Warnf(ctx, "Remote-KV cache entry corrupt, treating as miss: %v", err)

		return nil, false, nil
	}

	if entry.Expired(time.Now(), t.ttlFor(entry.Record)) {
		return nil, false, nil
	}

	t.hits.Add(1)
	entry.AccessCount++
	entry.LastAccessed = time.Now()

	return &entry, true, nil
}

// Put implements Tier. Failures are logged and swallowed; the remote-KV
// tier is optional and never blocks a successful resolve.
func (t *RemoteKVTier) Put(ctx context.Context, fp fingerprint.Fingerprint, rec lyrics.Record) error {
	now := time.Now()

	entry := &Entry{Record: rec, CachedAt: now, LastAccessed: now}

	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	if err = t.client.Set(ctx, keyPrefix+fp.String(), raw, t.ttlFor(rec)).Err(); err != nil {
		logger.Warnf(ctx, "Remote-KV cache put failed, continuing without it: %v", err)

		return nil
	}

	return nil
}

// Clear deletes every key under keyPrefix via SCAN, since Redis has no
// prefix-delete primitive.
func (t *RemoteKVTier) Clear(ctx context.Context) error {
	iter := t.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()

	for iter.Next(ctx) {
		if err := t.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnf(ctx, "Remote-KV cache clear failed for key %q: %v", iter.Val(), err)
		}
	}

	t.mu.Lock()
	t.lastCleanup = time.Now()
	t.mu.Unlock()

	return iter.Err()
}

// Stats implements Tier. Entry count is not tracked locally; Redis itself
// owns expiry so total_entries is left at zero here (aggregated by the
// composite cache from other tiers).
func (t *RemoteKVTier) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Stats{
		TotalRequests: t.requests.Load(),
		Hits:          t.hits.Load(),
		LastCleanup:   t.lastCleanup,
	}
}

// Cleanup is a no-op: Redis enforces TTL natively.
func (t *RemoteKVTier) Cleanup(_ context.Context) error {
	return nil
}

// Flush is a no-op: every Put is already durable in Redis.
func (t *RemoteKVTier) Flush(_ context.Context) error {
	return nil
}

// Close releases the underlying connection pool.
func (t *RemoteKVTier) Close() error {
	return t.client.Close()
}
