package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/lrc-harvester/internal/fingerprint"
	"github.com/oshokin/lrc-harvester/internal/lyrics"
)

func newTestMemoryTier(t *testing.T, maxEntries int, maxAge, negativeMaxAge time.Duration) *MemoryTier {
	t.Helper()

	tier, err := NewMemoryTier(maxEntries, maxAge, negativeMaxAge)
	require.NoError(t, err)

	return tier
}

func TestMemoryTier_PutGet_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tier := newTestMemoryTier(t, 10, time.Hour, time.Minute)

	fp := fingerprint.New("Title", "Artist", "Album", 180)
	rec := lyrics.Synced("[00:01.00]la", lyrics.SourceAPI)

	require.NoError(t, tier.Put(ctx, fp, rec))

	entry, ok, err := tier.Get(ctx, fp)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec, entry.Record)
	assert.Equal(t, int64(1), entry.AccessCount)
}

func TestMemoryTier_Get_Miss(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tier := newTestMemoryTier(t, 10, time.Hour, time.Minute)

	fp := fingerprint.New("Title", "Artist", "Album", 180)

	_, ok, err := tier.Get(ctx, fp)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryTier_Get_ExpiredEntryEvictedAndReportedAsMiss(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tier := newTestMemoryTier(t, 10, time.Minute, time.Minute)

	fakeNow := time.Now()
	tier.nowFn = func() time.Time { return fakeNow }

	fp := fingerprint.New("Title", "Artist", "Album", 180)
	require.NoError(t, tier.Put(ctx, fp, lyrics.Synced("x", lyrics.SourceAPI)))

	tier.nowFn = func() time.Time { return fakeNow.Add(2 * time.Minute) }

	_, ok, err := tier.Get(ctx, fp)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 0, tier.entries.Len(), "expired entry must be evicted on read")
}

func TestMemoryTier_NegativeTTLShorterThanPositive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tier := newTestMemoryTier(t, 10, time.Hour, time.Minute)

	fakeNow := time.Now()
	tier.nowFn = func() time.Time { return fakeNow }

	fp := fingerprint.New("Title", "Artist", "Album", 180)
	require.NoError(t, tier.Put(ctx, fp, lyrics.NotFound(lyrics.SourceAPI)))

	tier.nowFn = func() time.Time { return fakeNow.Add(2 * time.Minute) }

	_, ok, err := tier.Get(ctx, fp)
	require.NoError(t, err)
	assert.False(t, ok, "NotFound entries must expire under the shorter negative TTL")
}

func TestMemoryTier_EvictsLeastRecentlyUsedBeyondCapacity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tier := newTestMemoryTier(t, 2, time.Hour, time.Hour)

	fp1 := fingerprint.New("one", "a", "al", 100)
	fp2 := fingerprint.New("two", "a", "al", 100)
	fp3 := fingerprint.New("three", "a", "al", 100)

	require.NoError(t, tier.Put(ctx, fp1, lyrics.Synced("1", lyrics.SourceAPI)))
	require.NoError(t, tier.Put(ctx, fp2, lyrics.Synced("2", lyrics.SourceAPI)))
	require.NoError(t, tier.Put(ctx, fp3, lyrics.Synced("3", lyrics.SourceAPI)))

	_, ok, err := tier.Get(ctx, fp1)
	require.NoError(t, err)
	assert.False(t, ok, "oldest entry should have been evicted once capacity was exceeded")

	_, ok, err = tier.Get(ctx, fp3)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryTier_Put_ExistingEntryPreservesAccessHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tier := newTestMemoryTier(t, 10, time.Hour, time.Hour)

	fakeNow := time.Now()
	tier.nowFn = func() time.Time { return fakeNow }

	fp := fingerprint.New("Title", "Artist", "Album", 180)
	require.NoError(t, tier.Put(ctx, fp, lyrics.Synced("first", lyrics.SourceAPI)))

	_, ok, err := tier.Get(ctx, fp)
	require.NoError(t, err)
	require.True(t, ok)

	tier.nowFn = func() time.Time { return fakeNow.Add(time.Minute) }
	require.NoError(t, tier.Put(ctx, fp, lyrics.Synced("second", lyrics.SourceAPI)))

	entry, ok, err := tier.Get(ctx, fp)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", entry.Record.SyncedText)
	assert.Equal(t, fakeNow, entry.CachedAt, "CachedAt must survive a write-back to an existing fingerprint")
	assert.Equal(t, int64(2), entry.AccessCount, "AccessCount must carry over across a write-back, not reset to 0")
}

func TestMemoryTier_Clear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tier := newTestMemoryTier(t, 10, time.Hour, time.Hour)

	fp := fingerprint.New("Title", "Artist", "Album", 180)
	require.NoError(t, tier.Put(ctx, fp, lyrics.Synced("x", lyrics.SourceAPI)))

	require.NoError(t, tier.Clear(ctx))

	_, ok, err := tier.Get(ctx, fp)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryTier_Stats_TracksRequestsAndHits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tier := newTestMemoryTier(t, 10, time.Hour, time.Hour)

	fp := fingerprint.New("Title", "Artist", "Album", 180)
	require.NoError(t, tier.Put(ctx, fp, lyrics.Synced("x", lyrics.SourceAPI)))

	_, _, _ = tier.Get(ctx, fp)
	_, _, _ = tier.Get(ctx, fingerprint.New("missing", "a", "al", 1))

	stats := tier.Stats()
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, 1, stats.TotalEntries)
	assert.InDelta(t, 0.5, stats.HitRate(), 0.0001)
}

func TestMemoryTier_Cleanup_RemovesExpiredEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tier := newTestMemoryTier(t, 10, time.Minute, time.Minute)

	fakeNow := time.Now()
	tier.nowFn = func() time.Time { return fakeNow }

	fp := fingerprint.New("Title", "Artist", "Album", 180)
	require.NoError(t, tier.Put(ctx, fp, lyrics.Synced("x", lyrics.SourceAPI)))

	tier.nowFn = func() time.Time { return fakeNow.Add(2 * time.Minute) }
	require.NoError(t, tier.Cleanup(ctx))

	assert.Equal(t, 0, tier.entries.Len())
}

func TestMemoryTier_Flush_IsNoop(t *testing.T) {
	t.Parallel()

	tier := newTestMemoryTier(t, 10, time.Hour, time.Hour)
	assert.NoError(t, tier.Flush(context.Background()))
}
