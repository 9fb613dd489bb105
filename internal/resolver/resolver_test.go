package resolver_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/lrc-harvester/internal/cache"
	"github.com/oshokin/lrc-harvester/internal/lyrics"
	"github.com/oshokin/lrc-harvester/internal/resolver"
)

// fakeAPIClient is a resolver.APIClient test double with per-method counters
// and injectable responses.
type fakeAPIClient struct {
	mu          sync.Mutex
	getCalls    int
	searchCalls int
	getDelay    time.Duration
	getFn       func() (lyrics.Record, error)
	searchFn    func(query string) ([]lyrics.Record, error)
}

func (f *fakeAPIClient) Get(ctx context.Context, _, _, _ string, _ float64) (lyrics.Record, error) {
	f.mu.Lock()
	f.getCalls++
	f.mu.Unlock()

	if f.getDelay > 0 {
		select {
		case <-time.After(f.getDelay):
		case <-ctx.Done():
			return lyrics.Record{}, ctx.Err()
		}
	}

	if f.getFn != nil {
		return f.getFn()
	}

	return lyrics.NotFound(lyrics.SourceAPI), nil
}

func (f *fakeAPIClient) Search(_ context.Context, _, _, _, query string) ([]lyrics.Record, error) {
	f.mu.Lock()
	f.searchCalls++
	f.mu.Unlock()

	if f.searchFn != nil {
		return f.searchFn(query)
	}

	return nil, nil
}

func (f *fakeAPIClient) getCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.getCalls
}

func newTestCache(t *testing.T) *cache.Composite {
	t.Helper()

	memory, err := cache.NewMemoryTier(100, time.Hour, time.Minute)
	require.NoError(t, err)

	return cache.NewComposite(memory)
}

func TestResolver_Resolve_CacheHitSkipsAPI(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cacheTier := newTestCache(t)

	track := resolver.Track{Title: "Title", Artist: "Artist", Album: "Album", DurationSeconds: 200}

	api := &fakeAPIClient{}
	r := resolver.New(cacheTier, nil, api, false)

	first, err := r.Resolve(ctx, track)
	require.NoError(t, err)
	assert.Equal(t, lyrics.KindNotFound, first.Kind)
	assert.Equal(t, 1, api.getCallCount())

	second, err := r.Resolve(ctx, track)
	require.NoError(t, err)
	assert.Equal(t, first.Kind, second.Kind)
	assert.Equal(t, 1, api.getCallCount(), "second resolve for the same track must hit the cache, not the API")
}

func TestResolver_Resolve_APIHitIsWrittenBackToCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cacheTier := newTestCache(t)

	track := resolver.Track{Title: "Title", Artist: "Artist", Album: "Album", DurationSeconds: 200}

	api := &fakeAPIClient{getFn: func() (lyrics.Record, error) {
		return lyrics.Synced("[00:01.00]la", lyrics.SourceAPI), nil
	}}

	r := resolver.New(cacheTier, nil, api, false)

	rec, err := r.Resolve(ctx, track)
	require.NoError(t, err)
	assert.True(t, rec.HasSynced())

	rec2, err := r.Resolve(ctx, track)
	require.NoError(t, err)
	assert.True(t, rec2.HasSynced())
	assert.Equal(t, 1, api.getCallCount())
}

func TestResolver_Resolve_SingleFlightDedupesConcurrentCalls(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cacheTier := newTestCache(t)

	track := resolver.Track{Title: "Title", Artist: "Artist", Album: "Album", DurationSeconds: 200}

	api := &fakeAPIClient{
		getDelay: 50 * time.Millisecond,
		getFn: func() (lyrics.Record, error) {
			return lyrics.Plain("la", lyrics.SourceAPI), nil
		},
	}

	r := resolver.New(cacheTier, nil, api, false)

	const concurrency = 10

	var (
		wg      sync.WaitGroup
		errs    atomic.Int32
	)

	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()

			_, err := r.Resolve(ctx, track)
			if err != nil {
				errs.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(0), errs.Load())
	assert.Equal(t, 1, api.getCallCount(), "concurrent resolves for the same fingerprint must dedup into one API call")
}

func TestResolver_Resolve_APITransportErrorPropagates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cacheTier := newTestCache(t)

	track := resolver.Track{Title: "Title", Artist: "Artist", Album: "Album", DurationSeconds: 200}

	boom := assert.AnError

	api := &fakeAPIClient{getFn: func() (lyrics.Record, error) {
		return lyrics.Record{}, boom
	}}

	r := resolver.New(cacheTier, nil, api, false)

	_, err := r.Resolve(ctx, track)
	require.Error(t, err)
}

func TestResolver_Resolve_FuzzyDisabled_SkipsSearch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cacheTier := newTestCache(t)

	track := resolver.Track{Title: "Title", Artist: "Artist", Album: "Album", DurationSeconds: 200}

	api := &fakeAPIClient{}
	r := resolver.New(cacheTier, nil, api, false)

	rec, err := r.Resolve(ctx, track)
	require.NoError(t, err)
	assert.Equal(t, lyrics.KindNotFound, rec.Kind)
	assert.Equal(t, 0, api.searchCalls)
}

func TestResolver_Resolve_FuzzyEnabled_AcceptsGoodSearchMatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cacheTier := newTestCache(t)

	track := resolver.Track{Title: "Title", Artist: "Artist", Album: "Album", DurationSeconds: 200}

	api := &fakeAPIClient{
		searchFn: func(_ string) ([]lyrics.Record, error) {
			return []lyrics.Record{
				lyrics.Synced("[00:01.00]x", lyrics.SourceAPI).
					WithMetadata(track.Title, track.Artist, track.Album, track.DurationSeconds),
			}, nil
		},
	}

	r := resolver.New(cacheTier, nil, api, true)

	rec, err := r.Resolve(ctx, track)
	require.NoError(t, err)
	assert.True(t, rec.HasSynced())
	assert.Positive(t, api.searchCalls)
}

func TestResolver_Resolve_FuzzyEnabled_RejectsUnrelatedSearchHit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cacheTier := newTestCache(t)

	track := resolver.Track{Title: "Title", Artist: "Artist", Album: "Album", DurationSeconds: 200}

	api := &fakeAPIClient{
		searchFn: func(_ string) ([]lyrics.Record, error) {
			return []lyrics.Record{
				lyrics.Synced("[00:01.00]x", lyrics.SourceAPI).
					WithMetadata("Completely Different Song", "Some Other Band", "Unrelated Album", 9999),
			}, nil
		},
	}

	r := resolver.New(cacheTier, nil, api, true)

	rec, err := r.Resolve(ctx, track)
	require.NoError(t, err)
	assert.Equal(t, lyrics.KindNotFound, rec.Kind)
}
