package scheduler_test

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/lrc-harvester/internal/lyrics"
	"github.com/oshokin/lrc-harvester/internal/scheduler"
	"github.com/oshokin/lrc-harvester/internal/trackstore"
)

type fakeResolver struct {
	mu          sync.Mutex
	inFlight    int64
	maxInFlight int64
	delay       time.Duration
	resolveFn   func(t scheduler.ResolverTrack) (lyrics.Record, error)
}

func (f *fakeResolver) Resolve(ctx context.Context, t scheduler.ResolverTrack) (lyrics.Record, error) {
	cur := atomic.AddInt64(&f.inFlight, 1)
	defer atomic.AddInt64(&f.inFlight, -1)

	f.mu.Lock()
	if cur > f.maxInFlight {
		f.maxInFlight = cur
	}
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return lyrics.Record{}, ctx.Err()
		}
	}

	if f.resolveFn != nil {
		return f.resolveFn(t)
	}

	return lyrics.NotFound(lyrics.SourceAPI), nil
}

func (f *fakeResolver) observedMaxInFlight() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.maxInFlight
}

func newTestStore(t *testing.T) *trackstore.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tracks.db")

	store, err := trackstore.Open(context.Background(), path)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func tracksOf(n int, dir string) []*trackstore.Track {
	out := make([]*trackstore.Track, n)
	for i := range out {
		out[i] = &trackstore.Track{FilePath: filepath.Join(dir, time.Duration(i).String()+"-track.mp3")}
	}

	return out
}

func TestScheduler_Run_RespectsConcurrencyBound(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := newTestStore(t)

	resolver := &fakeResolver{delay: 20 * time.Millisecond}
	sched := scheduler.New(3, resolver, store, false, nil)

	sched.Run(context.Background(), tracksOf(12, dir))

	assert.LessOrEqual(t, resolver.observedMaxInFlight(), int64(3))
	assert.Positive(t, resolver.observedMaxInFlight())
}

func TestScheduler_Run_DefaultsConcurrencyToFour(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	resolver := &fakeResolver{delay: 20 * time.Millisecond}

	sched := scheduler.New(0, resolver, store, false, nil)
	assert.Equal(t, scheduler.StateRunning, sched.State())

	sched.Run(context.Background(), tracksOf(12, t.TempDir()))
	assert.Equal(t, int64(4), resolver.observedMaxInFlight(), "a non-positive concurrency falls back to four permits")
	assert.Equal(t, scheduler.StateRunning, sched.State(), "a run that completes without Stop() stays Running")
}

func TestScheduler_Run_CounterInvariant(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := newTestStore(t)

	var counter atomic.Int64

	resolver := &fakeResolver{resolveFn: func(_ scheduler.ResolverTrack) (lyrics.Record, error) {
		switch counter.Add(1) % 3 {
		case 0:
			return lyrics.Synced("[00:01.00]x", lyrics.SourceAPI), nil
		case 1:
			return lyrics.Plain("x", lyrics.SourceAPI), nil
		default:
			return lyrics.NotFound(lyrics.SourceAPI), nil
		}
	}}

	var final scheduler.ProgressState

	sched := scheduler.New(4, resolver, store, false, func(p scheduler.ProgressState) {
		final = p
	})

	tracks := tracksOf(9, dir)
	sched.Run(context.Background(), tracks)

	assert.Equal(t, int64(len(tracks)), final.Processed)
	assert.Equal(t, final.Processed, final.Synced+final.Plain+final.Missing+final.Errored)
	assert.Equal(t, int64(len(tracks)), final.Total)
}

func TestScheduler_Run_DryRunCountsAsMissingWithoutWritingSidecars(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := newTestStore(t)

	resolver := &fakeResolver{resolveFn: func(_ scheduler.ResolverTrack) (lyrics.Record, error) {
		t.Fatal("dry run must never call the resolver")

		return lyrics.Record{}, nil
	}}

	var final scheduler.ProgressState

	sched := scheduler.New(2, resolver, store, true, func(p scheduler.ProgressState) { final = p })

	tracks := tracksOf(3, dir)
	sched.Run(context.Background(), tracks)

	assert.Equal(t, int64(3), final.Processed)
	assert.Equal(t, int64(3), final.Missing)
	assert.Equal(t, int64(0), final.Synced+final.Plain+final.Errored)
}

func TestScheduler_Pause_IsIdempotentAndOnlyFromRunning(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	sched := scheduler.New(1, &fakeResolver{}, store, false, nil)

	sched.Pause()
	assert.Equal(t, scheduler.StatePaused, sched.State())

	sched.Pause()
	assert.Equal(t, scheduler.StatePaused, sched.State(), "pausing an already-paused scheduler is a no-op")

	sched.Resume()
	assert.Equal(t, scheduler.StateRunning, sched.State())
}

func TestScheduler_Stop_IsMonotone(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	sched := scheduler.New(1, &fakeResolver{}, store, false, nil)

	sched.Stop()
	assert.Equal(t, scheduler.StateStopping, sched.State())

	sched.Resume()
	assert.Equal(t, scheduler.StateStopping, sched.State(), "Stopping must never transition back to Running")
}

func TestScheduler_Run_PublishesExactlyOneTerminalUpdate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := newTestStore(t)

	var calls atomic.Int64

	sched := scheduler.New(2, &fakeResolver{}, store, false, func(_ scheduler.ProgressState) {
		calls.Add(1)
	})

	tracks := tracksOf(4, dir)
	sched.Run(context.Background(), tracks)

	assert.Equal(t, int64(len(tracks))+1, calls.Load(), "one publish per completed task plus the final terminal publish")
}
