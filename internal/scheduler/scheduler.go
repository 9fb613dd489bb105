// Package scheduler drives a set of tracks through the resolver
// concurrently, subject to a permit pool and a pause/stop control state
// machine (§4.6).
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/lrc-harvester/internal/logger"
	"github.com/oshokin/lrc-harvester/internal/lyrics"
	"github.com/oshokin/lrc-harvester/internal/trackstore"
)

// State is one of the four scheduler states (§3 SchedulerState, §4.6).
type State int32

const (
	// StateRunning means tasks acquire permits and run.
	StateRunning State = iota
	// StatePaused means newly acquired permits park; in-flight tasks continue.
	StatePaused
	// StateStopping means no new tasks begin; in-flight tasks finish.
	StateStopping
	// StateStopped is terminal.
	StateStopped
)

// pausePollInterval is the sleep cycle a parked task uses while paused (§4.6).
const pausePollInterval = 100 * time.Millisecond

// Resolver is the subset of resolver.Resolver the scheduler depends on.
type Resolver interface {
	Resolve(ctx context.Context, t ResolverTrack) (lyrics.Record, error)
}

// ResolverTrack mirrors resolver.Track to avoid an import cycle between
// scheduler and resolver; callers pass the same field values either way.
type ResolverTrack struct {
	Title           string
	Artist          string
	Album           string
	DurationSeconds float64
}

// ProgressState is a snapshot published after each completed task (§4.6).
type ProgressState struct {
	BatchID   string
	Processed int64
	Synced    int64
	Plain     int64
	Missing   int64
	Errored   int64
	Total     int64
}

// ProgressFunc receives a ProgressState after each task completion and
// exactly one terminal ProgressState once Run finishes (§4.6).
type ProgressFunc func(ProgressState)

// Scheduler is the §4.6 bounded-concurrency driver.
type Scheduler struct {
	concurrency int64
	resolver    Resolver
	store       *trackstore.Store
	dryRun      bool

	state   atomic.Int32
	permits chan struct{}

	processed atomic.Int64
	synced    atomic.Int64
	plain     atomic.Int64
	missing   atomic.Int64
	errored   atomic.Int64

	onProgress ProgressFunc
}

// New builds a Scheduler with a permit pool of size concurrency (default 4, §4.6).
func New(concurrency int64, resolver Resolver, store *trackstore.Store, dryRun bool, onProgress ProgressFunc) *Scheduler {
	if concurrency <= 0 {
		concurrency = 4
	}

	s := &Scheduler{
		concurrency: concurrency,
		resolver:    resolver,
		store:       store,
		dryRun:      dryRun,
		permits:     make(chan struct{}, concurrency),
		onProgress:  onProgress,
	}
	s.state.Store(int32(StateRunning))

	return s
}

// State returns the current control state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Pause requests the Paused state. A no-op if not Running (§4.6: "idempotent").
func (s *Scheduler) Pause() {
	s.state.CompareAndSwap(int32(StateRunning), int32(StatePaused))
}

// Resume requests the Running state. A no-op if not Paused.
func (s *Scheduler) Resume() {
	s.state.CompareAndSwap(int32(StatePaused), int32(StateRunning))
}

// Stop requests the Stopping state from Running or Paused. Transitions are
// monotone: once Stopping, never returns to Running (§3).
func (s *Scheduler) Stop() {
	for {
		current := State(s.state.Load())
		if current == StateStopping || current == StateStopped {
			return
		}

		if s.state.CompareAndSwap(int32(current), int32(StateStopping)) {
			return
		}
	}
}

// Run drives every track in tracks through the resolver, gated by the
// permit pool, and publishes exactly one terminal ProgressState once every
// task has completed or the scheduler reached Stopped (§4.6).
func (s *Scheduler) Run(ctx context.Context, tracks []*trackstore.Track) {
	batchID := uuid.NewString()
	total := int64(len(tracks))

	var wg sync.WaitGroup

dispatchLoop:
	for _, t := range tracks {
		if State(s.state.Load()) == StateStopping {
			break
		}

		select {
		case s.permits <- struct{}{}:
		case <-ctx.Done():
			s.state.Store(int32(StateStopped))

			break dispatchLoop
		}

		s.waitWhilePaused(ctx)

		wg.Add(1)

		go func(track *trackstore.Track) {
			defer wg.Done()
			defer func() { <-s.permits }()

			s.processOne(ctx, track)
			s.publish(batchID, total)
		}(t)
	}

	wg.Wait()

	s.state.CompareAndSwap(int32(StateStopping), int32(StateStopped))
	s.publish(batchID, total)
}

// waitWhilePaused parks the calling goroutine while the scheduler is
// Paused, polling every pausePollInterval (§4.6).
func (s *Scheduler) waitWhilePaused(ctx context.Context) {
	for State(s.state.Load()) == StatePaused {
		select {
		case <-time.After(pausePollInterval):
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) processOne(ctx context.Context, t *trackstore.Track) {
	if s.dryRun {
		logger.Infof(ctx, "Dry run: would resolve lyrics for %q", t.FilePath)
		s.processed.Add(1)
		s.missing.Add(1)

		return
	}

	record, err := s.resolver.Resolve(ctx, ResolverTrack{
		Title: t.Title, Artist: t.Artist, Album: t.Album, DurationSeconds: t.Duration,
	})
	if err != nil {
		logger.Warnf(ctx, "Resolve failed for %q: %v", t.FilePath, err)
		s.processed.Add(1)
		s.errored.Add(1)

		return
	}

	if State(s.state.Load()) == StateStopping {
		s.processed.Add(1)
		s.missing.Add(1)

		return
	}

	if err = lyrics.WriteSidecars(ctx, t.FilePath, record); err != nil {
		logger.Warnf(ctx, "Failed to write sidecars for %q: %v", t.FilePath, err)
		s.processed.Add(1)
		s.errored.Add(1)

		return
	}

	s.applyRecordToTrack(t, record)

	if err = s.store.AddTrack(ctx, t); err != nil {
		logger.Warnf(ctx, "Failed to update track store for %q: %v", t.FilePath, err)
	}

	s.processed.Add(1)
	s.countOutcome(record)
}

func (s *Scheduler) applyRecordToTrack(t *trackstore.Track, record lyrics.Record) {
	t.SyncedLyrics = record.SyncedText
	t.PlainLyrics = record.PlainText
}

// countOutcome increments exactly one of synced/plain/missing, preserving
// invariant 5 (§8: synced+plain+missing+errored == processed). Instrumental
// counts as missing for stats purposes even though it produced a sidecar
// (§9 open question, preserved verbatim).
func (s *Scheduler) countOutcome(record lyrics.Record) {
	switch {
	case record.IsMissing():
		s.missing.Add(1)
	case record.HasSynced():
		s.synced.Add(1)
	case record.HasPlain():
		s.plain.Add(1)
	default:
		s.missing.Add(1)
	}
}

func (s *Scheduler) publish(batchID string, total int64) {
	if s.onProgress == nil {
		return
	}

	s.onProgress(ProgressState{
		BatchID:   batchID,
		Processed: s.processed.Load(),
		Synced:    s.synced.Load(),
		Plain:     s.plain.Load(),
		Missing:   s.missing.Load(),
		Errored:   s.errored.Load(),
		Total:     total,
	})
}
