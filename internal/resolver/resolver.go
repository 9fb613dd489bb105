// Package resolver implements the layered lookup engine (§4.1): cache
// tiers, then the local mirror database, then the remote HTTP API, with
// single-flight deduplication and write-back to every cheaper tier.
package resolver

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/oshokin/lrc-harvester/internal/apperrors"
	"github.com/oshokin/lrc-harvester/internal/cache"
	"github.com/oshokin/lrc-harvester/internal/fingerprint"
	"github.com/oshokin/lrc-harvester/internal/logger"
	"github.com/oshokin/lrc-harvester/internal/lyrics"
	"github.com/oshokin/lrc-harvester/internal/mirror"
)

// interVariantPause is the rate-etiquette pause between synthesized search
// queries (§4.4).
const interVariantPause = 100 * time.Millisecond

// APIClient is the subset of the lrclib client the resolver depends on.
type APIClient interface {
	Get(ctx context.Context, title, artist, album string, durationSeconds float64) (lyrics.Record, error)
	Search(ctx context.Context, title, artist, album, query string) ([]lyrics.Record, error)
}

// Track is the minimal shape the resolver needs from a catalog entry.
type Track struct {
	Title           string
	Artist          string
	Album           string
	DurationSeconds float64
}

// Resolver is the §4.1 layered lookup engine. It owns the cache and calls
// into it; the cache never calls back out (§9: breaking the cyclic
// reference by composition).
type Resolver struct {
	cacheTier     *cache.Composite
	mirrorDB      *mirror.DB // nil if no mirror is configured
	apiClient     APIClient
	enableFuzzy   bool
	singleFlight  singleflight.Group
}

// New builds a Resolver. mirrorDB may be nil (mirror tier disabled).
func New(cacheTier *cache.Composite, mirrorDB *mirror.DB, apiClient APIClient, enableFuzzy bool) *Resolver {
	return &Resolver{
		cacheTier:   cacheTier,
		mirrorDB:    mirrorDB,
		apiClient:   apiClient,
		enableFuzzy: enableFuzzy,
	}
}

// Resolve implements the §4.1 public contract: always returns, never fails
// for NotFound, fails only with Transport when every remote tier is
// unreachable and no cached answer exists, or with Cancelled once ctx is
// done. A malformed remote payload is treated as NotFound. Concurrent calls for the same
// fingerprint are deduplicated via single-flight (§4.1 invariant 1).
func (r *Resolver) Resolve(ctx context.Context, t Track) (lyrics.Record, error) {
	fp := fingerprint.New(t.Title, t.Artist, t.Album, t.DurationSeconds)

	result, err, _ := r.singleFlight.Do(fp.String(), func() (any, error) {
		return r.resolveUncached(ctx, fp, t)
	})
	if err != nil {
		return lyrics.Record{}, err
	}

	return result.(lyrics.Record), nil //nolint:forcetypeassert // This goroutine is the only caller of Do with this key shape.
}

func (r *Resolver) resolveUncached(ctx context.Context, fp fingerprint.Fingerprint, t Track) (lyrics.Record, error) {
	if err := apperrors.FromContext(ctx); err != nil {
		return lyrics.Record{}, err
	}

	// Step 1-3: cache tiers, composed already in §4.2 order.
	if entry, ok, err := r.cacheTier.Get(ctx, fp); err == nil && ok {
		return entry.Record, nil
	}

	// Step 4: local mirror DB exact match.
	if r.mirrorDB != nil {
		if track, found, err := r.mirrorDB.SearchExact(ctx, t.Title, t.Artist, t.Album, t.DurationSeconds); err != nil {
			logger.Warnf(ctx, "Mirror exact search failed, continuing: %v", err)
		} else if found {
			return r.writeBackAndReturn(ctx, fp, track.Record.WithSource(lyrics.SourceMirror), nil)
		}
	}

	// Step 5: remote HTTP exact-get.
	record, err := r.apiClient.Get(ctx, t.Title, t.Artist, t.Album, t.DurationSeconds)
	if err != nil {
		if !apperrors.Is(err, apperrors.KindMalformed) {
			return lyrics.Record{}, err
		}

		logger.Warnf(ctx, "Malformed lyrics payload for %s, treating as not found: %v", fp, err)

		record = lyrics.NotFound(lyrics.SourceAPI)
	}

	if record.Kind != lyrics.KindNotFound {
		return r.writeBackAndReturn(ctx, fp, record, &t)
	}

	if !r.enableFuzzy {
		return r.writeBackAndReturn(ctx, fp, record, nil)
	}

	// Step 6: local mirror DB fuzzy search.
	if r.mirrorDB != nil {
		if best := r.mirrorFuzzy(ctx, t); best != nil {
			return r.writeBackAndReturn(ctx, fp, best.Record.WithSource(lyrics.SourceMirror), nil)
		}
	}

	// Step 7: remote HTTP search with synthesized query variants.
	best, err := r.remoteFuzzy(ctx, t)
	if err != nil {
		return lyrics.Record{}, err
	}

	return r.writeBackAndReturn(ctx, fp, best, &t)
}

// writeBackAndReturn inserts record into the cache (and, when it came from
// an API/fuzzy path with a non-nil track, the mirror DB) before returning
// it. Write-back failures are logged and swallowed (§4.1).
func (r *Resolver) writeBackAndReturn(
	ctx context.Context,
	fp fingerprint.Fingerprint,
	record lyrics.Record,
	mirrorWriteBackTrack *Track,
) (lyrics.Record, error) {
	if err := r.cacheTier.Put(ctx, fp, record); err != nil {
		logger.Warnf(ctx, "Cache write-back failed for %s: %v", fp, err)
	}

	if mirrorWriteBackTrack != nil && r.mirrorDB != nil && record.Source == lyrics.SourceAPI {
		t := *mirrorWriteBackTrack

		err := r.mirrorDB.InsertTrack(ctx, t.Title, t.Artist, t.Album, t.DurationSeconds, record)
		if err != nil {
			logger.Warnf(ctx, "Mirror write-back failed for %s: %v", fp, err)
		}
	}

	return record, nil
}

// mirrorFuzzy runs the mirror DB's fuzzy_search with the §4.1/§4.3 shared
// weighted scorer and returns the best-scoring candidate, or nil.
func (r *Resolver) mirrorFuzzy(ctx context.Context, t Track) *mirror.Track {
	results, err := r.mirrorDB.FuzzySearch(ctx, t.Title, t.Artist, t.Album, t.Title, 1,
		func(candTitle, candArtist, candAlbum string) float64 {
			return mirrorFuzzyScore(t.Title, t.Artist, t.Album, t.Title, candTitle, candArtist, candAlbum)
		})
	if err != nil {
		logger.Warnf(ctx, "Mirror fuzzy search failed, continuing: %v", err)

		return nil
	}

	if len(results) == 0 {
		return nil
	}

	return results[0]
}

// remoteFuzzy implements §4.1 step 7 and the SUPPLEMENTED search-variation
// fallback recovered from lrclib.rs::generate_search_variations: try the
// full query, then progressively looser variants, scoring every candidate
// and returning the best-scoring accepted candidate of the first variant
// that has one. A variant whose search payload is malformed is skipped.
func (r *Resolver) remoteFuzzy(ctx context.Context, t Track) (lyrics.Record, error) {
	for i, variant := range searchVariations(t) {
		if i > 0 {
			if err := pause(ctx, interVariantPause); err != nil {
				return lyrics.Record{}, err
			}
		}

		candidates, err := r.apiClient.Search(ctx, variant.title, variant.artist, variant.album, variant.query)
		if err != nil {
			if !apperrors.Is(err, apperrors.KindMalformed) {
				return lyrics.Record{}, err
			}

			logger.Warnf(ctx, "Malformed search payload for variant %d, skipping: %v", i, err)

			continue
		}

		if best, ok := bestScoring(t, candidates); ok {
			return best, nil
		}
	}

	return lyrics.NotFound(lyrics.SourceAPI), nil
}

// bestScoring scores every candidate against the original query and
// returns the best one if it clears the acceptance threshold (§4.1 step 7, §8).
func bestScoring(query Track, candidates []lyrics.Record) (lyrics.Record, bool) {
	var (
		best      lyrics.Record
		bestScore float64
		found     bool
	)

	queryCandidate := candidate{title: query.Title, artist: query.Artist, album: query.Album, durationSeconds: query.DurationSeconds}

	for _, c := range candidates {
		// Score against the candidate's own title/artist/album/duration, as
		// echoed by the API on the search hit (client.go's apiRecord.toRecord
		// populates these via Record.WithMetadata), not the query that
		// produced it — otherwise every candidate would trivially score
		// max-weight on every field.
		s := score(queryCandidate, candidate{
			title: c.Title, artist: c.Artist, album: c.Album,
			durationSeconds: c.DurationSeconds, hasSynced: recordHasSynced(c),
		})

		if accept(s) && (!found || s > bestScore) {
			best, bestScore, found = c, s, true
		}
	}

	return best, found
}

func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return apperrors.FromContext(ctx)
	}
}
