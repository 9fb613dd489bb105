package cache

import (
	"context"
	"errors"

	"github.com/oshokin/lrc-harvester/internal/fingerprint"
	"github.com/oshokin/lrc-harvester/internal/logger"
	"github.com/oshokin/lrc-harvester/internal/lyrics"
)

// Composite composes tiers in a fixed order — in-memory, remote-KV (if
// present), file-index — and implements the hybrid semantics of §4.2:
// first-hit-wins get with promotion, fan-out put, aggregated stats.
type Composite struct {
	tiers []Tier
}

// NewComposite builds a Composite over tiers in the given (highest-first)
// order. A nil tier (e.g. an unconfigured remote-KV) is skipped.
func NewComposite(tiers ...Tier) *Composite {
	c := &Composite{}

	for _, t := range tiers {
		if t != nil {
			c.tiers = append(c.tiers, t)
		}
	}

	return c
}

// Get returns the first hit across tiers in order, promoting it into every
// higher tier on the way out (§4.2: "on a hit from a lower tier, promote
// the entry into every higher tier; best-effort").
func (c *Composite) Get(ctx context.Context, fp fingerprint.Fingerprint) (*Entry, bool, error) {
	for i, tier := range c.tiers {
		entry, ok, err := tier.Get(ctx, fp)
		if err != nil {
			logger.Warnf(ctx, "Cache tier %d get failed, trying next tier: %v", i, err)

			continue
		}

		if !ok {
			continue
		}

		c.promote(ctx, fp, entry.Record, i)

		return entry, true, nil
	}

	return nil, false, nil
}

// promote best-effort writes rec into every tier above index belowIndex.
func (c *Composite) promote(ctx context.Context, fp fingerprint.Fingerprint, rec lyrics.Record, belowIndex int) {
	for i := 0; i < belowIndex; i++ {
		if err := c.tiers[i].Put(ctx, fp, rec); err != nil {
			logger.Warnf(ctx, "Cache promotion into tier %d failed: %v", i, err)
		}
	}
}

// Put fans out to every tier; succeeds if at least one tier accepted the write.
func (c *Composite) Put(ctx context.Context, fp fingerprint.Fingerprint, rec lyrics.Record) error {
	var (
		anyOK  bool
		errsAll []error
	)

	for i, tier := range c.tiers {
		if err := tier.Put(ctx, fp, rec); err != nil {
			logger.Warnf(ctx, "Cache tier %d put failed: %v", i, err)
			errsAll = append(errsAll, err)

			continue
		}

		anyOK = true
	}

	if !anyOK {
		return errors.Join(errsAll...)
	}

	return nil
}

// Clear clears every tier, returning a combined error if any tier fails.
func (c *Composite) Clear(ctx context.Context) error {
	var errsAll []error

	for i, tier := range c.tiers {
		if err := tier.Clear(ctx); err != nil {
			logger.Warnf(ctx, "Cache tier %d clear failed: %v", i, err)
			errsAll = append(errsAll, err)
		}
	}

	return errors.Join(errsAll...)
}

// Stats aggregates counters across tiers and reports the maximum last_cleanup.
func (c *Composite) Stats() Stats {
	var agg Stats

	for _, tier := range c.tiers {
		s := tier.Stats()
		agg.TotalEntries += s.TotalEntries
		agg.TotalRequests += s.TotalRequests
		agg.Hits += s.Hits

		if s.LastCleanup.After(agg.LastCleanup) {
			agg.LastCleanup = s.LastCleanup
		}
	}

	return agg
}

// Cleanup sweeps every tier.
func (c *Composite) Cleanup(ctx context.Context) error {
	var errsAll []error

	for _, tier := range c.tiers {
		if err := tier.Cleanup(ctx); err != nil {
			errsAll = append(errsAll, err)
		}
	}

	return errors.Join(errsAll...)
}

// Flush flushes every tier.
func (c *Composite) Flush(ctx context.Context) error {
	var errsAll []error

	for _, tier := range c.tiers {
		if err := tier.Flush(ctx); err != nil {
			errsAll = append(errsAll, err)
		}
	}

	return errors.Join(errsAll...)
}
