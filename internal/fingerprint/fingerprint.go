// Package fingerprint derives the canonical cache/mirror lookup key for a
// track (§3): (lower(title), lower(artist), lower(album), round(duration)).
package fingerprint

import (
	"fmt"
	"math"
	"strings"
)

// Fingerprint is the stable lookup key shared by every cache tier and the
// mirror database. Its String() form is the literal cache key, so it must
// stay identical across tiers for warm-writes to repopulate one another.
type Fingerprint struct {
	TitleLower  string
	ArtistLower string
	AlbumLower  string
	Duration    int64 // rounded seconds
}

// New builds a Fingerprint from raw metadata, normalizing case and rounding
// duration to the nearest second.
func New(title, artist, album string, durationSeconds float64) Fingerprint {
	return Fingerprint{
		TitleLower:  strings.ToLower(strings.TrimSpace(title)),
		ArtistLower: strings.ToLower(strings.TrimSpace(artist)),
		AlbumLower:  strings.ToLower(strings.TrimSpace(album)),
		Duration:    int64(math.Round(durationSeconds)),
	}
}

// String renders the fingerprint as the cache key. The format is internal
// and must never change shape without a cache-index migration.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%s|%s|%s|%d", f.TitleLower, f.ArtistLower, f.AlbumLower, f.Duration)
}
