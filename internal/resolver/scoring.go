package resolver

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/oshokin/lrc-harvester/internal/lyrics"
)

// acceptThreshold is the minimum score (§4.1 step 7, §8) a candidate must
// clear to be accepted instead of NotFound. Exactly 2.0 accepts; 1.999 rejects.
const acceptThreshold = 2.0

// durationToleranceSeconds matches the mirror DB's exact-match window (§4.1, §8).
const durationToleranceSeconds = 5.0

// candidate is anything the scorer can weigh: a track's title/artist/album
// plus optional duration and synced-lyrics presence.
type candidate struct {
	title, artist, album string
	durationSeconds      float64
	hasSynced            bool
}

// score implements §4.1 step 7's weighted substring/equality scoring:
// title weight 3 (exact-lower) / 2 (containment), artist 2/1, album 1/0.5,
// duration match +0.5, has_synced +0.2.
func score(query candidate, c candidate) float64 {
	var total float64

	total += fieldScore(query.title, c.title, 3, 2)
	total += fieldScore(query.artist, c.artist, 2, 1)
	total += fieldScore(query.album, c.album, 1, 0.5)

	if query.durationSeconds > 0 && c.durationSeconds > 0 {
		delta := query.durationSeconds - c.durationSeconds
		if delta < 0 {
			delta = -delta
		}

		if delta < durationToleranceSeconds {
			total += 0.5
		}
	}

	if c.hasSynced {
		total += 0.2
	}

	return total
}

func fieldScore(query, value string, exactWeight, containsWeight float64) float64 {
	if query == "" || value == "" {
		return 0
	}

	ql, vl := strings.ToLower(query), strings.ToLower(value)

	if ql == vl {
		return exactWeight
	}

	if strings.Contains(vl, ql) || strings.Contains(ql, vl) {
		return containsWeight
	}

	return 0
}

// accept reports whether a candidate's score clears the strict threshold.
func accept(s float64) bool {
	return s >= acceptThreshold
}

// mirrorFuzzyScore adapts the §4.1 weights into a fuzzysearch-native score
// for the mirror DB's fuzzy_search (§4.3), which uses a Smith-Waterman-style
// matcher instead of plain substring comparison.
func mirrorFuzzyScore(queryTitle, queryArtist, queryAlbum, query string, candTitle, candArtist, candAlbum string) float64 {
	var total float64

	total += fuzzyFieldScore(queryTitle, candTitle, 3)
	total += fuzzyFieldScore(queryArtist, candArtist, 2)
	total += fuzzyFieldScore(queryAlbum, candAlbum, 1)
	total += fuzzyFieldScore(query, candTitle+" "+candArtist+" "+candAlbum, 2)

	return total
}

func fuzzyFieldScore(query, value string, weight float64) float64 {
	if query == "" || value == "" {
		return 0
	}

	if !fuzzy.MatchFold(query, value) {
		return 0
	}

	// RankMatchFold is an edit distance: the closer the match, the lower it is.
	return weight * float64(len(value)-fuzzy.RankMatchFold(query, value)+1) / float64(len(value)+1) * 10
}

// recordHasSynced is a small adapter so scoring can read a lyrics.Record
// without the scoring file importing the full resolver state.
func recordHasSynced(r lyrics.Record) bool {
	return r.HasSynced()
}
