package resolver

import "strings"

// variation is one synthesized search query (§4.1 step 7).
type variation struct {
	title, artist, album, query string
}

// searchVariations implements the SUPPLEMENTED search-variation fallback
// recovered from lrclib.rs::generate_search_variations: the original
// title+artist+album, then progressively looser variants, deduplicated.
func searchVariations(t Track) []variation {
	var out []variation

	seen := make(map[variation]struct{})

	add := func(v variation) {
		if v.title == "" && v.artist == "" && v.album == "" && v.query == "" {
			return
		}

		if _, ok := seen[v]; ok {
			return
		}

		seen[v] = struct{}{}
		out = append(out, v)
	}

	add(variation{title: t.Title, artist: t.Artist, album: t.Album})
	add(variation{title: t.Title, artist: t.Artist})
	add(variation{title: firstWord(t.Title)})
	add(variation{title: lastWord(t.Title)})
	add(variation{artist: t.Artist})
	add(variation{query: strings.TrimSpace(t.Title + " " + t.Artist)})

	return out
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}

	return fields[0]
}

func lastWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}

	return fields[len(fields)-1]
}
