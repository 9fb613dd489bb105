// Package lyrics defines the LyricsRecord sum type (§3) and the sidecar
// file writer (§6).
package lyrics

// Kind discriminates the LyricsRecord sum type.
type Kind int

const (
	// KindNotFound means neither the remote service nor any cache has an answer.
	KindNotFound Kind = iota
	// KindInstrumental means the track is known to have no lyrics.
	KindInstrumental
	// KindSynced means a time-synced (.lrc) payload is present.
	KindSynced
	// KindPlain means a plain-text (.txt) payload is present.
	KindPlain
	// KindBoth means both synced and plain payloads are present.
	KindBoth
)

// Source identifies which tier produced a Record, for observability only.
type Source string

const (
	// SourceMemory is the in-memory cache tier (§4.2.a).
	SourceMemory Source = "memory"
	// SourceRemoteKV is the remote-KV cache tier (§4.2.b).
	SourceRemoteKV Source = "remote_kv"
	// SourceFile is the file-index cache tier (§4.2.c).
	SourceFile Source = "file"
	// SourceMirror is the local mirror database (§4.3).
	SourceMirror Source = "mirror"
	// SourceAPI is the remote HTTP lyrics service (§4.4).
	SourceAPI Source = "api"
)

// Record is the sum type returned by a resolve: Instrumental | Synced(text)
// | Plain(text) | Both{synced, plain} | NotFound.
type Record struct {
	Kind         Kind
	SyncedText   string
	PlainText    string
	Source       Source

	// Title, Artist, Album and DurationSeconds carry the candidate's own
	// metadata as echoed by the tier that produced it (e.g. the remote
	// API's search results), so a scorer can compare this record against a
	// query independently of whatever query string produced the hit. Zero
	// for records built from a caller-supplied query (NotFound, Instrumental
	// constructed without a candidate) rather than a fetched candidate.
	Title           string
	Artist          string
	Album           string
	DurationSeconds float64
}

// NotFound is the first-class "no lyrics exist" result.
func NotFound(source Source) Record {
	return Record{Kind: KindNotFound, Source: source}
}

// Instrumental marks a track as known-instrumental.
func Instrumental(source Source) Record {
	return Record{Kind: KindInstrumental, Source: source}
}

// Synced wraps a time-synced payload.
func Synced(text string, source Source) Record {
	return Record{Kind: KindSynced, SyncedText: text, Source: source}
}

// Plain wraps a plain-text payload.
func Plain(text string, source Source) Record {
	return Record{Kind: KindPlain, PlainText: text, Source: source}
}

// Both wraps a record carrying both payloads.
func Both(synced, plain string, source Source) Record {
	return Record{Kind: KindBoth, SyncedText: synced, PlainText: plain, Source: source}
}

// FromPayload builds the correct Kind from raw payload presence, following
// lrclib's convention that an explicitly-true instrumental flag wins, then
// synced+plain both present, then whichever single payload is non-empty.
func FromPayload(syncedText, plainText string, instrumental bool, source Source) Record {
	if instrumental {
		return Instrumental(source)
	}

	switch {
	case syncedText != "" && plainText != "":
		return Both(syncedText, plainText, source)
	case syncedText != "":
		return Synced(syncedText, source)
	case plainText != "":
		return Plain(plainText, source)
	default:
		return NotFound(source)
	}
}

// HasSynced reports whether the record carries a synced payload.
func (r Record) HasSynced() bool {
	return r.Kind == KindSynced || r.Kind == KindBoth
}

// HasPlain reports whether the record carries a plain payload.
func (r Record) HasPlain() bool {
	return r.Kind == KindPlain || r.Kind == KindBoth
}

// IsMissing reports whether the record counts as missing for user-facing
// statistics (§9 open question: instrumental counts as missing even though
// it still produces a sidecar).
func (r Record) IsMissing() bool {
	return r.Kind == KindNotFound || r.Kind == KindInstrumental
}

// WithSource returns a copy of r tagged with a different source, used to tag
// mirror-DB rows and hits. Cache promotion stores records with their source
// unchanged.
func (r Record) WithSource(source Source) Record {
	r.Source = source

	return r
}

// WithMetadata returns a copy of r carrying the candidate's own
// title/artist/album/duration, used by tiers that echo this information on
// a search hit (§4.4) so a scorer can weigh the candidate against a query
// on its actual attributes rather than the query's own.
func (r Record) WithMetadata(title, artist, album string, durationSeconds float64) Record {
	r.Title = title
	r.Artist = artist
	r.Album = album
	r.DurationSeconds = durationSeconds

	return r
}
