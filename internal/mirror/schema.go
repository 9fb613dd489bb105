package mirror

// schema is applied once per freshly-opened database. It mirrors the
// Rust predecessor's lrclib_db.rs layout: tracks/lyrics tables with
// lowercase shadow columns for case-insensitive lookups, a trigger that
// relinks tracks.last_lyrics_id on every lyrics insert, and a metadata
// table for schema bookkeeping (§4.3, SPEC_FULL supplemented features).
// search_like and fuzzy_search (mirror.go) read the lowercase columns
// directly via LIKE and Go-side scoring rather than an FTS5 index: FTS5
// tokenizes on word boundaries, which doesn't express spec §4.3's
// "case-insensitive substring match" (a substring inside a word, not a
// whole-token prefix) without a trigram tokenizer this module has no way
// to confirm modernc.org/sqlite was built with.
const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA cache_size = -20000;

CREATE TABLE IF NOT EXISTS tracks (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	name            TEXT NOT NULL,
	name_lower      TEXT NOT NULL,
	artist          TEXT NOT NULL,
	artist_lower    TEXT NOT NULL,
	album           TEXT NOT NULL,
	album_lower     TEXT NOT NULL,
	duration        REAL NOT NULL,
	last_lyrics_id  INTEGER,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL,
	UNIQUE (name_lower, artist_lower, album_lower, duration)
);

CREATE INDEX IF NOT EXISTS idx_tracks_name_lower   ON tracks(name_lower);
CREATE INDEX IF NOT EXISTS idx_tracks_artist_lower ON tracks(artist_lower);
CREATE INDEX IF NOT EXISTS idx_tracks_album_lower  ON tracks(album_lower);
CREATE INDEX IF NOT EXISTS idx_tracks_duration     ON tracks(duration);

CREATE TABLE IF NOT EXISTS lyrics (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	track_id      INTEGER NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
	plain         TEXT,
	synced        TEXT,
	instrumental  INTEGER NOT NULL DEFAULT 0,
	source        TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lyrics_track_id ON lyrics(track_id);

CREATE TRIGGER IF NOT EXISTS set_tracks_last_lyrics_id AFTER INSERT ON lyrics BEGIN
	UPDATE tracks SET last_lyrics_id = new.id WHERE id = new.track_id;
END;

CREATE TABLE IF NOT EXISTS lrclib_metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// schemaVersion is written into lrclib_metadata on first open.
const schemaVersion = "1"
