// Package mirror implements the local mirror database (§4.3): a
// persistent SQLite snapshot of prior lookups, searchable exactly, by
// substring, and fuzzily, and a write-through destination for results
// fetched from the remote HTTP tier.
package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/oshokin/lrc-harvester/internal/logger"
	"github.com/oshokin/lrc-harvester/internal/lyrics"
)

// durationToleranceSeconds is the ±5s exact-match window (§4.1, §4.3, §8).
const durationToleranceSeconds = 5.0

// searchLikeLimit bounds search_like results (§4.3).
const searchLikeLimit = 50

// fuzzyCandidateLimit bounds the rows pulled for fuzzy_search before scoring (§4.3).
const fuzzyCandidateLimit = 10_000

// fuzzyScoreThreshold is the minimum matcher-native score kept by fuzzy_search (§4.3).
const fuzzyScoreThreshold = 30

// Track is a mirror row pairing MirrorTrack with its most recent MirrorLyrics (§3).
type Track struct {
	ID           int64
	Name         string
	Artist       string
	Album        string
	Duration     float64
	Record       lyrics.Record
}

// Stats is the DatabaseStats diagnostic recovered from the Rust
// predecessor's get_statistics (SPEC_FULL supplemented features).
type Stats struct {
	TotalTracks        int64
	UniqueArtists      int64
	UniqueAlbums       int64
	SyncedCount        int64
	PlainCount         int64
	InstrumentalCount  int64
}

// DB wraps a *sql.DB opened against the mirror database file.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if absent) the mirror database at path and applies
// the schema idempotently.
func Open(ctx context.Context, path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror database: %w", err)
	}

	// WAL mode requires a single writer connection to avoid "database is locked" churn.
	conn.SetMaxOpenConns(1)

	if _, err = conn.ExecContext(ctx, schema); err != nil {
		conn.Close() //nolint:errcheck // Best effort on the error path.

		return nil, fmt.Errorf("failed to apply mirror schema: %w", err)
	}

	if _, err = conn.ExecContext(ctx,
		`INSERT INTO lrclib_metadata(key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO NOTHING`, schemaVersion); err != nil {
		logger.Warnf(ctx, "Failed to record mirror schema version: %v", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// SearchExact implements §4.3 search_exact: equal lowercased strings and
// duration within ±5s, returning the row closest by |Δduration|.
func (d *DB) SearchExact(ctx context.Context, title, artist, album string, duration float64) (*Track, bool, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT t.id, t.name, t.artist, t.album, t.duration,
		       l.plain, l.synced, l.instrumental, l.source
		FROM tracks t
		LEFT JOIN lyrics l ON l.id = t.last_lyrics_id
		WHERE t.name_lower = ? AND t.artist_lower = ? AND t.album_lower = ?
		  AND ABS(t.duration - ?) <= ?
		ORDER BY ABS(t.duration - ?) ASC
		LIMIT 1`,
		strings.ToLower(title), strings.ToLower(artist), strings.ToLower(album),
		duration, durationToleranceSeconds, duration)
	if err != nil {
		return nil, false, fmt.Errorf("search_exact query failed: %w", err)
	}

	defer rows.Close() //nolint:errcheck // Read-only cleanup.

	if !rows.Next() {
		return nil, false, rows.Err()
	}

	track, err := scanTrack(rows)
	if err != nil {
		return nil, false, err
	}

	return track, true, nil
}

// SearchLike implements §4.3 search_like: case-insensitive substring
// match, exact-lower matches first, then by descending id.
func (d *DB) SearchLike(ctx context.Context, title, artist, album, query string) ([]*Track, error) {
	pattern := "%" + strings.ToLower(query) + "%"

	rows, err := d.conn.QueryContext(ctx, `
		SELECT t.id, t.name, t.artist, t.album, t.duration,
		       l.plain, l.synced, l.instrumental, l.source
		FROM tracks t
		LEFT JOIN lyrics l ON l.id = t.last_lyrics_id
		WHERE t.name_lower LIKE ? OR t.artist_lower LIKE ? OR t.album_lower LIKE ?
		ORDER BY
			(t.name_lower = ? OR t.artist_lower = ? OR t.album_lower = ?) DESC,
			t.id DESC
		LIMIT ?`,
		pattern, pattern, pattern,
		strings.ToLower(title), strings.ToLower(artist), strings.ToLower(album),
		searchLikeLimit)
	if err != nil {
		return nil, fmt.Errorf("search_like query failed: %w", err)
	}

	defer rows.Close() //nolint:errcheck // Read-only cleanup.

	return scanTracks(rows)
}

// FuzzySearch implements §4.3 fuzzy_search, delegating scoring to the
// resolver package's shared weighted matcher via the scoreFn callback so
// the database layer stays free of resolver concerns.
func (d *DB) FuzzySearch(
	ctx context.Context,
	title, artist, album, query string,
	limit int,
	scoreFn func(candidateTitle, candidateArtist, candidateAlbum string) float64,
) ([]*Track, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT t.id, t.name, t.artist, t.album, t.duration,
		       l.plain, l.synced, l.instrumental, l.source
		FROM tracks t
		LEFT JOIN lyrics l ON l.id = t.last_lyrics_id
		LIMIT ?`, fuzzyCandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("fuzzy_search candidate query failed: %w", err)
	}

	candidates, err := scanTracks(rows)
	rows.Close() //nolint:errcheck,sqlclosecheck // Closed here, before scoring, instead of deferred.

	if err != nil {
		return nil, err
	}

	type scored = struct {
		track *Track
		score float64
	}

	var results []scored

	for _, c := range candidates {
		score := scoreFn(strings.ToLower(c.Name), strings.ToLower(c.Artist), strings.ToLower(c.Album))
		if score <= fuzzyScoreThreshold {
			continue
		}

		results = append(results, scored{track: c, score: score})
	}

	sortByScoreDesc(results)

	if len(results) > limit {
		results = results[:limit]
	}

	out := make([]*Track, len(results))
	for i, r := range results {
		out[i] = r.track
	}

	return out, nil
}

func sortByScoreDesc(items []struct {
	track *Track
	score float64
}) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].score > items[j-1].score; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

// InsertTrack implements §4.3 insert_track: upsert on the composite
// unique key, appending a lyrics row (and letting the trigger relink
// last_lyrics_id) when the record carries content.
func (d *DB) InsertTrack(ctx context.Context, title, artist, album string, duration float64, rec lyrics.Record) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin mirror transaction: %w", err)
	}

	defer tx.Rollback() //nolint:errcheck // No-op once committed.

	now := time.Now().UTC().Format(time.RFC3339)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tracks (name, name_lower, artist, artist_lower, album, album_lower, duration, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name_lower, artist_lower, album_lower, duration)
		DO UPDATE SET updated_at = excluded.updated_at
		`, title, strings.ToLower(title), artist, strings.ToLower(artist), album, strings.ToLower(album),
		duration, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert mirror track: %w", err)
	}

	// The id is looked up rather than taken from LastInsertId: an upsert that
	// takes the DO UPDATE path leaves the connection's last-insert rowid at
	// the previous insert's value.
	var trackID int64

	row := tx.QueryRowContext(ctx, `
		SELECT id FROM tracks WHERE name_lower = ? AND artist_lower = ? AND album_lower = ? AND duration = ?`,
		strings.ToLower(title), strings.ToLower(artist), strings.ToLower(album), duration)
	if err = row.Scan(&trackID); err != nil {
		return fmt.Errorf("failed to resolve upserted mirror track id: %w", err)
	}

	if rec.Kind != lyrics.KindNotFound {
		instrumental := 0
		if rec.Kind == lyrics.KindInstrumental {
			instrumental = 1
		}

		if _, err = tx.ExecContext(ctx, `
			INSERT INTO lyrics (track_id, plain, synced, instrumental, source, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			trackID, nullableString(rec.PlainText), nullableString(rec.SyncedText),
			instrumental, string(rec.Source), now); err != nil {
			return fmt.Errorf("failed to insert mirror lyrics row: %w", err)
		}
	}

	return tx.Commit()
}

// Statistics implements the supplemented DatabaseStats diagnostic.
func (d *DB) Statistics(ctx context.Context) (Stats, error) {
	var s Stats

	row := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks`)
	if err := row.Scan(&s.TotalTracks); err != nil {
		return s, err
	}

	row = d.conn.QueryRowContext(ctx, `SELECT COUNT(DISTINCT artist_lower) FROM tracks`)
	if err := row.Scan(&s.UniqueArtists); err != nil {
		return s, err
	}

	row = d.conn.QueryRowContext(ctx, `SELECT COUNT(DISTINCT album_lower) FROM tracks`)
	if err := row.Scan(&s.UniqueAlbums); err != nil {
		return s, err
	}

	row = d.conn.QueryRowContext(ctx, `
		SELECT
			SUM(CASE WHEN synced IS NOT NULL AND synced != '' THEN 1 ELSE 0 END),
			SUM(CASE WHEN plain IS NOT NULL AND plain != '' THEN 1 ELSE 0 END),
			SUM(instrumental)
		FROM lyrics`)
	if err := row.Scan(&s.SyncedCount, &s.PlainCount, &s.InstrumentalCount); err != nil {
		return s, err
	}

	return s, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}

	return s
}

func scanTrack(rows *sql.Rows) (*Track, error) {
	var (
		id                    int64
		name, artist, album   string
		duration              float64
		plain, synced, source sql.NullString
		instrumental          sql.NullInt64
	)

	if err := rows.Scan(&id, &name, &artist, &album, &duration, &plain, &synced, &instrumental, &source); err != nil {
		return nil, fmt.Errorf("failed to scan mirror track row: %w", err)
	}

	rec := lyrics.FromPayload(synced.String, plain.String, instrumental.Int64 != 0, lyrics.SourceMirror)
	if source.Valid && source.String != "" {
		rec = rec.WithSource(lyrics.Source(source.String))
	}

	return &Track{ID: id, Name: name, Artist: artist, Album: album, Duration: duration, Record: rec}, nil
}

func scanTracks(rows *sql.Rows) ([]*Track, error) {
	var out []*Track

	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, t)
	}

	return out, rows.Err()
}
