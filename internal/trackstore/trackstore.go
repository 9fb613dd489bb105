// Package trackstore implements the durable track catalog (§4.5): a
// SQLite-backed table of observed audio files keyed by file path.
package trackstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;

CREATE TABLE IF NOT EXISTS tracks (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	file_path     TEXT NOT NULL UNIQUE,
	title         TEXT NOT NULL DEFAULT '',
	artist        TEXT NOT NULL DEFAULT '',
	album         TEXT NOT NULL DEFAULT '',
	album_artist  TEXT NOT NULL DEFAULT '',
	duration      REAL NOT NULL DEFAULT 0,
	track_number  INTEGER,
	plain_lyrics  TEXT,
	synced_lyrics TEXT,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist);
CREATE INDEX IF NOT EXISTS idx_tracks_album  ON tracks(album);
CREATE INDEX IF NOT EXISTS idx_tracks_title  ON tracks(title);

CREATE TABLE IF NOT EXISTS directories (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE
);
`

// Track is the durable catalog row (§3 Track).
type Track struct {
	ID           int64
	FilePath     string
	Title        string
	Artist       string
	Album        string
	AlbumArtist  string
	Duration     float64
	TrackNumber  *int64
	PlainLyrics  string
	SyncedLyrics string
}

// HasLyrics reports whether either sidecar payload column is populated,
// the negation of the condition ListAll's missingLyrics filter applies in SQL.
func (t *Track) HasLyrics() bool {
	return t.PlainLyrics != "" || t.SyncedLyrics != ""
}

// Store wraps the track-store database connection.
type Store struct {
	conn *sql.DB
}

// Open opens (creating if absent) the track store at path.
func Open(ctx context.Context, path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open track store: %w", err)
	}

	conn.SetMaxOpenConns(1)

	if _, err = conn.ExecContext(ctx, schema); err != nil {
		conn.Close() //nolint:errcheck // Best effort on the error path.

		return nil, fmt.Errorf("failed to apply track store schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// AddTrack upserts by file path, refreshing updated_at (§4.5).
func (s *Store) AddTrack(ctx context.Context, t *Track) error {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO tracks (file_path, title, artist, album, album_artist, duration, track_number,
		                     plain_lyrics, synced_lyrics, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (file_path) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			album_artist = excluded.album_artist,
			duration = excluded.duration,
			track_number = excluded.track_number,
			plain_lyrics = excluded.plain_lyrics,
			synced_lyrics = excluded.synced_lyrics,
			updated_at = excluded.updated_at`,
		t.FilePath, t.Title, t.Artist, t.Album, t.AlbumArtist, t.Duration, t.TrackNumber,
		nullableString(t.PlainLyrics), nullableString(t.SyncedLyrics), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert track %q: %w", t.FilePath, err)
	}

	return nil
}

// GetTrack reads a track by its primary key.
func (s *Store) GetTrack(ctx context.Context, id int64) (*Track, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, file_path, title, artist, album, album_artist, duration, track_number,
		       plain_lyrics, synced_lyrics
		FROM tracks WHERE id = ?`, id)

	return scanTrack(row)
}

// GetByPath reads a track by its file path.
func (s *Store) GetByPath(ctx context.Context, path string) (*Track, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, file_path, title, artist, album, album_artist, duration, track_number,
		       plain_lyrics, synced_lyrics
		FROM tracks WHERE file_path = ?`, path)

	return scanTrack(row)
}

// ListAll returns every track, optionally filtered by missingLyrics,
// artist substring and album substring (§4.6 filtering, applied here so
// the scheduler can prefilter before scheduling).
func (s *Store) ListAll(ctx context.Context, missingLyrics bool, artistFilter, albumFilter string) ([]*Track, error) {
	query := `SELECT id, file_path, title, artist, album, album_artist, duration, track_number,
	                 plain_lyrics, synced_lyrics FROM tracks WHERE 1=1`

	var args []any

	if missingLyrics {
		query += ` AND (plain_lyrics IS NULL OR plain_lyrics = '') AND (synced_lyrics IS NULL OR synced_lyrics = '')`
	}

	if artistFilter != "" {
		query += ` AND LOWER(artist) LIKE ?`
		args = append(args, "%"+lowerASCII(artistFilter)+"%")
	}

	if albumFilter != "" {
		query += ` AND LOWER(album) LIKE ?`
		args = append(args, "%"+lowerASCII(albumFilter)+"%")
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}

	defer rows.Close() //nolint:errcheck // Read-only cleanup.

	var out []*Track

	for rows.Next() {
		t, err := scanTrackRows(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, t)
	}

	return out, rows.Err()
}

// ListDirectories returns every registered library root.
func (s *Store) ListDirectories(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT path FROM directories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list directories: %w", err)
	}

	defer rows.Close() //nolint:errcheck // Read-only cleanup.

	var out []string

	for rows.Next() {
		var p string

		if err = rows.Scan(&p); err != nil {
			return nil, err
		}

		out = append(out, p)
	}

	return out, rows.Err()
}

// AddDirectory registers path as a library root, idempotently.
func (s *Store) AddDirectory(ctx context.Context, path string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO directories (path) VALUES (?) ON CONFLICT (path) DO NOTHING`, path)
	if err != nil {
		return fmt.Errorf("failed to add directory %q: %w", path, err)
	}

	return nil
}

// ClearTracks drops all track rows.
func (s *Store) ClearTracks(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM tracks`)
	if err != nil {
		return fmt.Errorf("failed to clear tracks: %w", err)
	}

	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}

	return s
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}

	return string(b)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row *sql.Row) (*Track, error) {
	return scanAny(row)
}

func scanTrackRows(rows *sql.Rows) (*Track, error) {
	return scanAny(rows)
}

func scanAny(scanner rowScanner) (*Track, error) {
	var (
		t                  Track
		album, albumArtist sql.NullString
		trackNumber        sql.NullInt64
		plain, synced      sql.NullString
	)

	err := scanner.Scan(&t.ID, &t.FilePath, &t.Title, &t.Artist, &album, &albumArtist, &t.Duration,
		&trackNumber, &plain, &synced)
	if err != nil {
		if err == sql.ErrNoRows { //nolint:errorlint // database/sql's documented sentinel comparison.
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan track row: %w", err)
	}

	t.Album = album.String
	t.AlbumArtist = albumArtist.String
	t.PlainLyrics = plain.String
	t.SyncedLyrics = synced.String

	if trackNumber.Valid {
		t.TrackNumber = &trackNumber.Int64
	}

	return &t, nil
}
