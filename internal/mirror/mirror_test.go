package mirror_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/lrc-harvester/internal/lyrics"
	"github.com/oshokin/lrc-harvester/internal/mirror"
)

func openTestDB(t *testing.T) *mirror.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mirror.db")

	db, err := mirror.Open(context.Background(), path)
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestInsertTrack_ThenSearchExact_RoundTrips(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)

	rec := lyrics.Synced("[00:01.00]la la", lyrics.SourceAPI)
	require.NoError(t, db.InsertTrack(ctx, "Shape Of You", "Ed Sheeran", "Divide", 233, rec))

	track, ok, err := db.SearchExact(ctx, "shape of you", "ed sheeran", "divide", 233)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Shape Of You", track.Name)
	assert.True(t, track.Record.HasSynced())
}

func TestSearchExact_DurationToleranceBoundary(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)

	rec := lyrics.Plain("la la", lyrics.SourceAPI)
	require.NoError(t, db.InsertTrack(ctx, "Title", "Artist", "Album", 200, rec))

	t.Run("within 5s tolerance matches", func(t *testing.T) {
		t.Parallel()

		_, ok, err := db.SearchExact(ctx, "Title", "Artist", "Album", 205)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("exactly at 5s tolerance matches", func(t *testing.T) {
		t.Parallel()

		_, ok, err := db.SearchExact(ctx, "Title", "Artist", "Album", 200+5.0)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("beyond 5s tolerance does not match", func(t *testing.T) {
		t.Parallel()

		_, ok, err := db.SearchExact(ctx, "Title", "Artist", "Album", 200+5.001)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSearchExact_Miss(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)

	_, ok, err := db.SearchExact(ctx, "Nonexistent", "Nobody", "Nowhere", 100)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInsertTrack_UpsertsOnCompositeKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.InsertTrack(ctx, "Title", "Artist", "Album", 200, lyrics.Plain("v1", lyrics.SourceAPI)))
	require.NoError(t, db.InsertTrack(ctx, "Title", "Artist", "Album", 200, lyrics.Plain("v2", lyrics.SourceAPI)))

	track, ok, err := db.SearchExact(ctx, "Title", "Artist", "Album", 200)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", track.Record.PlainText, "re-inserting the same key must update the existing row, not duplicate it")

	stats, err := db.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalTracks)
}

func TestSearchLike_SubstringMatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.InsertTrack(ctx, "Shape Of You", "Ed Sheeran", "Divide", 233,
		lyrics.Synced("x", lyrics.SourceAPI)))
	require.NoError(t, db.InsertTrack(ctx, "Perfect", "Ed Sheeran", "Divide", 263,
		lyrics.Synced("y", lyrics.SourceAPI)))
	require.NoError(t, db.InsertTrack(ctx, "Unrelated Song", "Other Artist", "Other Album", 180,
		lyrics.Synced("z", lyrics.SourceAPI)))

	results, err := db.SearchLike(ctx, "", "", "", "sheeran")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFuzzySearch_FiltersByThresholdAndLimits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.InsertTrack(ctx, "Alpha Song", "Alpha Artist", "Alpha Album", 100,
		lyrics.Synced("a", lyrics.SourceAPI)))
	require.NoError(t, db.InsertTrack(ctx, "Beta Song", "Beta Artist", "Beta Album", 100,
		lyrics.Synced("b", lyrics.SourceAPI)))

	scoreFn := func(title, _, _ string) float64 {
		if title == "alpha song" {
			return 95
		}

		return 10
	}

	results, err := db.FuzzySearch(ctx, "Alpha Song", "Alpha Artist", "Alpha Album", "alpha song", 10, scoreFn)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Alpha Song", results[0].Name)
}

func TestFuzzySearch_RespectsLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, db.InsertTrack(ctx, "Song", "Artist", "Album", float64(100+i),
			lyrics.Synced("x", lyrics.SourceAPI)))
	}

	scoreFn := func(_, _, _ string) float64 { return 50 }

	results, err := db.FuzzySearch(ctx, "Song", "Artist", "Album", "song", 2, scoreFn)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestStatistics_CountsSyncedPlainInstrumental(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.InsertTrack(ctx, "S", "A", "Al", 100, lyrics.Synced("x", lyrics.SourceAPI)))
	require.NoError(t, db.InsertTrack(ctx, "P", "A", "Al", 101, lyrics.Plain("y", lyrics.SourceAPI)))
	require.NoError(t, db.InsertTrack(ctx, "I", "A", "Al", 102, lyrics.Instrumental(lyrics.SourceAPI)))

	stats, err := db.Statistics(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.TotalTracks)
	assert.Equal(t, int64(1), stats.UniqueArtists)
	assert.Equal(t, int64(1), stats.UniqueAlbums)
	assert.Equal(t, int64(1), stats.SyncedCount)
	assert.Equal(t, int64(1), stats.PlainCount)
	assert.Equal(t, int64(1), stats.InstrumentalCount)
}

func TestInsertTrack_NotFoundRecordSkipsLyricsRow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.InsertTrack(ctx, "Title", "Artist", "Album", 100, lyrics.NotFound(lyrics.SourceAPI)))

	track, ok, err := db.SearchExact(ctx, "Title", "Artist", "Album", 100)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, lyrics.KindNotFound, track.Record.Kind)
}
