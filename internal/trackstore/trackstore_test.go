package trackstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/lrc-harvester/internal/trackstore"
)

func openTestStore(t *testing.T) *trackstore.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tracks.db")

	store, err := trackstore.Open(context.Background(), path)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestAddTrack_ThenGetByPath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	track := &trackstore.Track{
		FilePath: "/music/Artist - Title.mp3",
		Title:    "Title",
		Artist:   "Artist",
		Album:    "Album",
		Duration: 200,
	}

	require.NoError(t, store.AddTrack(ctx, track))

	got, err := store.GetByPath(ctx, "/music/Artist - Title.mp3")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Title", got.Title)
	assert.False(t, got.HasLyrics())
}

func TestAddTrack_UpsertsByFilePath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	path := "/music/Artist - Title.mp3"

	require.NoError(t, store.AddTrack(ctx, &trackstore.Track{FilePath: path, Title: "Old Title"}))
	require.NoError(t, store.AddTrack(ctx, &trackstore.Track{FilePath: path, Title: "New Title"}))

	got, err := store.GetByPath(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "New Title", got.Title)

	all, err := store.ListAll(ctx, false, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 1, "re-adding the same path must update, not duplicate")
}

func TestGetByPath_NotFoundReturnsNilNoError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	got, err := store.GetByPath(ctx, "/does/not/exist.mp3")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTrack_HasLyrics(t *testing.T) {
	t.Parallel()

	assert.False(t, (&trackstore.Track{}).HasLyrics())
	assert.True(t, (&trackstore.Track{PlainLyrics: "x"}).HasLyrics())
	assert.True(t, (&trackstore.Track{SyncedLyrics: "x"}).HasLyrics())
}

func TestListAll_FiltersByMissingLyrics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.AddTrack(ctx, &trackstore.Track{FilePath: "/a.mp3", Title: "A"}))
	require.NoError(t, store.AddTrack(ctx, &trackstore.Track{
		FilePath: "/b.mp3", Title: "B", SyncedLyrics: "[00:01.00]x",
	}))

	missing, err := store.ListAll(ctx, true, "", "")
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "/a.mp3", missing[0].FilePath)
}

func TestListAll_FiltersByArtistAndAlbumSubstring(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.AddTrack(ctx, &trackstore.Track{
		FilePath: "/a.mp3", Title: "A", Artist: "Ed Sheeran", Album: "Divide",
	}))
	require.NoError(t, store.AddTrack(ctx, &trackstore.Track{
		FilePath: "/b.mp3", Title: "B", Artist: "Other Artist", Album: "Other Album",
	}))

	byArtist, err := store.ListAll(ctx, false, "sheeran", "")
	require.NoError(t, err)
	require.Len(t, byArtist, 1)
	assert.Equal(t, "/a.mp3", byArtist[0].FilePath)

	byAlbum, err := store.ListAll(ctx, false, "", "divide")
	require.NoError(t, err)
	require.Len(t, byAlbum, 1)
	assert.Equal(t, "/a.mp3", byAlbum[0].FilePath)
}

func TestAddDirectory_IsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.AddDirectory(ctx, "/music"))
	require.NoError(t, store.AddDirectory(ctx, "/music"))

	dirs, err := store.ListDirectories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/music"}, dirs)
}

func TestClearTracks_RemovesAllRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.AddTrack(ctx, &trackstore.Track{FilePath: "/a.mp3", Title: "A"}))
	require.NoError(t, store.ClearTracks(ctx))

	all, err := store.ListAll(ctx, false, "", "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAddTrack_PreservesTrackNumber(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	trackNum := int64(7)
	require.NoError(t, store.AddTrack(ctx, &trackstore.Track{
		FilePath: "/a.mp3", Title: "A", TrackNumber: &trackNum,
	}))

	got, err := store.GetByPath(ctx, "/a.mp3")
	require.NoError(t, err)
	require.NotNil(t, got.TrackNumber)
	assert.Equal(t, trackNum, *got.TrackNumber)
}
