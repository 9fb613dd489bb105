package lyrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oshokin/lrc-harvester/internal/lyrics"
)

func TestFromPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		synced       string
		plain        string
		instrumental bool
		wantKind     lyrics.Kind
	}{
		{"instrumental wins over any payload", "[00:01.00]la la", "la la", true, lyrics.KindInstrumental},
		{"both payloads present", "[00:01.00]la la", "la la", false, lyrics.KindBoth},
		{"synced only", "[00:01.00]la la", "", false, lyrics.KindSynced},
		{"plain only", "", "la la", false, lyrics.KindPlain},
		{"neither payload", "", "", false, lyrics.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			record := lyrics.FromPayload(tt.synced, tt.plain, tt.instrumental, lyrics.SourceAPI)
			assert.Equal(t, tt.wantKind, record.Kind)
			assert.Equal(t, lyrics.SourceAPI, record.Source)
		})
	}
}

func TestRecord_HasSyncedHasPlain(t *testing.T) {
	t.Parallel()

	assert.True(t, lyrics.Synced("x", lyrics.SourceMemory).HasSynced())
	assert.False(t, lyrics.Synced("x", lyrics.SourceMemory).HasPlain())

	assert.True(t, lyrics.Plain("x", lyrics.SourceMemory).HasPlain())
	assert.False(t, lyrics.Plain("x", lyrics.SourceMemory).HasSynced())

	both := lyrics.Both("sync", "plain", lyrics.SourceMemory)
	assert.True(t, both.HasSynced())
	assert.True(t, both.HasPlain())

	assert.False(t, lyrics.NotFound(lyrics.SourceMemory).HasSynced())
	assert.False(t, lyrics.NotFound(lyrics.SourceMemory).HasPlain())
}

func TestRecord_IsMissing(t *testing.T) {
	t.Parallel()

	assert.True(t, lyrics.NotFound(lyrics.SourceAPI).IsMissing())
	assert.True(t, lyrics.Instrumental(lyrics.SourceAPI).IsMissing())
	assert.False(t, lyrics.Synced("x", lyrics.SourceAPI).IsMissing())
	assert.False(t, lyrics.Plain("x", lyrics.SourceAPI).IsMissing())
	assert.False(t, lyrics.Both("x", "y", lyrics.SourceAPI).IsMissing())
}

func TestRecord_WithSource(t *testing.T) {
	t.Parallel()

	original := lyrics.Synced("lyrics text", lyrics.SourceAPI)
	promoted := original.WithSource(lyrics.SourceMemory)

	assert.Equal(t, lyrics.SourceMemory, promoted.Source)
	assert.Equal(t, lyrics.SourceAPI, original.Source, "WithSource must not mutate the receiver")
	assert.Equal(t, original.SyncedText, promoted.SyncedText)
}

func TestRecord_WithMetadata(t *testing.T) {
	t.Parallel()

	original := lyrics.Synced("lyrics text", lyrics.SourceAPI)
	tagged := original.WithMetadata("Title", "Artist", "Album", 200)

	assert.Equal(t, "Title", tagged.Title)
	assert.Equal(t, "Artist", tagged.Artist)
	assert.Equal(t, "Album", tagged.Album)
	assert.InDelta(t, 200, tagged.DurationSeconds, 0)
	assert.Empty(t, original.Title, "WithMetadata must not mutate the receiver")
}
