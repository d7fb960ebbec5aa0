package corpus

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackstar-srv/internal/models"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := Open(db)
	require.NoError(t, err)
	return store
}

func TestUpsertAndQuery(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.UpsertTrack(models.TrackRecord{
		ID: "t1", Title: "Bohemian Rhapsody", Artist: "Queen",
		Album: "A Night at the Opera", ISRC: "GBUM71029604",
		Duration: 354, Popularity: 85,
	}))
	require.NoError(t, store.UpsertTrack(models.TrackRecord{
		ID: "t2", Title: "Bohemian Rhapsody", Artist: "Queen",
		Album: "Greatest Hits", ISRC: "GBUM71029604", Popularity: 80,
	}))

	byISRC, err := store.TracksByISRC("Queen", "GBUM71029604")
	require.NoError(t, err)
	assert.Len(t, byISRC, 2)

	byArtist, err := store.TracksByArtist("Queen")
	require.NoError(t, err)
	assert.Len(t, byArtist, 2)

	albumTracks, err := store.AlbumTracks("Queen", "Greatest Hits")
	require.NoError(t, err)
	require.Len(t, albumTracks, 1)
	assert.Equal(t, "t2", albumTracks[0].ID)
}

func TestUpsertKeepsRicherFields(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.UpsertTrack(models.TrackRecord{
		ID: "t1", Title: "Song", Artist: "Queen", ISRC: "ISRC1",
		Duration: 200, Popularity: 70, SpotifySingle: true,
	}))
	// A sparser re-import must not wipe the ISRC, duration or single flag.
	require.NoError(t, store.UpsertTrack(models.TrackRecord{
		ID: "t1", Title: "Song", Artist: "Queen",
	}))

	tracks, err := store.TracksByArtist("Queen")
	require.NoError(t, err)
	require.Len(t, tracks, 1)

	got := tracks[0]
	assert.Equal(t, "ISRC1", got.ISRC)
	assert.Equal(t, 200.0, got.Duration)
	assert.Equal(t, 70.0, got.Popularity)
	assert.True(t, got.SpotifySingle)
}

func TestSaveScore(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.UpsertTrack(models.TrackRecord{ID: "t1", Title: "Song", Artist: "Queen"}))

	det := models.DetectionResult{
		IsSingle:         true,
		Confidence:       models.ConfidenceHigh,
		Sources:          []string{models.SourceSpotify, models.SourceDiscogs},
		GlobalPopularity: 85,
		ZScore:           1.4,
	}
	require.NoError(t, store.SaveScore("t1", det, models.RatingDecision{Stars: 5, Reason: "test"}))

	var confidence, sources string
	var stars int
	row := store.db.QueryRow(`SELECT single_confidence, single_sources, stars FROM tracks WHERE id = 't1'`)
	require.NoError(t, row.Scan(&confidence, &sources, &stars))
	assert.Equal(t, "high", confidence)
	assert.Equal(t, "spotify,discogs", sources)
	assert.Equal(t, 5, stars)
}

func TestAlbums(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.UpsertTrack(models.TrackRecord{ID: "1", Title: "A", Artist: "Queen", Album: "Jazz"}))
	require.NoError(t, store.UpsertTrack(models.TrackRecord{ID: "2", Title: "B", Artist: "Queen", Album: "Jazz"}))
	require.NoError(t, store.UpsertTrack(models.TrackRecord{ID: "3", Title: "C", Artist: "Queen", Album: "News of the World"}))
	require.NoError(t, store.UpsertTrack(models.TrackRecord{ID: "4", Title: "Loose", Artist: "Queen"}))

	albums, err := store.Albums()
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"Queen", "Jazz"}, {"Queen", "News of the World"}}, albums)
}
