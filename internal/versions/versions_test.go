package versions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackstar-srv/internal/models"
)

type fakeCorpus struct {
	byISRC   map[string][]models.TrackRecord
	byArtist map[string][]models.TrackRecord
}

func (f *fakeCorpus) TracksByISRC(artist, isrc string) ([]models.TrackRecord, error) {
	return f.byISRC[artist+"|"+isrc], nil
}

func (f *fakeCorpus) TracksByArtist(artist string) ([]models.TrackRecord, error) {
	return f.byArtist[artist], nil
}

func (f *fakeCorpus) AlbumTracks(artist, album string) ([]models.TrackRecord, error) {
	return nil, nil
}

func TestMatchISRCFirst(t *testing.T) {
	corpus := &fakeCorpus{
		byISRC: map[string][]models.TrackRecord{
			"Queen|GBUM71029604": {
				{ID: "a", Title: "Bohemian Rhapsody", Artist: "Queen", ISRC: "GBUM71029604", Popularity: 85},
				{ID: "b", Title: "Bohemian Rhapsody (Live)", Artist: "Queen", ISRC: "GBUM71029604", Popularity: 60},
			},
		},
		byArtist: map[string][]models.TrackRecord{
			// Would match by title, but must never be reached when ISRC hits.
			"Queen": {{ID: "c", Title: "Bohemian Rhapsody", Artist: "Queen", Popularity: 99}},
		},
	}

	target := models.TrackRecord{Title: "Bohemian Rhapsody", Artist: "Queen", ISRC: "GBUM71029604", Duration: 354}
	got, err := Match(corpus, target)
	require.NoError(t, err)

	// The live recording shares the ISRC but fails the live-context filter.
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestMatchTitleFallback(t *testing.T) {
	corpus := &fakeCorpus{
		byArtist: map[string][]models.TrackRecord{
			"Queen": {
				{ID: "a", Title: "Somebody to Love", Artist: "Queen", Duration: 296, Popularity: 70},
				{ID: "b", Title: "Somebody To Love - 2011 Remaster", Artist: "Queen", Duration: 297, Popularity: 65},
				{ID: "c", Title: "Somebody to Love", Artist: "Queen", Duration: 340, Popularity: 50}, // outside ±2s
				{ID: "d", Title: "Somebody to Love (Live)", Artist: "Queen", Duration: 296, Popularity: 40},
				{ID: "e", Title: "Another One Bites the Dust", Artist: "Queen", Duration: 296, Popularity: 80},
			},
		},
	}

	target := models.TrackRecord{Title: "Somebody to Love", Artist: "Queen", Duration: 296}
	got, err := Match(corpus, target)
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, v := range got {
		ids = append(ids, v.ID)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestMatchISRCMissFallsBack(t *testing.T) {
	corpus := &fakeCorpus{
		byISRC: map[string][]models.TrackRecord{},
		byArtist: map[string][]models.TrackRecord{
			"Queen": {{ID: "a", Title: "Somebody to Love", Artist: "Queen", Duration: 296}},
		},
	}

	target := models.TrackRecord{Title: "Somebody to Love", Artist: "Queen", ISRC: "NOPE", Duration: 295}
	got, err := Match(corpus, target)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestMatchNoISRCNoDuration(t *testing.T) {
	corpus := &fakeCorpus{
		byArtist: map[string][]models.TrackRecord{
			"Queen": {
				{ID: "a", Title: "Somebody to Love", Artist: "Queen", Duration: 296},
				{ID: "b", Title: "Somebody to Love", Artist: "Queen", Duration: 500},
			},
		},
	}

	// Unknown target duration leaves the duration window unconstrained.
	target := models.TrackRecord{Title: "Somebody to Love", Artist: "Queen"}
	got, err := Match(corpus, target)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMatchLiveTargetKeepsLiveVersions(t *testing.T) {
	corpus := &fakeCorpus{
		byArtist: map[string][]models.TrackRecord{
			"Queen": {
				{ID: "studio", Title: "Love of My Life", Artist: "Queen", Duration: 219},
				{ID: "live", Title: "Love of My Life (Live)", Artist: "Queen", Duration: 219},
			},
		},
	}

	target := models.TrackRecord{Title: "Love of My Life", Artist: "Queen", Album: "Live Killers", Duration: 219}
	got, err := Match(corpus, target)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "live", got[0].ID)
}

func TestGlobalPopularity(t *testing.T) {
	mk := func(pop float64, alt bool) models.TrackVersion {
		return models.TrackVersion{TrackRecord: models.TrackRecord{Popularity: pop}, IsAlternate: alt}
	}

	t.Run("alternate versions never win", func(t *testing.T) {
		got := GlobalPopularity([]models.TrackVersion{mk(50, false), mk(80, true), mk(70, false)})
		assert.Equal(t, 70.0, got)
	})

	t.Run("no canonical versions", func(t *testing.T) {
		assert.Equal(t, 0.0, GlobalPopularity([]models.TrackVersion{mk(80, true)}))
		assert.Equal(t, 0.0, GlobalPopularity(nil))
	})

	t.Run("zero popularity does not participate", func(t *testing.T) {
		got := GlobalPopularity([]models.TrackVersion{mk(0, false), mk(30, false)})
		assert.Equal(t, 30.0, got)
	})
}

func TestDescribe(t *testing.T) {
	v := Describe(models.TrackRecord{Title: "Song (Remix)", Album: "Unplugged Sessions"})
	assert.True(t, v.IsAlternate)
	assert.True(t, v.IsLive)

	v = Describe(models.TrackRecord{Title: "Song", Album: "Studio Album"})
	assert.False(t, v.IsAlternate)
	assert.False(t, v.IsLive)
}
