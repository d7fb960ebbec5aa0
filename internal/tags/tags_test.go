package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectKeywords(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		album  string
		genres []string
		want   []Tag
	}{
		{
			name:  "christmas from title",
			title: "Jingle Bell Rock",
			want:  []Tag{TagChristmas},
		},
		{
			name:   "christmas from genre tag",
			title:  "Winter Song",
			genres: []string{"Holiday Pop"},
			want:   []Tag{TagChristmas},
		},
		{
			name:  "cover from album",
			title: "Hurt",
			album: "A Tribute to Nine Inch Nails",
			want:  []Tag{TagCover},
		},
		{
			name:  "live and acoustic stack",
			title: "Layla (Acoustic)",
			album: "MTV Unplugged",
			want:  []Tag{TagAcoustic, TagLive},
		},
		{
			name:  "orchestral and instrumental from title",
			title: "Main Theme (Orchestral Instrumental)",
			want:  []Tag{TagInstrumental, TagOrchestral},
		},
		{
			name:  "plain track",
			title: "Somebody to Love",
			album: "A Day at the Races",
			want:  []Tag{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Detect(tc.title, tc.album, tc.genres, nil)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDetectAudioFeatures(t *testing.T) {
	t.Run("liveness above threshold", func(t *testing.T) {
		got := Detect("Song", "Album", nil, &AudioFeatures{Liveness: 0.92})
		assert.Equal(t, []Tag{TagLive}, got)
	})

	t.Run("acousticness above threshold", func(t *testing.T) {
		got := Detect("Song", "Album", nil, &AudioFeatures{Acousticness: 0.75})
		assert.Equal(t, []Tag{TagAcoustic}, got)
	})

	t.Run("instrumentalness alone is not orchestral", func(t *testing.T) {
		got := Detect("Song", "Album", nil, &AudioFeatures{Instrumentalness: 0.9})
		assert.Equal(t, []Tag{TagInstrumental}, got)
	})

	t.Run("instrumental plus acoustic implies orchestral", func(t *testing.T) {
		got := Detect("Song", "Album", nil, &AudioFeatures{Instrumentalness: 0.9, Acousticness: 0.6})
		assert.Equal(t, []Tag{TagInstrumental, TagOrchestral}, got)
	})

	t.Run("below thresholds", func(t *testing.T) {
		got := Detect("Song", "Album", nil, &AudioFeatures{Liveness: 0.8, Acousticness: 0.7, Instrumentalness: 0.8})
		assert.Empty(t, got)
	})
}

func TestUnion(t *testing.T) {
	got := Union([]Tag{TagLive, TagAcoustic}, []Tag{TagLive, TagChristmas}, nil)
	assert.Equal(t, []Tag{TagAcoustic, TagChristmas, TagLive}, got)
}
