package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/zmb3/spotify/v2"

	"trackstar-srv/internal/models"
	"trackstar-srv/internal/tags"
	"trackstar-srv/internal/titlenorm"
)

// Spotify confirms single status through the official Web API: a matching
// recording whose album type is "single".
type Spotify struct {
	client *spotify.Client
}

// NewSpotify wraps an authenticated client (client-credentials flow, built
// in main).
func NewSpotify(client *spotify.Client) *Spotify {
	return &Spotify{client: client}
}

func (s *Spotify) Name() string { return models.SourceSpotify }

// ConfirmSingle searches for the track and reports whether any matching
// recording was released on a single-type album. Matching prefers ISRC
// equality and falls back to normalized title equality.
func (s *Spotify) ConfirmSingle(ctx context.Context, track models.TrackRecord) (bool, error) {
	query := fmt.Sprintf("artist:%s track:%s", track.Artist, track.Title)
	res, err := s.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(10))
	if err != nil {
		return false, fmt.Errorf("spotify search: %w", err)
	}
	if res.Tracks == nil {
		return false, nil
	}

	wantTitle := titlenorm.Normalize(track.Title)
	for _, hit := range res.Tracks.Tracks {
		if !s.sameRecording(track, wantTitle, hit) {
			continue
		}
		if strings.EqualFold(hit.Album.AlbumType, "single") {
			return true, nil
		}
	}
	return false, nil
}

// AudioFeatures fetches the perceptual features behind the special-tag
// detector for a known Spotify track ID.
func (s *Spotify) AudioFeatures(ctx context.Context, id string) (*tags.AudioFeatures, error) {
	feats, err := s.client.GetAudioFeatures(ctx, spotify.ID(id))
	if err != nil {
		return nil, fmt.Errorf("spotify audio features: %w", err)
	}
	if len(feats) == 0 || feats[0] == nil {
		return nil, nil
	}
	f := feats[0]
	return &tags.AudioFeatures{
		Liveness:         float64(f.Liveness),
		Acousticness:     float64(f.Acousticness),
		Instrumentalness: float64(f.Instrumentalness),
	}, nil
}

func (s *Spotify) sameRecording(track models.TrackRecord, wantTitle string, hit spotify.FullTrack) bool {
	if track.ISRC != "" {
		if isrc, ok := hit.ExternalIDs["isrc"]; ok && isrc != "" {
			return strings.EqualFold(isrc, track.ISRC)
		}
	}
	if titlenorm.Normalize(hit.Name) != wantTitle {
		return false
	}
	for _, a := range hit.Artists {
		if strings.EqualFold(a.Name, track.Artist) {
			return true
		}
	}
	return false
}
