// Package versions groups the recordings of one logical song across the
// corpus and derives the song's global popularity from its canonical
// (non-alternate) versions.
package versions

import (
	"math"

	"trackstar-srv/internal/models"
	"trackstar-srv/internal/titlenorm"
)

// DurationTolerance is the window, in seconds, within which two recordings
// of the same title count as the same version.
const DurationTolerance = 2.0

// Corpus is the read-only library snapshot the matcher runs against.
// Implementations must be snapshot-consistent for the duration of one call.
type Corpus interface {
	TracksByISRC(artist, isrc string) ([]models.TrackRecord, error)
	TracksByArtist(artist string) ([]models.TrackRecord, error)
	AlbumTracks(artist, album string) ([]models.TrackRecord, error)
}

// Describe projects a record into a TrackVersion with its variant flags
// derived from title and album context.
func Describe(t models.TrackRecord) models.TrackVersion {
	return models.TrackVersion{
		TrackRecord: t,
		IsLive:      titlenorm.IsLive(t.Title, t.Album),
		IsAlternate: titlenorm.IsAlternate(t.Title),
	}
}

// Match finds every corpus recording of the same song as the target. ISRC
// matches win outright; only when the ISRC is absent or matches nothing does
// the matcher fall back to normalized-title equality with a duration window.
// In both paths, live and studio recordings never mix: a candidate is kept
// only when its live context agrees with the target's.
func Match(c Corpus, target models.TrackRecord) ([]models.TrackVersion, error) {
	tv := Describe(target)

	if target.ISRC != "" {
		recs, err := c.TracksByISRC(target.Artist, target.ISRC)
		if err != nil {
			return nil, err
		}
		matched := filterLiveContext(recs, tv.IsLive)
		if len(matched) > 0 {
			return matched, nil
		}
	}

	recs, err := c.TracksByArtist(target.Artist)
	if err != nil {
		return nil, err
	}

	wantTitle := titlenorm.Normalize(target.Title)
	candidates := recs[:0:0]
	for _, r := range recs {
		if titlenorm.Normalize(r.Title) != wantTitle {
			continue
		}
		if target.Duration > 0 && r.Duration > 0 &&
			math.Abs(target.Duration-r.Duration) > DurationTolerance {
			continue
		}
		candidates = append(candidates, r)
	}
	return filterLiveContext(candidates, tv.IsLive), nil
}

// GlobalPopularity is the best popularity signal across a song's canonical
// versions: the maximum positive popularity among non-alternate versions, or
// 0 when no canonical version exists. Missing or zero popularity simply does
// not participate.
func GlobalPopularity(versions []models.TrackVersion) float64 {
	any := false
	best := 0.0
	for _, v := range versions {
		if v.IsAlternate {
			continue
		}
		any = true
		if v.Popularity > best {
			best = v.Popularity
		}
	}
	if !any {
		return 0
	}
	return best
}

func filterLiveContext(recs []models.TrackRecord, targetLive bool) []models.TrackVersion {
	out := make([]models.TrackVersion, 0, len(recs))
	for _, r := range recs {
		v := Describe(r)
		if v.IsLive != targetLive {
			continue
		}
		out = append(out, v)
	}
	return out
}
