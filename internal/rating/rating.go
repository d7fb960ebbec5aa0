// Package rating turns a detection result and album context into a 1-5 star
// rating through a strict tier order: popularity dominance, corroborated
// z-score, rank band baseline, then a legacy median boost that can never
// resurrect an upgrade the z-score tier explicitly denied.
package rating

import (
	"fmt"

	"trackstar-srv/internal/models"
)

// Config holds the decision thresholds.
type Config struct {
	// HighOffset is how far above the album mean a track's global popularity
	// must sit for an unconditional 5-star, high-confidence call.
	HighOffset float64
	// MediumOffset shifts the medium-tier threshold relative to the album's
	// top-half mean z-score. Slightly negative by default so tracks just
	// under the album's best quartile still qualify.
	MediumOffset float64
	// LegacyMedianFactor is the popularity-over-median multiplier used by
	// the legacy compatibility pass.
	LegacyMedianFactor float64
	// StandoutVersions is the corpus version count at which a song counts as
	// a version-count standout.
	StandoutVersions int
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		HighOffset:         6,
		MediumOffset:       -0.3,
		LegacyMedianFactor: 1.7,
		StandoutVersions:   3,
	}
}

// Position is the track's standing within its album.
type Position struct {
	// Rank is the 0-based position when album tracks are sorted by
	// descending popularity; Count is the album track count.
	Rank  int
	Count int
	// Popularity is the track's own raw popularity.
	Popularity float64
	// MedianPopularity and MeanTop50Z come from the album statistics.
	MedianPopularity float64
	MeanTop50Z       float64
}

// corroborating lists the evidence sources that may back a medium-confidence
// upgrade. Video evidence is deliberately absent: it is last-resort only.
var corroborating = map[string]bool{
	models.SourceDiscogs:     true,
	models.SourceSpotify:     true,
	models.SourceMusicBrainz: true,
	models.SourceLastFM:      true,
	models.SourceVersions:    true,
}

// Decide evaluates the rating state machine for one track. Tiers are checked
// in priority order and the first match wins.
func Decide(res models.DetectionResult, pos Position, cfg Config) models.RatingDecision {
	// Tier 1: raw popularity dominance needs no metadata at all.
	if res.Confidence == models.ConfidenceHigh {
		return models.RatingDecision{Stars: 5, Reason: "popularity dominates album mean"}
	}

	stars := baseline(pos.Rank, pos.Count)
	reason := fmt.Sprintf("band baseline (rank %d of %d)", pos.Rank+1, pos.Count)

	// Tier 2: a qualifying z-score only upgrades with corroborating
	// metadata. A qualifying track without it is denied outright, and the
	// denial also locks out the legacy pass below.
	denied := false
	if res.ZScore >= pos.MeanTop50Z+cfg.MediumOffset {
		if HasCorroboration(res.Sources) {
			return models.RatingDecision{Stars: 5, Reason: "z-score with metadata corroboration"}
		}
		denied = true
		reason = "z-score qualified but no metadata corroboration"
	}

	if !denied {
		switch {
		case res.Confidence == models.ConfidenceHigh || res.Confidence == models.ConfidenceMedium:
			if pos.MedianPopularity > 0 && pos.Popularity >= pos.MedianPopularity*cfg.LegacyMedianFactor {
				return models.RatingDecision{Stars: 5, Reason: "legacy median boost"}
			}
		case !res.IsSingle && stars > 4:
			stars = 4
			reason = "capped: not a single"
		}
		if res.Confidence == models.ConfidenceHigh {
			return models.RatingDecision{Stars: 5, Reason: "high single confidence"}
		}
	}

	if stars < 1 {
		stars = 1
	}
	return models.RatingDecision{Stars: stars, Reason: reason}
}

// baseline is the non-statistical fallback: quartile-like bands by
// popularity rank, 4 stars for the top band down to 1 for the bottom.
func baseline(rank, count int) int {
	if count <= 0 {
		return 1
	}
	band := rank * 4 / count
	if band > 3 {
		band = 3
	}
	stars := 4 - band
	if stars < 1 {
		stars = 1
	}
	return stars
}

// HasCorroboration reports whether any source may back a medium-confidence
// upgrade.
func HasCorroboration(sources []string) bool {
	for _, s := range sources {
		if corroborating[s] {
			return true
		}
	}
	return false
}
