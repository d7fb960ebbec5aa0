package models

// Confidence is the canonical single-detection confidence channel. The
// detection pipeline sets it and the rating engine reads the same value; no
// second confidence signal exists.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Provider source names as they appear in DetectionResult.Sources.
const (
	SourceSpotify     = "spotify"
	SourceMusicBrainz = "musicbrainz"
	SourceDiscogs     = "discogs"
	SourceLastFM      = "lastfm"
	SourceVersions    = "versions"
	SourceVideo       = "video"
)

// TrackRecord is the immutable engine input for one library track. Zero
// values mean "unknown": Duration 0 is an unknown length, Popularity 0 never
// participates in statistics.
type TrackRecord struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Artist            string  `json:"artist"`
	Album             string  `json:"album,omitempty"`
	ISRC              string  `json:"isrc,omitempty"`
	Duration          float64 `json:"duration,omitempty"`
	Popularity        float64 `json:"popularity"`
	AlbumType         string  `json:"album_type,omitempty"`
	SpotifySingle     bool    `json:"spotify_single,omitempty"`
	MusicBrainzSingle bool    `json:"musicbrainz_single,omitempty"`
}

// TrackVersion is one physical recording of a logical song, with its variant
// flags derived from the title and album context. Built per detection call,
// never persisted.
type TrackVersion struct {
	TrackRecord
	IsLive      bool `json:"is_live"`
	IsAlternate bool `json:"is_alternate"`
}

// DetectionResult is the fixed-field outcome of single detection for one
// track. Sources lists the providers that independently confirmed single
// status; the z-score influences Confidence but is never listed as a source.
type DetectionResult struct {
	IsSingle         bool       `json:"is_single"`
	Confidence       Confidence `json:"confidence"`
	Sources          []string   `json:"sources"`
	GlobalPopularity float64    `json:"global_popularity"`
	ZScore           float64    `json:"zscore"`
	MetadataSingle   bool       `json:"metadata_single"`
	IsCompilation    bool       `json:"is_compilation"`
}

// RatingDecision is the star rating for one track. Reason is diagnostic text
// for logs and the dashboard, never parsed back.
type RatingDecision struct {
	Stars  int    `json:"stars"`
	Reason string `json:"reason"`
}
