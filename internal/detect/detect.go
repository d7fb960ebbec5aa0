// Package detect fuses corpus version matching, provider evidence and album
// statistics into a single-release judgment per track, then hands the result
// to the rating engine for stars.
package detect

import (
	"context"
	"log"
	"sort"

	"trackstar-srv/internal/albumstats"
	"trackstar-srv/internal/models"
	"trackstar-srv/internal/rating"
	"trackstar-srv/internal/titlenorm"
	"trackstar-srv/internal/versions"
)

// EvidenceSource is a provider collaborator consulted for a single flag. A
// returned error means "no evidence from this source", never a detection
// failure.
type EvidenceSource interface {
	Name() string
	ConfirmSingle(ctx context.Context, track models.TrackRecord) (bool, error)
}

// Detector runs the detection pipeline against a corpus snapshot. It holds
// no mutable state; concurrent calls against a consistent snapshot are safe.
type Detector struct {
	corpus versions.Corpus
	extra  []EvidenceSource
	video  EvidenceSource
	cfg    rating.Config
}

// New builds a detector. extra sources (Discogs, Last.fm) are consulted for
// every track; video is a last resort consulted only when nothing else
// confirmed. Either may be empty/nil.
func New(corpus versions.Corpus, extra []EvidenceSource, video EvidenceSource, cfg rating.Config) *Detector {
	return &Detector{corpus: corpus, extra: extra, video: video, cfg: cfg}
}

// ScoredTrack pairs one track with its detection and rating outcome.
type ScoredTrack struct {
	Track     models.TrackRecord     `json:"track"`
	Detection models.DetectionResult `json:"detection"`
	Rating    models.RatingDecision  `json:"rating"`
}

// Detect evaluates one track against its album statistics. stats may be nil
// when no album context exists; statistical tiers then stay silent.
func (d *Detector) Detect(ctx context.Context, track models.TrackRecord, stats *albumstats.Stats) models.DetectionResult {
	res := models.DetectionResult{
		Confidence:    models.ConfidenceLow,
		IsCompilation: titlenorm.IsCompilation(track.AlbumType, track.Album),
	}

	// Compilations bypass version aggregation: the album is not the song's
	// home, so its own popularity is the best signal we have.
	var vers []models.TrackVersion
	if res.IsCompilation {
		res.GlobalPopularity = track.Popularity
		vers = []models.TrackVersion{versions.Describe(track)}
	} else {
		matched, err := versions.Match(d.corpus, track)
		if err != nil {
			log.Printf("version match failed for %q / %q: %v", track.Artist, track.Title, err)
		}
		vers = matched
		if len(vers) == 0 {
			res.GlobalPopularity = track.Popularity
		} else {
			res.GlobalPopularity = versions.GlobalPopularity(vers)
		}
	}

	srcs := map[string]bool{}
	for _, v := range vers {
		if v.SpotifySingle {
			srcs[models.SourceSpotify] = true
		}
		if v.MusicBrainzSingle {
			srcs[models.SourceMusicBrainz] = true
		}
	}
	res.MetadataSingle = srcs[models.SourceSpotify] || srcs[models.SourceMusicBrainz]

	if len(vers) >= d.cfg.StandoutVersions {
		srcs[models.SourceVersions] = true
	}

	for _, src := range d.extra {
		ok, err := src.ConfirmSingle(ctx, track)
		if err != nil {
			log.Printf("%s evidence unavailable for %q: %v", src.Name(), track.Title, err)
			continue
		}
		if ok {
			srcs[src.Name()] = true
		}
	}

	if len(srcs) == 0 && d.video != nil {
		if ok, err := d.video.ConfirmSingle(ctx, track); err == nil && ok {
			srcs[models.SourceVideo] = true
		}
	}

	res.Sources = sortedSources(srcs)
	res.ZScore = stats.ZScore(track.Popularity)

	// Confidence tiers, strict priority order. The z-score shapes confidence
	// but is never recorded as a source.
	switch {
	case stats.ValidCount() > 0 && res.GlobalPopularity >= stats.Mean+d.cfg.HighOffset:
		res.Confidence = models.ConfidenceHigh
		res.IsSingle = true
	case stats.ValidCount() > 0 && res.ZScore >= stats.MeanTop50Z+d.cfg.MediumOffset && rating.HasCorroboration(res.Sources):
		res.Confidence = models.ConfidenceMedium
		res.IsSingle = true
	default:
		res.IsSingle = res.MetadataSingle
	}
	return res
}

// ScoreAlbum loads one album from the corpus, computes its statistics once,
// and detects and rates every track sequentially.
func (d *Detector) ScoreAlbum(ctx context.Context, artist, album string) ([]ScoredTrack, error) {
	tracks, err := d.corpus.AlbumTracks(artist, album)
	if err != nil {
		return nil, err
	}
	return d.ScoreTracks(ctx, tracks), nil
}

// ScoreTracks detects and rates an album's tracks against statistics
// computed from that same batch.
func (d *Detector) ScoreTracks(ctx context.Context, tracks []models.TrackRecord) []ScoredTrack {
	scores := make([]albumstats.TrackScore, len(tracks))
	for i, t := range tracks {
		scores[i] = albumstats.TrackScore{Title: t.Title, Popularity: t.Popularity}
	}
	stats := albumstats.Compute(scores)

	ranked := make([]models.TrackRecord, len(tracks))
	copy(ranked, tracks)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Popularity > ranked[j].Popularity
	})

	out := make([]ScoredTrack, 0, len(ranked))
	for rank, t := range ranked {
		det := d.Detect(ctx, t, stats)
		dec := rating.Decide(det, rating.Position{
			Rank:             rank,
			Count:            len(ranked),
			Popularity:       t.Popularity,
			MedianPopularity: stats.Median,
			MeanTop50Z:       stats.MeanTop50Z,
		}, d.cfg)
		out = append(out, ScoredTrack{Track: t, Detection: det, Rating: dec})
	}
	return out
}

func sortedSources(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
