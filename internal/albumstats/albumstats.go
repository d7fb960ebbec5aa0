// Package albumstats derives the per-album popularity baseline that single
// detection and star rating are measured against. Trailing bonus/live runs
// are excluded before the mean so they cannot depress the "typical track"
// baseline.
package albumstats

import (
	"math"
	"regexp"
	"sort"
)

// TrackScore is one album track's title and raw popularity.
type TrackScore struct {
	Title      string
	Popularity float64
}

// Stats holds the computed album popularity context. Tracks is the input
// re-sorted by descending popularity; Excluded indexes into that order.
type Stats struct {
	Tracks     []TrackScore
	Excluded   map[int]bool
	Mean       float64
	StdDev     float64
	Median     float64
	MeanTop50Z float64
	validCount int
}

var parenSuffixRe = regexp.MustCompile(`\([^()]*\)\s*$`)

// Compute sorts the tracks by descending popularity, excludes a trailing
// bonus run if one exists, and computes mean, population standard deviation,
// median and the mean z-score of the top half. Callers do not need to
// pre-sort.
func Compute(tracks []TrackScore) *Stats {
	sorted := make([]TrackScore, len(tracks))
	copy(sorted, tracks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Popularity > sorted[j].Popularity
	})

	s := &Stats{
		Tracks:   sorted,
		Excluded: ExcludeOutliers(sorted),
	}

	valid := s.validScores()
	s.validCount = len(valid)
	if len(valid) == 0 {
		return s
	}

	var sum float64
	for _, p := range valid {
		sum += p
	}
	s.Mean = sum / float64(len(valid))

	// Population stddev; fewer than 2 valid scores leaves it at 0 so every
	// z-score degrades to 0 instead of dividing by zero.
	if len(valid) >= 2 {
		var sq float64
		for _, p := range valid {
			d := p - s.Mean
			sq += d * d
		}
		s.StdDev = math.Sqrt(sq / float64(len(valid)))
	}

	s.Median = median(valid)
	s.MeanTop50Z = s.meanTopHalfZ(valid)
	return s
}

// ExcludeOutliers returns the indices of a trailing run of parenthesized
// titles, which typically marks a bonus disc or live appendix. The input
// must be sorted by descending popularity (Compute guarantees this). Only a
// contiguous suffix run of length >= 2 is ever excluded; isolated or
// mid-album parenthesized titles never are, and albums with fewer than 3
// tracks are left alone.
func ExcludeOutliers(tracks []TrackScore) map[int]bool {
	excluded := make(map[int]bool)
	if len(tracks) < 3 {
		return excluded
	}

	qualifying := 0
	for _, t := range tracks {
		if parenSuffixRe.MatchString(t.Title) {
			qualifying++
		}
	}
	if qualifying < 2 {
		return excluded
	}

	run := 0
	for i := len(tracks) - 1; i >= 0; i-- {
		if !parenSuffixRe.MatchString(tracks[i].Title) {
			break
		}
		run++
	}
	if run < 2 {
		return excluded
	}
	for i := len(tracks) - run; i < len(tracks); i++ {
		excluded[i] = true
	}
	return excluded
}

// ZScore expresses a popularity as standard deviations from the album mean,
// or 0 for a degenerate album.
func (s *Stats) ZScore(popularity float64) float64 {
	if s == nil || s.StdDev == 0 {
		return 0
	}
	return (popularity - s.Mean) / s.StdDev
}

// ValidCount is the number of non-excluded tracks with a positive
// popularity, i.e. the sample size behind Mean and StdDev.
func (s *Stats) ValidCount() int {
	if s == nil {
		return 0
	}
	return s.validCount
}

// validScores returns non-excluded popularities > 0, preserving the sorted
// order. Zero or missing popularity never participates in statistics.
func (s *Stats) validScores() []float64 {
	valid := make([]float64, 0, len(s.Tracks))
	for i, t := range s.Tracks {
		if s.Excluded[i] || t.Popularity <= 0 {
			continue
		}
		valid = append(valid, t.Popularity)
	}
	return valid
}

// meanTopHalfZ is the mean z-score of the top max(1, n/2) valid tracks. It
// represents how strong the album's best tracks are, which makes it the
// medium-confidence threshold base instead of the raw mean.
func (s *Stats) meanTopHalfZ(valid []float64) float64 {
	if len(valid) == 0 {
		return 0
	}
	n := len(valid) / 2
	if n < 1 {
		n = 1
	}
	var sum float64
	for _, p := range valid[:n] { // valid is sorted descending
		sum += s.ZScore(p)
	}
	return sum / float64(n)
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
