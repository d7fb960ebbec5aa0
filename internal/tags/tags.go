// Package tags classifies tracks into descriptive special tags from title
// and album keywords plus provider audio features. Independent of single
// detection, but shares the same normalization primitives.
package tags

import (
	"regexp"
	"sort"
	"strings"
)

// Tag is a descriptive track label.
type Tag string

const (
	TagChristmas    Tag = "Christmas"
	TagCover        Tag = "Cover"
	TagLive         Tag = "Live"
	TagAcoustic     Tag = "Acoustic"
	TagOrchestral   Tag = "Orchestral"
	TagInstrumental Tag = "Instrumental"
)

// AudioFeatures are the provider-supplied perceptual features consulted
// alongside keywords. Nil features degrade to keyword-only detection.
type AudioFeatures struct {
	Liveness         float64
	Acousticness     float64
	Instrumentalness float64
}

// Feature thresholds above which a tag applies without keyword support.
const (
	livenessThreshold         = 0.8
	acousticnessThreshold     = 0.7
	instrumentalnessThreshold = 0.8
	orchestralAcousticFloor   = 0.5
)

var (
	christmasRe    = regexp.MustCompile(`(?i)\b(christmas|xmas|santa|sleigh|mistletoe|jingle|noel|winter wonderland)\b`)
	coverRe        = regexp.MustCompile(`(?i)\b(cover|tribute)\b`)
	liveRe         = regexp.MustCompile(`(?i)\b(live|unplugged|concert)\b`)
	acousticRe     = regexp.MustCompile(`(?i)\bacoustic\b`)
	orchestralRe   = regexp.MustCompile(`(?i)\b(orchestral|orchestra|symphonic|philharmonic)\b`)
	instrumentalRe = regexp.MustCompile(`(?i)\binstrumental\b`)
)

// Detect returns the set of tags for one recording. genres are provider
// genre strings for the artist or album; feat may be nil.
func Detect(title, album string, genres []string, feat *AudioFeatures) []Tag {
	text := title + " " + album
	set := map[Tag]bool{}

	if christmasRe.MatchString(text) || genreMatch(genres, "christmas", "holiday") {
		set[TagChristmas] = true
	}
	if coverRe.MatchString(text) {
		set[TagCover] = true
	}
	if liveRe.MatchString(text) || (feat != nil && feat.Liveness > livenessThreshold) {
		set[TagLive] = true
	}
	if acousticRe.MatchString(title) || (feat != nil && feat.Acousticness > acousticnessThreshold) {
		set[TagAcoustic] = true
	}
	if instrumentalRe.MatchString(title) || (feat != nil && feat.Instrumentalness > instrumentalnessThreshold) {
		set[TagInstrumental] = true
	}
	if orchestralRe.MatchString(title) ||
		(feat != nil && feat.Instrumentalness > instrumentalnessThreshold && feat.Acousticness > orchestralAcousticFloor) {
		set[TagOrchestral] = true
	}

	return sorted(set)
}

// Union merges tag sets from recordings sharing an ISRC.
func Union(sets ...[]Tag) []Tag {
	merged := map[Tag]bool{}
	for _, tags := range sets {
		for _, t := range tags {
			merged[t] = true
		}
	}
	return sorted(merged)
}

func genreMatch(genres []string, needles ...string) bool {
	for _, g := range genres {
		lower := strings.ToLower(g)
		for _, n := range needles {
			if strings.Contains(lower, n) {
				return true
			}
		}
	}
	return false
}

func sorted(set map[Tag]bool) []Tag {
	out := make([]Tag, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
