package titlenorm

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// Trailing "(...)" or "[...]" spans, e.g. "Song (Live at Wembley)"
	trailingBracketRe = regexp.MustCompile(`\s*[(\[][^)\]]*[)\]]\s*$`)

	// Trailing dash clause naming a version qualifier, e.g.
	// "Song - 2011 Remaster" or "Song - Live"
	dashClauseRe = regexp.MustCompile(`(?i)\s+[-–—]\s+[^-–—]*\b(live|remix|remaster(ed)?|edit|mix|version|acoustic|unplugged|demo|instrumental)\b[^-–—]*$`)

	alternateRe = regexp.MustCompile(`(?i)\b(remix|orchestral|acoustic|demo|instrumental|radio edit|edit|extended|club mix|alternate|alt version|re-recorded|re-recording|karaoke|cover)\b`)

	liveRe = regexp.MustCompile(`(?i)\b(live|unplugged)\b`)
)

var compilationMarkers = []string{
	"greatest hits",
	"best of",
	"collection",
	"anthology",
	"compilation",
	"essentials",
}

// Normalize canonicalizes a track title for comparison: trailing bracketed
// spans and version dash-clauses are removed, punctuation is stripped, and
// the remainder is lowercased with collapsed whitespace. Idempotent.
func Normalize(title string) string {
	t := title
	for {
		stripped := trailingBracketRe.ReplaceAllString(t, "")
		if stripped == t {
			break
		}
		t = stripped
	}
	t = dashClauseRe.ReplaceAllString(t, "")

	var out strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(t) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			out.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(out.String())
}

// IsAlternate reports whether the title names a non-canonical recording
// (remix, acoustic take, demo and so on). Matching is word-bounded and does
// not require the qualifier to be bracketed.
func IsAlternate(title string) bool {
	return alternateRe.MatchString(title)
}

// IsLive reports whether the title or album marks a live or unplugged
// recording.
func IsLive(title, album string) bool {
	return liveRe.MatchString(title + " " + album)
}

// IsCompilation reports whether the album is a compilation, either by its
// declared type or by a well-known compilation name marker. Unknown album
// types default to "not compilation".
func IsCompilation(albumType, albumName string) bool {
	if strings.EqualFold(albumType, "compilation") {
		return true
	}
	name := strings.ToLower(albumName)
	for _, marker := range compilationMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}
