package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"golang.org/x/time/rate"

	"trackstar-srv/internal/models"
	"trackstar-srv/internal/titlenorm"
)

const (
	discogsAPIBase = "https://api.discogs.com"

	// fuzzyThreshold is the minimum Levenshtein similarity ratio for a
	// tracklist title to count as the same song.
	fuzzyThreshold = 0.85

	// maxSearchResults caps how many releases one confirmation may fetch.
	maxSearchResults = 5
)

// Discogs judges single status from release formats, track counts and promo
// tags, with a master-release fallback.
type Discogs struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	token      string
}

// NewDiscogs builds the client. Discogs allows 60 authenticated requests per
// minute; the limiter keeps us under it.
func NewDiscogs(token string) *Discogs {
	return &Discogs{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(1100*time.Millisecond), 1),
		token:      token,
	}
}

func (d *Discogs) Name() string { return models.SourceDiscogs }

// DiscogsFormat is one physical format entry on a release.
type DiscogsFormat struct {
	Name         string   `json:"name"`
	Descriptions []string `json:"descriptions"`
}

// DiscogsTrack is one tracklist entry.
type DiscogsTrack struct {
	Position string `json:"position"`
	Title    string `json:"title"`
	Duration string `json:"duration"`
}

// DiscogsRelease is the subset of a release (or master) the rules consume.
type DiscogsRelease struct {
	ID        int             `json:"id"`
	Title     string          `json:"title"`
	Formats   []DiscogsFormat `json:"formats"`
	Tracklist []DiscogsTrack  `json:"tracklist"`
	MasterID  int             `json:"master_id"`
}

type discogsSearchResponse struct {
	Results []struct {
		ID   int    `json:"id"`
		Type string `json:"type"`
	} `json:"results"`
}

// ConfirmSingle searches releases for the track and applies the single rules
// to each candidate until one matches.
func (d *Discogs) ConfirmSingle(ctx context.Context, track models.TrackRecord) (bool, error) {
	if d.token == "" {
		return false, fmt.Errorf("discogs: no token configured")
	}

	params := url.Values{}
	params.Set("artist", track.Artist)
	params.Set("track", track.Title)
	params.Set("type", "release")
	params.Set("per_page", strconv.Itoa(maxSearchResults))

	var search discogsSearchResponse
	if err := d.get(ctx, "/database/search?"+params.Encode(), &search); err != nil {
		return false, err
	}

	albumLive := titlenorm.IsLive("", track.Album)
	for i, hit := range search.Results {
		if i >= maxSearchResults || hit.Type != "release" {
			continue
		}

		var rel DiscogsRelease
		if err := d.get(ctx, fmt.Sprintf("/releases/%d", hit.ID), &rel); err != nil {
			continue
		}

		idx := MatchTrackInRelease(rel, track.Title, track.Duration, albumLive)
		if idx < 0 {
			continue
		}

		var master *DiscogsRelease
		if rel.MasterID != 0 && !FormatIsSingle(rel.Formats) {
			var m DiscogsRelease
			if err := d.get(ctx, fmt.Sprintf("/masters/%d", rel.MasterID), &m); err == nil {
				master = &m
			}
		}

		if ReleaseIsSingle(rel, master, idx) {
			return true, nil
		}
	}
	return false, nil
}

func (d *Discogs) get(ctx context.Context, path string, out interface{}) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discogsAPIBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Authorization", "Discogs token="+d.token)

	resp, err := doWithRetry(d.httpClient, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("discogs: HTTP %d for %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var singleFormatNames = []string{`single`, `7"`, `12" single`, `cd single`, `cassette single`}

// FormatIsSingle applies the format-name rule to a release's formats.
func FormatIsSingle(formats []DiscogsFormat) bool {
	for _, f := range formats {
		name := strings.ToLower(f.Name)
		for _, marker := range singleFormatNames {
			if strings.Contains(name, marker) {
				return true
			}
		}
	}
	return false
}

var epWordRe = regexp.MustCompile(`(?i)\bep\b`)

// descriptionsSaySingle applies the description rule: "single" or
// "maxi-single" confirms, but an EP never counts as a single.
func descriptionsSaySingle(formats []DiscogsFormat) bool {
	saysSingle := false
	for _, f := range formats {
		for _, desc := range f.Descriptions {
			if epWordRe.MatchString(desc) {
				return false
			}
			d := strings.ToLower(desc)
			if strings.Contains(d, "single") || strings.Contains(d, "maxi-single") {
				saysSingle = true
			}
		}
	}
	return saysSingle
}

func isPromo(formats []DiscogsFormat) bool {
	for _, f := range formats {
		for _, desc := range f.Descriptions {
			if strings.EqualFold(desc, "promo") {
				return true
			}
		}
	}
	return false
}

// ReleaseIsSingle decides whether the release containing the matched track
// (at trackIdx in its tracklist) is a single. master, when non-nil, is the
// parent master release used as a format-rule fallback.
func ReleaseIsSingle(rel DiscogsRelease, master *DiscogsRelease, trackIdx int) bool {
	if FormatIsSingle(rel.Formats) {
		return true
	}
	if descriptionsSaySingle(rel.Formats) {
		return true
	}

	n := len(rel.Tracklist)
	if n >= 1 && n <= 2 {
		if trackIdx == 0 || isAPosition(rel.Tracklist[trackIdx].Position) {
			return true
		}
		if isPromo(rel.Formats) {
			return true
		}
	}

	if master != nil && FormatIsSingle(master.Formats) {
		return true
	}
	return false
}

func isAPosition(pos string) bool {
	return strings.HasPrefix(strings.TrimSpace(strings.ToUpper(pos)), "A")
}

// MatchTrackInRelease finds the target track in a release tracklist: exact
// normalized title first, then fuzzy similarity, then duration. Alternate
// versions are skipped unless the album context is itself live/unplugged.
// Returns -1 when nothing matches.
func MatchTrackInRelease(rel DiscogsRelease, title string, duration float64, albumLive bool) int {
	want := titlenorm.Normalize(title)

	eligible := func(t DiscogsTrack) bool {
		return albumLive || !titlenorm.IsAlternate(t.Title)
	}

	for i, t := range rel.Tracklist {
		if eligible(t) && titlenorm.Normalize(t.Title) == want {
			return i
		}
	}

	lev := metrics.NewLevenshtein()
	for i, t := range rel.Tracklist {
		if !eligible(t) {
			continue
		}
		if strutil.Similarity(want, titlenorm.Normalize(t.Title), lev) >= fuzzyThreshold {
			return i
		}
	}

	if duration > 0 {
		for i, t := range rel.Tracklist {
			if !eligible(t) {
				continue
			}
			secs := parseDuration(t.Duration)
			if secs > 0 && math.Abs(secs-duration) <= 2 {
				return i
			}
		}
	}
	return -1
}

// parseDuration converts a Discogs "m:ss" or "h:mm:ss" string to seconds.
func parseDuration(s string) float64 {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}
	total := 0.0
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0
		}
		total = total*60 + float64(v)
	}
	return total
}
