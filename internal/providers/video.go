package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"golang.org/x/time/rate"

	"trackstar-srv/internal/models"
	"trackstar-srv/internal/titlenorm"
)

// VideoSearch is the last-resort evidence source: an official music video
// strongly suggests the track was pushed as a single. It searches the web
// for a matching YouTube video and verifies the hit's actual metadata.
type VideoSearch struct {
	httpClient *http.Client
	ytClient   youtube.Client
	limiter    *rate.Limiter
}

var (
	officialVideoRe = regexp.MustCompile(`(?i)\(official (music )?video\)|\[official (music )?video\]`)
	watchIDRe       = regexp.MustCompile(`watch%3Fv%3D([A-Za-z0-9_-]{11})|watch\?v=([A-Za-z0-9_-]{11})`)
)

func NewVideoSearch() *VideoSearch {
	return &VideoSearch{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

func (v *VideoSearch) Name() string { return models.SourceVideo }

// ConfirmSingle searches for "<artist> <title> official video", then checks
// candidate videos against the real YouTube metadata so a lyrics upload or
// fan video never confirms.
func (v *VideoSearch) ConfirmSingle(ctx context.Context, track models.TrackRecord) (bool, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return false, err
	}

	ids, err := v.searchVideoIDs(ctx, fmt.Sprintf("%s %s official video", track.Artist, track.Title))
	if err != nil {
		return false, err
	}

	for i, id := range ids {
		if i >= 3 {
			break
		}
		video, err := v.ytClient.GetVideoContext(ctx, id)
		if err != nil {
			continue
		}
		if v.videoMatches(video, track) {
			return true, nil
		}
	}
	return false, nil
}

func (v *VideoSearch) searchVideoIDs(ctx context.Context, query string) ([]string, error) {
	searchURL := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query+" site:youtube.com")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := doWithRetry(v.httpClient, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("video search: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := map[string]bool{}
	for _, m := range watchIDRe.FindAllStringSubmatch(string(body), -1) {
		id := m[1]
		if id == "" {
			id = m[2]
		}
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// videoMatches accepts a video only when its title names the track, its
// uploader or title names the artist, and it is explicitly an official
// video.
func (v *VideoSearch) videoMatches(video *youtube.Video, track models.TrackRecord) bool {
	if !officialVideoRe.MatchString(video.Title) {
		return false
	}

	title := strings.ToLower(video.Title)
	artist := strings.ToLower(track.Artist)
	author := strings.ToLower(video.Author)
	if !strings.Contains(title, artist) && !strings.Contains(author, artist) {
		return false
	}

	want := titlenorm.Normalize(track.Title)
	return want != "" && strings.Contains(titlenorm.Normalize(video.Title), want)
}
