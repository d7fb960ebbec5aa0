package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"trackstar-srv/internal/models"
)

const mbAPIBase = "https://musicbrainz.org/ws/2"

// mbScoreFloor discards low-relevance search hits.
const mbScoreFloor = 80

// MusicBrainz looks up whether a recording belongs to a release group whose
// primary type is "Single".
type MusicBrainz struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewMusicBrainz builds the client with the 1 req/s limit the MusicBrainz
// guidelines require.
func NewMusicBrainz() *MusicBrainz {
	return &MusicBrainz{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (m *MusicBrainz) Name() string { return models.SourceMusicBrainz }

type mbRecordingSearch struct {
	Recordings []struct {
		ID       string   `json:"id"`
		Score    int      `json:"score"`
		ISRCs    []string `json:"isrcs"`
		Releases []struct {
			ReleaseGroup struct {
				PrimaryType string `json:"primary-type"`
			} `json:"release-group"`
		} `json:"releases"`
	} `json:"recordings"`
}

// ConfirmSingle searches recordings by ISRC when available, else by Lucene
// artist/title query, and reports whether any sufficiently relevant hit sits
// in a "Single" release group.
func (m *MusicBrainz) ConfirmSingle(ctx context.Context, track models.TrackRecord) (bool, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return false, err
	}

	var query string
	if track.ISRC != "" {
		query = fmt.Sprintf("isrc:%s", track.ISRC)
	} else {
		query = fmt.Sprintf("artist:%q AND recording:%q", track.Artist, track.Title)
	}
	searchURL := fmt.Sprintf("%s/recording?query=%s&inc=releases+release-groups&fmt=json",
		mbAPIBase, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := doWithRetry(m.httpClient, req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("musicbrainz search: HTTP %d", resp.StatusCode)
	}

	var res mbRecordingSearch
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return false, err
	}

	for _, rec := range res.Recordings {
		if rec.Score < mbScoreFloor {
			continue
		}
		for _, rel := range rec.Releases {
			if strings.EqualFold(rel.ReleaseGroup.PrimaryType, "single") {
				return true, nil
			}
		}
	}
	return false, nil
}
