// Package providers holds the external evidence collaborators: Spotify,
// MusicBrainz, Discogs and the last-resort video search. Every client is
// rate limited, retries transient failures with exponential backoff, and
// surfaces absence of evidence as a value, not an error worth aborting for.
package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	// UserAgent identifies this scanner to providers that require a
	// descriptive agent string (MusicBrainz, Discogs).
	UserAgent = "trackstar-srv/1.0 (+https://github.com/trackstar/trackstar-srv)"

	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
)

// RetryAfterError carries the server-requested wait as a value so callers
// never parse it back out of message text.
type RetryAfterError struct {
	Delay time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.Delay)
}

var errServerFailure = errors.New("server failure")

// doWithRetry issues the request, backing off exponentially on 5xx up to
// maxAttempts and honoring a 429 Retry-After once. Only GET requests pass
// through here, so replaying is safe.
func doWithRetry(client *http.Client, req *http.Request) (*http.Response, error) {
	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			delay := retryAfter(resp)
			resp.Body.Close()
			if attempt > 0 {
				// Already retried once after a 429; give up.
				return nil, &RetryAfterError{Delay: delay}
			}
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(delay):
			}
			lastErr = &RetryAfterError{Delay: delay}
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: HTTP %d", errServerFailure, resp.StatusCode)
		default:
			return resp, nil
		}
	}
	return nil, lastErr
}

// retryAfter reads the numeric Retry-After header, with a conservative
// default when the server does not say.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 5 * time.Second
}
