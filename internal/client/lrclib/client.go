// Package lrclib implements the HTTP client for the remote lyrics service
// (§4.4): search and exact-get endpoints, retry/backoff on 429/5xx/network
// errors, and a stable user-agent.
package lrclib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/oshokin/lrc-harvester/internal/apperrors"
	"github.com/oshokin/lrc-harvester/internal/config"
	"github.com/oshokin/lrc-harvester/internal/lyrics"
	transporthttp "github.com/oshokin/lrc-harvester/internal/transport/http"
	"github.com/oshokin/lrc-harvester/internal/utils"
)

const (
	// maxAttempts is the total attempt count including the first try (§4.4).
	maxAttempts = 3
	// attemptTimeout bounds a single HTTP attempt (§4.4).
	attemptTimeout = 10 * time.Second
	// backoffBase doubles per attempt, producing the 300ms, 600ms schedule (§4.4).
	backoffBase = 300 * time.Millisecond

	searchPath  = "/api/search"
	getPath     = "/api/get"
	userAgent   = "lrc-harvester/1.0 (+https://github.com/oshokin/lrc-harvester)"
)

// apiRecord is the camelCase wire shape from §6.
type apiRecord struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
	Instrumental bool    `json:"instrumental"`
}

func (r apiRecord) toRecord() lyrics.Record {
	return lyrics.FromPayload(r.SyncedLyrics, r.PlainLyrics, r.Instrumental, lyrics.SourceAPI).
		WithMetadata(r.Name, r.ArtistName, r.AlbumName, r.Duration)
}

// Client is the remote lyrics HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a Client against baseURL, wrapping http.DefaultTransport with
// the teacher's logging and user-agent decorators.
func New(baseURL string) *Client {
	var transport http.RoundTripper = http.DefaultTransport
	transport = transporthttp.NewUserAgentInjector(transport, utils.NewSimpleUserAgentProvider(userAgent))
	transport = transporthttp.NewLogTransport(transport, uint64(config.DefaultMaxLogLength))

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Transport: transport, Timeout: attemptTimeout},
	}
}

// Search implements §4.4's search endpoint: GET /api/search with
// track_name/artist_name/album_name/q.
func (c *Client) Search(ctx context.Context, title, artist, album, query string) ([]lyrics.Record, error) {
	params := url.Values{}
	setIfNonEmpty(params, "track_name", title)
	setIfNonEmpty(params, "artist_name", artist)
	setIfNonEmpty(params, "album_name", album)
	setIfNonEmpty(params, "q", query)

	var results []apiRecord
	if err := c.doJSON(ctx, searchPath, params, &results); err != nil {
		return nil, err
	}

	records := make([]lyrics.Record, len(results))
	for i, r := range results {
		records[i] = r.toRecord()
	}

	return records, nil
}

// Get implements §4.4's exact-get endpoint. A 404 is mapped to a NotFound
// LyricsRecord, not an error.
func (c *Client) Get(ctx context.Context, title, artist, album string, durationSeconds float64) (lyrics.Record, error) {
	params := url.Values{}
	params.Set("track_name", title)
	params.Set("artist_name", artist)
	params.Set("album_name", album)
	params.Set("duration", strconv.Itoa(int(math.Round(durationSeconds))))

	var result apiRecord

	err := c.doJSON(ctx, getPath, params, &result)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return lyrics.NotFound(lyrics.SourceAPI), nil
		}

		return lyrics.Record{}, err
	}

	return result.toRecord(), nil
}

// errNotFound is the internal sentinel doJSON returns for a 404.
var errNotFound = errors.New("lrclib: not found")

// doJSON executes a GET with retry/backoff (§4.4) and decodes the JSON body.
func (c *Client) doJSON(ctx context.Context, path string, params url.Values, dest any) error {
	reqURL := c.baseURL + path + "?" + params.Encode()

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := apperrors.FromContext(ctx); err != nil {
			return err
		}

		resp, err := c.attempt(ctx, reqURL)
		if err != nil {
			lastErr = err

			if attempt < maxAttempts {
				if waitErr := sleepBackoff(ctx, attempt); waitErr != nil {
					return waitErr
				}

				continue
			}

			return apperrors.New(apperrors.KindTransport, lastErr)
		}

		defer resp.Body.Close() //nolint:errcheck // Best-effort cleanup.

		if resp.StatusCode == http.StatusNotFound {
			return errNotFound
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("lrclib: unexpected status %d", resp.StatusCode)

			if attempt < maxAttempts {
				if waitErr := sleepBackoff(ctx, attempt); waitErr != nil {
					return waitErr
				}

				continue
			}

			return apperrors.New(apperrors.KindTransport, lastErr)
		}

		if resp.StatusCode >= http.StatusBadRequest {
			return apperrors.Newf(apperrors.KindTransport, "lrclib: terminal status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return apperrors.New(apperrors.KindMalformed, err)
		}

		if err = json.Unmarshal(body, dest); err != nil {
			return apperrors.New(apperrors.KindMalformed, err)
		}

		return nil
	}

	return apperrors.New(apperrors.KindTransport, lastErr)
}

func (c *Client) attempt(ctx context.Context, reqURL string) (*http.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	return c.httpClient.Do(req)
}

// sleepBackoff waits the exponential backoff for the given attempt number
// (1-indexed): 300ms after attempt 1, 600ms after attempt 2.
func sleepBackoff(ctx context.Context, attempt int) error {
	wait := backoffBase * time.Duration(1<<(attempt-1))

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return apperrors.FromContext(ctx)
	}
}

func setIfNonEmpty(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}
