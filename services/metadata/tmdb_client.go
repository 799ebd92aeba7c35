package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"streamrelay/utils/retry"
)

const tmdbBaseURL = "https://api.themoviedb.org/3"

type tmdbClient struct {
	apiKey   string
	language string
	baseURL  string
	httpc    *http.Client
	retryCfg retry.Config

	// Rate limiting
	throttleMu  sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

func newTMDBClient(apiKey, language string, httpc *http.Client, retryCfg retry.Config) *tmdbClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	if language == "" {
		language = "en-US"
	}
	return &tmdbClient{
		apiKey:      strings.TrimSpace(apiKey),
		language:    language,
		baseURL:     tmdbBaseURL,
		httpc:       httpc,
		retryCfg:    retryCfg,
		minInterval: 20 * time.Millisecond, // TMDB has generous rate limits
	}
}

func (c *tmdbClient) isConfigured() bool {
	return c != nil && c.apiKey != ""
}

// doGET performs a GET with rate limiting and the shared retry policy.
// 429 and 5xx are retried; other non-2xx statuses and decode failures on a
// success body are hard errors.
func (c *tmdbClient) doGET(ctx context.Context, endpoint string, v any) error {
	return retry.Do(ctx, c.retryCfg, func() error {
		c.throttleMu.Lock()
		since := time.Since(c.lastRequest)
		if since < c.minInterval {
			time.Sleep(c.minInterval - since)
		}
		c.lastRequest = time.Now()
		c.throttleMu.Unlock()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return retry.Unrecoverable(err)
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return retry.Unrecoverable(ErrNotFound)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return &retry.StatusError{Status: resp.StatusCode, URL: endpoint}
		case resp.StatusCode >= 400:
			return retry.Unrecoverable(fmt.Errorf("tmdb request failed: %s", resp.Status))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, v); err != nil {
			return retry.Unrecoverable(fmt.Errorf("decode tmdb response: %w", err))
		}
		return nil
	})
}

type tmdbFindResponse struct {
	MovieResults []tmdbFindEntry `json:"movie_results"`
	TVResults    []tmdbFindEntry `json:"tv_results"`
}

type tmdbFindEntry struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Name         string `json:"name"`
	ReleaseDate  string `json:"release_date"`
	FirstAirDate string `json:"first_air_date"`
}

// findByExternalID resolves an external catalogue id (IMDb) through TMDB's
// /find endpoint.
func (c *tmdbClient) findByExternalID(ctx context.Context, externalID string) (*tmdbFindResponse, error) {
	endpoint := fmt.Sprintf("%s/find/%s?api_key=%s&external_source=imdb_id&language=%s",
		c.baseURL, url.PathEscape(externalID), url.QueryEscape(c.apiKey), url.QueryEscape(c.language))

	var out tmdbFindResponse
	if err := c.doGET(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
