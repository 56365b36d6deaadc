// Package tmdb is a minimal client for the TMDB discover and release-dates endpoints.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/release-calendar/internal/metrics"
)

const (
	// DefaultBaseURL is the public TMDB v3 API root.
	DefaultBaseURL = "https://api.themoviedb.org/3"
	// ImageBaseURL is the TMDB image CDN root.
	ImageBaseURL = "https://image.tmdb.org/t/p"
	// PosterSize is the poster width variant stored with movies.
	PosterSize = "w500"
	// MaxPages is the highest discover page TMDB will serve.
	MaxPages = 500
	// DefaultTimeout bounds a single upstream request.
	DefaultTimeout = 15 * time.Second
	// DefaultLanguage is sent with discover requests.
	DefaultLanguage = "en-US"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("tmdb api key not configured")

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb %s failed: %s", e.Endpoint, e.Status)
}

// Config configures a Client.
type Config struct {
	APIKey   string
	BaseURL  string
	Language string
	Timeout  time.Duration
}

// Client talks to the TMDB API. It does not rate limit; callers do.
type Client struct {
	apiKey   string
	baseURL  string
	language string
	httpc    *http.Client
}

// NewClient builds a Client. A nil httpc gets a client with cfg.Timeout.
func NewClient(cfg Config, httpc *http.Client) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: timeout}
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	lang := cfg.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	return &Client{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  base,
		language: lang,
		httpc:    httpc,
	}
}

func (c *Client) isConfigured() bool {
	return c != nil && c.apiKey != ""
}

// DiscoverMovies fetches one discover page of movies first released in year.
func (c *Client) DiscoverMovies(ctx context.Context, year, page int) (DiscoverPage, error) {
	var out DiscoverPage
	params := url.Values{}
	params.Set("language", c.language)
	params.Set("primary_release_year", strconv.Itoa(year))
	params.Set("page", strconv.Itoa(page))
	if err := c.get(ctx, "discover", []string{"discover", "movie"}, params, &out); err != nil {
		return DiscoverPage{}, err
	}
	return out, nil
}

// ReleaseDates fetches per-country release dates for a movie.
func (c *Client) ReleaseDates(ctx context.Context, tmdbID int64) ([]CountryReleases, error) {
	var out releaseDatesResponse
	segments := []string{"movie", strconv.FormatInt(tmdbID, 10), "release_dates"}
	if err := c.get(ctx, "release_dates", segments, url.Values{}, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) get(ctx context.Context, name string, segments []string, params url.Values, v any) error {
	if !c.isConfigured() {
		return ErrNotConfigured
	}
	endpoint, err := url.JoinPath(c.baseURL, segments...)
	if err != nil {
		return fmt.Errorf("build %s url: %w", name, err)
	}
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		metrics.ObserveUpstreamRequest(name, 0)
		return fmt.Errorf("tmdb %s: %w", name, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	metrics.ObserveUpstreamRequest(name, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Endpoint: name, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
