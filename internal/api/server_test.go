package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/release-calendar/internal/catalog"
	"github.com/JakeFAU/release-calendar/internal/ics"
	"github.com/JakeFAU/release-calendar/internal/storage/memory"
)

type seeded struct {
	store              *memory.CatalogStore
	alpha, beta, gamma catalog.Movie
}

func seedStore(t *testing.T) seeded {
	t.Helper()
	ctx := context.Background()
	store := memory.NewCatalogStore()
	add := func(tmdbID int64, title string) catalog.Movie {
		m, _, err := store.UpsertMovie(ctx, catalog.NewMovie{
			TMDBID:      tmdbID,
			Title:       title,
			Description: title + " description",
			PosterURL:   "https://image.tmdb.org/t/p/w500/" + strings.ToLower(title) + ".jpg",
		})
		require.NoError(t, err)
		return m
	}
	release := func(m catalog.Movie, country, date string, typ catalog.ReleaseType) {
		d, err := time.Parse(catalog.DateLayout, date)
		require.NoError(t, err)
		_, err = store.UpsertReleaseDate(ctx, catalog.ReleaseDate{MovieID: m.ID, CountryCode: country, Date: d, Type: typ})
		require.NoError(t, err)
	}
	s := seeded{store: store}
	s.alpha = add(1, "Alpha")
	s.beta = add(2, "Beta")
	s.gamma = add(3, "Gamma")
	release(s.alpha, "US", "2025-05-01", catalog.ReleaseTheatrical)
	release(s.alpha, "US", "2025-04-01", catalog.ReleasePremiere)
	release(s.beta, "US", "2025-03-01", catalog.ReleaseTheatrical)
	release(s.beta, "GB", "2025-03-02", catalog.ReleaseTheatrical)
	release(s.gamma, "US", "2024-12-25", catalog.ReleaseTheatrical)
	return s
}

func newTestServer(t *testing.T, cfg Config) (*Server, seeded) {
	t.Helper()
	s := seedStore(t)
	srv := NewServer(s.store, cfg, zap.NewNop())
	srv.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	return srv, s
}

func do(t *testing.T, srv *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) listResponse {
	t.Helper()
	var resp listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func titlesAndDates(resp listResponse) []string {
	out := make([]string, 0, len(resp.Data))
	for _, d := range resp.Data {
		out = append(out, d.Title+"@"+d.ReleaseDate)
	}
	return out
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, Config{})
	rec := do(t, srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

type failingStore struct {
	catalog.Reader
}

func (failingStore) Ping(context.Context) error { return errors.New("db down") }

func (failingStore) ListReleases(context.Context, catalog.ReleaseQuery) ([]catalog.MovieRelease, error) {
	return nil, errors.New("db down")
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, Config{})
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/readyz", nil).Code)

	down := NewServer(failingStore{}, Config{}, zap.NewNop())
	rec := do(t, down, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, Config{})
	do(t, srv, http.MethodGet, "/healthz", nil)
	rec := do(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_ListByCountry_DefaultsToTheatricalAscending(t *testing.T) {
	t.Parallel()
	srv, s := newTestServer(t, Config{})
	rec := do(t, srv, http.MethodGet, "/movies/country/US", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decodeList(t, rec)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, []string{"Gamma@2024-12-25", "Beta@2025-03-01", "Alpha@2025-05-01"}, titlesAndDates(resp))
	first := resp.Data[0]
	assert.Equal(t, s.gamma.ID, first.MovieID)
	assert.Equal(t, int64(3), first.TMDBID)
	assert.Equal(t, "US", first.CountryCode)
	assert.Equal(t, 3, first.ReleaseType)
	assert.Equal(t, "Gamma description", first.Description)
}

func TestServer_ListByCountry_Filters(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, Config{})

	resp := decodeList(t, do(t, srv, http.MethodGet, "/movies/country/us?release_type=1,3&year=2025", nil))
	assert.Equal(t, []string{"Beta@2025-03-01", "Alpha@2025-04-01", "Alpha@2025-05-01"}, titlesAndDates(resp))

	resp = decodeList(t, do(t, srv, http.MethodGet, "/movies/country/GB", nil))
	assert.Equal(t, []string{"Beta@2025-03-02"}, titlesAndDates(resp))

	resp = decodeList(t, do(t, srv, http.MethodGet, "/movies/country/FR", nil))
	assert.NotNil(t, resp.Data)
	assert.Empty(t, resp.Data)
}

func TestServer_ListByCountry_InvalidParams(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, Config{})
	for _, target := range []string{
		"/movies/country/US?release_type=abc",
		"/movies/country/US?year=twenty",
		"/movies/country/US?year=-1",
		"/movies/country/USA",
		"/movies/country/1A",
	} {
		rec := do(t, srv, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), `"status":"error"`, target)
	}
}

func TestServer_ListByCountry_StoreError(t *testing.T) {
	t.Parallel()
	srv := NewServer(failingStore{}, Config{}, zap.NewNop())
	rec := do(t, srv, http.MethodGet, "/movies/country/US", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "db down")
}

func TestServer_CalendarByCountry(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, Config{})
	rec := do(t, srv, http.MethodGet, "/movies/ics/country/us?year=2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ics.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="movies_US_release_calendar.ics"`, rec.Header().Get("Content-Disposition"))

	body := ics.Unfold(rec.Body.String())
	assert.Equal(t, 2, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "SUMMARY:Beta (Release)\r\n")
	assert.Contains(t, body, "SUMMARY:Alpha (Release)\r\n")
	assert.Contains(t, body, "UID:1-US-3-20250501@release-calendar\r\n")
	assert.NotContains(t, body, "Gamma")
}

func TestServer_CustomCalendar(t *testing.T) {
	t.Parallel()
	srv, s := newTestServer(t, Config{})
	payload, err := json.Marshal(map[string]any{
		"movie_ids":     []int64{s.alpha.ID},
		"country_code":  "US",
		"year":          2025,
		"release_types": "1,3",
	})
	require.NoError(t, err)

	rec := do(t, srv, http.MethodPost, "/movies/ics/custom", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ics.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="movies_US_2025_release_calendar.ics"`, rec.Header().Get("Content-Disposition"))
	body := ics.Unfold(rec.Body.String())
	assert.Equal(t, 2, strings.Count(body, "SUMMARY:Alpha (Release)"))
	assert.NotContains(t, body, "Beta")
}

func TestServer_CustomCalendar_YearAsString(t *testing.T) {
	t.Parallel()
	srv, s := newTestServer(t, Config{})
	body := []byte(`{"movie_ids":[` + jsonInt(s.beta.ID) + `],"country_code":"gb","year":"2025","release_types":"3"}`)
	rec := do(t, srv, http.MethodPost, "/movies/ics/custom", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "movies_GB_2025_release_calendar.ics")
}

func TestServer_CustomCalendar_MissingFields(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, Config{})
	for _, body := range []string{
		`{"country_code":"US","year":2025,"release_types":"3"}`,
		`{"movie_ids":[1],"year":2025,"release_types":"3"}`,
		`{"movie_ids":[1],"country_code":"US","release_types":"3"}`,
		`{"movie_ids":[1],"country_code":"US","year":2025}`,
		`{"movie_ids":[1],"country_code":"US","year":2025,"release_types":"x"}`,
		`{"movie_ids":[1],"country_code":"USA","year":2025,"release_types":"3"}`,
		`{invalid`,
	} {
		rec := do(t, srv, http.MethodPost, "/movies/ics/custom", []byte(body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestServer_CustomCalendar_NoMatches(t *testing.T) {
	t.Parallel()
	srv, s := newTestServer(t, Config{})
	body := []byte(`{"movie_ids":[` + jsonInt(s.gamma.ID) + `],"country_code":"US","year":2025,"release_types":"1,3"}`)
	rec := do(t, srv, http.MethodPost, "/movies/ics/custom", body)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "No movies found")
}

func TestServer_APIKey(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, Config{APIKey: "secret"})

	require.Equal(t, http.StatusForbidden, do(t, srv, http.MethodGet, "/movies/country/US", nil).Code)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/movies/country/US?api_key=secret", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/movies/country/US", nil)
	req.Header.Set(apiKeyHeader, "secret")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", nil).Code)
}

func TestServer_CORS(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, Config{})
	req := httptest.NewRequest(http.MethodGet, "/movies/country/US", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

type panickingStore struct{ failingStore }

func (panickingStore) ListReleases(context.Context, catalog.ReleaseQuery) ([]catalog.MovieRelease, error) {
	panic("boom")
}

func TestServer_RecoversFromPanic(t *testing.T) {
	t.Parallel()
	srv := NewServer(panickingStore{}, Config{}, zap.NewNop())
	rec := do(t, srv, http.MethodGet, "/movies/country/US", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_PropagatesRequestID(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, Config{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
