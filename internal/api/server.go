package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/JakeFAU/release-calendar/internal/catalog"
	"github.com/JakeFAU/release-calendar/internal/ics"
	"github.com/JakeFAU/release-calendar/internal/metrics"
)

// DefaultRequestTimeout bounds handler execution when Config leaves it unset.
const DefaultRequestTimeout = 30 * time.Second

// Store is the read surface the API needs.
type Store interface {
	catalog.Reader
	Ping(ctx context.Context) error
}

// Config controls the HTTP server.
type Config struct {
	RequestTimeout time.Duration
	// APIKey guards the /movies routes when non-empty.
	APIKey         string
	AllowedOrigins []string
}

// Server wires HTTP handlers to the catalog store.
type Server struct {
	router chi.Router
	store  Store
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewServer constructs a Server with middleware and routes.
func NewServer(store Store, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	metrics.Init()

	s := &Server{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", apiKeyHeader},
		ExposedHeaders: []string{"Content-Disposition", requestIDHeader},
		MaxAge:         300,
	}))
	r.Use(timeoutMiddleware(cfg.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/movies", func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(apiKeyMiddleware(cfg.APIKey))
		}
		r.Get("/country/{country_code}", s.listByCountry)
		r.Get("/ics/country/{country_code}", s.calendarByCountry)
		r.Post("/ics/custom", s.customCalendar)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listByCountry(w http.ResponseWriter, r *http.Request) {
	q, err := parseReleaseQuery(chi.URLParam(r, "country_code"), r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	releases, err := s.store.ListReleases(r.Context(), q)
	if err != nil {
		s.internalError(w, r, "list releases", err)
		return
	}
	data := make([]releaseDTO, 0, len(releases))
	for _, rel := range releases {
		data = append(data, toDTO(rel))
	}
	s.writeJSON(w, http.StatusOK, listResponse{Status: "success", Data: data})
}

func (s *Server) calendarByCountry(w http.ResponseWriter, r *http.Request) {
	q, err := parseReleaseQuery(chi.URLParam(r, "country_code"), r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	releases, err := s.store.ListReleases(r.Context(), q)
	if err != nil {
		s.internalError(w, r, "list releases", err)
		return
	}
	name := fmt.Sprintf("movies_%s_release_calendar.ics", q.CountryCode)
	s.writeCalendar(w, r, name, q.CountryCode+" movie releases", releases)
}

func (s *Server) customCalendar(w http.ResponseWriter, r *http.Request) {
	var req customCalendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	q, err := req.toQuery()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	releases, err := s.store.ListReleases(r.Context(), q)
	if err != nil {
		s.internalError(w, r, "list custom releases", err)
		return
	}
	if len(releases) == 0 {
		s.writeError(w, http.StatusNotFound, "No movies found for the specified filters")
		return
	}
	name := fmt.Sprintf("movies_%s_%d_release_calendar.ics", q.CountryCode, q.Year)
	s.writeCalendar(w, r, name, fmt.Sprintf("%s %d movie releases", q.CountryCode, q.Year), releases)
}

func (s *Server) writeCalendar(
	w http.ResponseWriter,
	r *http.Request,
	fileName, calName string,
	releases []catalog.MovieRelease,
) {
	cal := ics.FromReleases(calName, releases)
	cal.Stamp = s.now()
	body, err := cal.Bytes()
	if err != nil {
		s.internalError(w, r, "render calendar", err)
		return
	}
	w.Header().Set("Content-Type", ics.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Warn("write calendar failed", zap.String("file", fileName), zap.Error(err))
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	s.logger.Error(op+" failed",
		zap.String("request_id", requestIDFrom(r.Context())),
		zap.Error(err),
	)
	s.writeError(w, status, "internal server error")
}

type listResponse struct {
	Status string       `json:"status"`
	Data   []releaseDTO `json:"data"`
}

type releaseDTO struct {
	MovieID     int64  `json:"movie_id"`
	TMDBID      int64  `json:"tmdb_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PosterURL   string `json:"poster_url"`
	CountryCode string `json:"country_code"`
	ReleaseType int    `json:"release_type"`
	ReleaseDate string `json:"release_date"`
}

func toDTO(r catalog.MovieRelease) releaseDTO {
	return releaseDTO{
		MovieID:     r.ID,
		TMDBID:      r.TMDBID,
		Title:       r.Title,
		Description: r.Description,
		PosterURL:   r.PosterURL,
		CountryCode: r.CountryCode,
		ReleaseType: int(r.ReleaseType),
		ReleaseDate: r.ReleaseDate.Format(catalog.DateLayout),
	}
}

var errMissingParams = errors.New("missing required parameters")

type customCalendarRequest struct {
	MovieIDs     []int64   `json:"movie_ids"`
	CountryCode  string    `json:"country_code"`
	Year         yearValue `json:"year"`
	ReleaseTypes string    `json:"release_types"`
}

func (req customCalendarRequest) toQuery() (catalog.ReleaseQuery, error) {
	if len(req.MovieIDs) == 0 || strings.TrimSpace(req.CountryCode) == "" ||
		req.Year == 0 || strings.TrimSpace(req.ReleaseTypes) == "" {
		return catalog.ReleaseQuery{}, errMissingParams
	}
	types, err := catalog.ParseReleaseTypes(req.ReleaseTypes)
	if err != nil {
		return catalog.ReleaseQuery{}, err
	}
	if len(types) == 0 {
		return catalog.ReleaseQuery{}, errMissingParams
	}
	q := catalog.ReleaseQuery{
		CountryCode: req.CountryCode,
		Year:        int(req.Year),
		Types:       types,
		MovieIDs:    req.MovieIDs,
	}
	if err := q.Validate(); err != nil {
		return catalog.ReleaseQuery{}, err
	}
	return q, nil
}

// yearValue accepts a JSON number or a numeric string.
type yearValue int

func (y *yearValue) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if raw == "" || raw == "null" {
		*y = 0
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid year %q", raw)
	}
	*y = yearValue(n)
	return nil
}

func parseReleaseQuery(country string, params map[string][]string) (catalog.ReleaseQuery, error) {
	q := catalog.ReleaseQuery{CountryCode: country}
	types, err := catalog.ParseReleaseTypes(first(params, "release_type"))
	if err != nil {
		return catalog.ReleaseQuery{}, err
	}
	q.Types = types
	if raw := strings.TrimSpace(first(params, "year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil || year <= 0 {
			return catalog.ReleaseQuery{}, fmt.Errorf("invalid year %q", raw)
		}
		q.Year = year
	}
	if err := q.Validate(); err != nil {
		return catalog.ReleaseQuery{}, err
	}
	return q, nil
}

func first(params map[string][]string, key string) string {
	if v := params[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"status": "error", "message": msg})
}
