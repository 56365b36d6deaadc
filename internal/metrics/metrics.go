// Package metrics exposes Prometheus collectors for ingestion and the query API.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	upstreamRequestsTotal      *prometheus.CounterVec
	ingestPagesTotal           *prometheus.CounterVec
	ingestMoviesTotal          *prometheus.CounterVec
	ingestReleaseDatesTotal    *prometheus.CounterVec
	ingestYearsTotal           *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	calendarExportsTotal       *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors on the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		upstreamRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "release_calendar_upstream_requests_total",
				Help: "Upstream movie API requests, labeled by endpoint and status code.",
			},
			[]string{"endpoint", "code"},
		)

		ingestPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "release_calendar_ingest_pages_total",
				Help: "Discover pages committed, labeled by year.",
			},
			[]string{"year"},
		)

		ingestMoviesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "release_calendar_ingest_movies_total",
				Help: "Movies processed during ingestion, labeled by outcome (created, existing, failed).",
			},
			[]string{"outcome"},
		)

		ingestReleaseDatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "release_calendar_ingest_release_dates_total",
				Help: "Release-date entries seen during ingestion, labeled by outcome (inserted, existing, malformed).",
			},
			[]string{"outcome"},
		)

		ingestYearsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "release_calendar_ingest_years_total",
				Help: "Years finished during ingestion, labeled by outcome (done, skipped).",
			},
			[]string{"outcome"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "release_calendar_rate_limit_delay_seconds",
				Help:    "Time spent blocked in the upstream rate limiter, labeled by reason (spacing, pause).",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"reason"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		calendarExportsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "release_calendar_exports_total",
				Help: "Calendars written to blob storage, labeled by country and status.",
			},
			[]string{"country", "status"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveUpstreamRequest counts one upstream API call. code is 0 for transport errors.
func ObserveUpstreamRequest(endpoint string, code int) {
	Init()
	label := strconv.Itoa(code)
	if code == 0 {
		label = "error"
	}
	upstreamRequestsTotal.WithLabelValues(endpoint, label).Inc()
}

// ObservePage counts a committed discover page.
func ObservePage(year int) {
	Init()
	ingestPagesTotal.WithLabelValues(strconv.Itoa(year)).Inc()
}

// ObserveMovies adds n processed movies with the given outcome.
func ObserveMovies(outcome string, n int) {
	Init()
	if n > 0 {
		ingestMoviesTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// ObserveReleaseDates adds n release-date entries with the given outcome.
func ObserveReleaseDates(outcome string, n int) {
	Init()
	if n > 0 {
		ingestReleaseDatesTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// ObserveYear counts a finished year by outcome.
func ObserveYear(outcome string) {
	Init()
	ingestYearsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitDelay records time spent blocked in the rate limiter.
func ObserveRateLimitDelay(reason string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(reason).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveExport counts a calendar export attempt.
func ObserveExport(country, status string) {
	Init()
	calendarExportsTotal.WithLabelValues(country, status).Inc()
}
