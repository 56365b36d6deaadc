// Package api hosts the HTTP server, middleware, and handlers for the release
// calendar. Notable routes:
//   - GET /healthz / readyz for liveness and readiness checks.
//   - GET /metrics for Prometheus scraping.
//   - GET /movies/country/{country_code} for JSON release listings.
//   - GET /movies/ics/country/{country_code} and POST /movies/ics/custom for
//     calendar downloads.
package api
