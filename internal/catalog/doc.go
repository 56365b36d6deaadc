// Package catalog defines the movie and release-date types shared by the
// ingestion pipeline, the stores, and the HTTP API, along with the store
// interfaces they are written against. Implementations live in
// internal/storage; this package must not import database drivers.
package catalog
