// Package ingest crawls the upstream discover listing year by year and
// persists movies with their per-country release dates.
//
// Ingestion is sequential. Each discover page is written in one transaction
// and every movie on the page runs inside its own savepoint, so a failing
// movie is logged and skipped without losing the rest of the page. A year
// whose page fetch or commit fails is skipped and reported with the page to
// resume from.
package ingest
