// Command release-calendar ingests movie release dates from TMDB into a
// catalog, serves them over HTTP as JSON and iCalendar, and exports per-country
// calendars to blob storage.
//
// Subcommands:
//   - ingest: walks TMDB discover pages for each configured year, upserting
//     movies and their release dates one page per transaction.
//   - serve: runs the query API (/movies/...) plus /healthz, /readyz, /metrics.
//   - export: renders one .ics per country to the configured blob store.
//   - migrate: creates the Postgres schema.
//
// Configuration comes from an optional .env file, an optional YAML file passed
// with --config and RELCAL_* environment variables (TMDB_API_KEY is also read).
package main

import "github.com/JakeFAU/release-calendar/cmd"

func main() {
	cmd.Execute()
}
