package ingest

import "time"

// YearSummary reports what one year of ingestion accomplished.
type YearSummary struct {
	Year                 int    `json:"year"`
	StartPage            int    `json:"start_page"`
	TotalPages           int    `json:"total_pages"`
	PagesCompleted       int    `json:"pages_completed"`
	MoviesProcessed      int    `json:"movies_processed"`
	MoviesCreated        int    `json:"movies_created"`
	MoviesFailed         int    `json:"movies_failed"`
	ReleaseDatesInserted int    `json:"release_dates_inserted"`
	ReleaseDatesExisting int    `json:"release_dates_existing"`
	ReleaseDatesSkipped  int    `json:"release_dates_skipped"`
	Skipped              bool   `json:"skipped"`
	ResumePage           int    `json:"resume_page,omitempty"`
	Error                string `json:"error,omitempty"`
}

// RunSummary is returned by Orchestrator.Run and published when configured.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Canceled   bool          `json:"canceled"`
	Years      []YearSummary `json:"years"`
}

// Totals sums the per-year counters.
func (s RunSummary) Totals() YearSummary {
	var t YearSummary
	for _, y := range s.Years {
		t.PagesCompleted += y.PagesCompleted
		t.MoviesProcessed += y.MoviesProcessed
		t.MoviesCreated += y.MoviesCreated
		t.MoviesFailed += y.MoviesFailed
		t.ReleaseDatesInserted += y.ReleaseDatesInserted
		t.ReleaseDatesExisting += y.ReleaseDatesExisting
		t.ReleaseDatesSkipped += y.ReleaseDatesSkipped
	}
	return t
}

// SkippedYears returns the years that ended with a year-level error.
func (s RunSummary) SkippedYears() []YearSummary {
	var out []YearSummary
	for _, y := range s.Years {
		if y.Skipped {
			out = append(out, y)
		}
	}
	return out
}

type pageCounts struct {
	processed, created, failed    int
	inserted, existing, malformed int
}

func (c *pageCounts) add(o pageCounts) {
	c.processed += o.processed
	c.created += o.created
	c.failed += o.failed
	c.inserted += o.inserted
	c.existing += o.existing
	c.malformed += o.malformed
}

func (y *YearSummary) merge(c pageCounts) {
	y.MoviesProcessed += c.processed
	y.MoviesCreated += c.created
	y.MoviesFailed += c.failed
	y.ReleaseDatesInserted += c.inserted
	y.ReleaseDatesExisting += c.existing
	y.ReleaseDatesSkipped += c.malformed
}
