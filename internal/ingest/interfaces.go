package ingest

import (
	"context"

	"github.com/JakeFAU/release-calendar/internal/tmdb"
)

// Upstream is the slice of the movie API used by ingestion.
type Upstream interface {
	DiscoverMovies(ctx context.Context, year, page int) (tmdb.DiscoverPage, error)
	ReleaseDates(ctx context.Context, tmdbID int64) ([]tmdb.CountryReleases, error)
}

// Limiter throttles upstream calls.
type Limiter interface {
	WaitIfNeeded(ctx context.Context) error
}

// Publisher delivers the run summary to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
