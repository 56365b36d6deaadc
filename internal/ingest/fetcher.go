package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/release-calendar/internal/tmdb"
)

// ReleaseDateFetcher looks up release dates through the rate limiter.
type ReleaseDateFetcher struct {
	upstream Upstream
	limiter  Limiter
	logger   *zap.Logger
}

// NewReleaseDateFetcher builds a ReleaseDateFetcher.
func NewReleaseDateFetcher(upstream Upstream, limiter Limiter, logger *zap.Logger) *ReleaseDateFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReleaseDateFetcher{upstream: upstream, limiter: limiter, logger: logger}
}

// Fetch returns the release dates for tmdbID. Upstream failures are logged
// and yield an empty result; only context cancellation is returned as an error.
func (f *ReleaseDateFetcher) Fetch(ctx context.Context, tmdbID int64) ([]tmdb.CountryReleases, error) {
	if err := f.limiter.WaitIfNeeded(ctx); err != nil {
		return nil, err
	}
	releases, err := f.upstream.ReleaseDates(ctx, tmdbID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fetch release dates for %d: %w", tmdbID, ctxErr)
		}
		f.logger.Warn("release dates unavailable",
			zap.Int64("tmdb_id", tmdbID),
			zap.Error(err),
		)
		return []tmdb.CountryReleases{}, nil
	}
	if releases == nil {
		releases = []tmdb.CountryReleases{}
	}
	return releases, nil
}
