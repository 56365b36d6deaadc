package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/release-calendar/internal/tmdb"
)

// Paginator walks discover pages for a year and remembers the page count
// reported by the first page it fetched for that year.
type Paginator struct {
	upstream   Upstream
	limiter    Limiter
	logger     *zap.Logger
	totalPages map[int]int
}

// NewPaginator builds a Paginator.
func NewPaginator(upstream Upstream, limiter Limiter, logger *zap.Logger) *Paginator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Paginator{
		upstream:   upstream,
		limiter:    limiter,
		logger:     logger,
		totalPages: make(map[int]int),
	}
}

// Page fetches one discover page. The returned TotalPages is the recorded
// count for the year, clamped to tmdb.MaxPages.
func (p *Paginator) Page(ctx context.Context, year, page int) (tmdb.DiscoverPage, error) {
	if err := p.limiter.WaitIfNeeded(ctx); err != nil {
		return tmdb.DiscoverPage{}, err
	}
	result, err := p.upstream.DiscoverMovies(ctx, year, page)
	if err != nil {
		return tmdb.DiscoverPage{}, fmt.Errorf("discover year %d page %d: %w", year, page, err)
	}

	total, ok := p.totalPages[year]
	if !ok {
		total = min(result.TotalPages, tmdb.MaxPages)
		p.totalPages[year] = total
		p.logger.Info("discovered page count",
			zap.Int("year", year),
			zap.Int("total_pages", total),
			zap.Int("total_results", result.TotalResults),
		)
	}
	result.TotalPages = total
	return result, nil
}

// Forget drops the recorded page count for year so the next Page call
// records it again.
func (p *Paginator) Forget(year int) {
	delete(p.totalPages, year)
}

// TotalPages reports the recorded page count for year.
func (p *Paginator) TotalPages(year int) (int, bool) {
	total, ok := p.totalPages[year]
	return total, ok
}
