package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/release-calendar/internal/catalog"
	"github.com/JakeFAU/release-calendar/internal/metrics"
	"github.com/JakeFAU/release-calendar/internal/tmdb"
)

// DefaultBatchSize is the number of movies between progress log lines.
const DefaultBatchSize = 20

const publishTimeout = 10 * time.Second

// Config controls Orchestrator behavior.
type Config struct {
	BatchSize int
	// Topic receives the run summary when a publisher is set.
	Topic string
}

// Orchestrator drives ingestion across years.
type Orchestrator struct {
	paginator *Paginator
	fetcher   *ReleaseDateFetcher
	repo      catalog.Repository
	publisher Publisher
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
	newRunID  func() string
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher publishes the run summary to cfg.Topic after each run.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRunID overrides run ID generation.
func WithRunID(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newRunID = fn
		}
	}
}

// New constructs an Orchestrator.
func New(
	upstream Upstream,
	limiter Limiter,
	repo catalog.Repository,
	cfg Config,
	logger *zap.Logger,
	opts ...Option,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	o := &Orchestrator{
		paginator: NewPaginator(upstream, limiter, logger.Named("paginator")),
		fetcher:   NewReleaseDateFetcher(upstream, limiter, logger.Named("fetcher")),
		repo:      repo,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newRunID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run ingests every year in order. startPages maps a year to the page to
// resume from; missing years start at page 1. Year-level failures are
// recorded in the summary and do not stop later years, except context
// cancellation, which ends the run.
func (o *Orchestrator) Run(ctx context.Context, years []int, startPages map[int]int) RunSummary {
	summary := RunSummary{RunID: o.newRunID(), StartedAt: o.now()}
	logger := o.logger.With(zap.String("run_id", summary.RunID))
	logger.Info("ingestion started", zap.Ints("years", years))

	for _, year := range years {
		if ctx.Err() != nil {
			break
		}
		ys := o.runYear(ctx, logger.With(zap.Int("year", year)), year, startPage(startPages, year))
		summary.Years = append(summary.Years, ys)
		if ys.Skipped {
			metrics.ObserveYear("skipped")
		} else {
			metrics.ObserveYear("done")
		}
	}

	summary.FinishedAt = o.now()
	summary.Canceled = ctx.Err() != nil
	totals := summary.Totals()
	logger.Info("ingestion finished",
		zap.Int("pages", totals.PagesCompleted),
		zap.Int("movies_processed", totals.MoviesProcessed),
		zap.Int("movies_failed", totals.MoviesFailed),
		zap.Int("release_dates_inserted", totals.ReleaseDatesInserted),
		zap.Int("years_skipped", len(summary.SkippedYears())),
		zap.Bool("canceled", summary.Canceled),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	o.publish(ctx, logger, summary)
	return summary
}

func (o *Orchestrator) runYear(ctx context.Context, logger *zap.Logger, year, page int) YearSummary {
	ys := YearSummary{Year: year, StartPage: page}
	logger.Info("year started", zap.Int("start_page", page))
	o.paginator.Forget(year)

	for {
		result, err := o.paginator.Page(ctx, year, page)
		if err != nil {
			return o.skipYear(logger, ys, page, err)
		}
		ys.TotalPages = result.TotalPages

		counts, err := o.processPage(ctx, logger.With(zap.Int("page", page)), result.Results)
		if err != nil {
			return o.skipYear(logger, ys, page, err)
		}
		ys.merge(counts)
		ys.PagesCompleted++
		observePage(year, counts)

		logger.Info("page committed",
			zap.Int("page", page),
			zap.Int("total_pages", ys.TotalPages),
			zap.Int("movies", len(result.Results)),
			zap.Int("movies_failed", counts.failed),
			zap.Int("release_dates_inserted", counts.inserted),
		)
		page++
		if page > ys.TotalPages {
			break
		}
	}

	logger.Info("year finished",
		zap.Int("pages", ys.PagesCompleted),
		zap.Int("movies_processed", ys.MoviesProcessed),
		zap.Int("movies_failed", ys.MoviesFailed),
	)
	return ys
}

func (o *Orchestrator) skipYear(logger *zap.Logger, ys YearSummary, page int, err error) YearSummary {
	ys.Skipped = true
	ys.ResumePage = page
	ys.Error = err.Error()
	logger.Error("year skipped",
		zap.Int("resume_page", page),
		zap.String("resume_flag", fmt.Sprintf("--start-page %d=%d", ys.Year, page)),
		zap.Error(err),
	)
	return ys
}

// processPage writes one page in a single transaction. Per-movie failures
// roll back only that movie's savepoint.
func (o *Orchestrator) processPage(
	ctx context.Context,
	logger *zap.Logger,
	movies []tmdb.MovieSummary,
) (pageCounts, error) {
	var counts pageCounts
	err := o.repo.WithinTx(ctx, func(tx catalog.TxStore) error {
		counts = pageCounts{}
		for i, movie := range movies {
			var mc pageCounts
			err := tx.Savepoint(ctx, func(s catalog.Store) error {
				return o.processMovie(ctx, logger, s, movie, &mc)
			})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return fmt.Errorf("movie %d: %w", movie.ID, ctxErr)
				}
				counts.failed++
				metrics.ObserveMovies("failed", 1)
				logger.Warn("movie failed",
					zap.Int64("tmdb_id", movie.ID),
					zap.String("title", movie.Title),
					zap.Error(err),
				)
			} else {
				counts.add(mc)
			}
			if (i+1)%o.cfg.BatchSize == 0 {
				logger.Info("batch progress",
					zap.Int("done", i+1),
					zap.Int("of", len(movies)),
					zap.Int("failed", counts.failed),
				)
			}
		}
		return nil
	})
	if err != nil {
		return pageCounts{}, fmt.Errorf("commit page: %w", err)
	}
	return counts, nil
}

func (o *Orchestrator) processMovie(
	ctx context.Context,
	logger *zap.Logger,
	store catalog.Store,
	summary tmdb.MovieSummary,
	mc *pageCounts,
) error {
	movie, created, err := store.UpsertMovie(ctx, catalog.NewMovie{
		TMDBID:      summary.ID,
		Title:       summary.Title,
		Description: summary.Overview,
		PosterURL:   tmdb.PosterURL(summary.PosterPath),
	})
	if err != nil {
		return fmt.Errorf("upsert movie: %w", err)
	}

	countries, err := o.fetcher.Fetch(ctx, summary.ID)
	if err != nil {
		return err
	}

	var counts pageCounts
	counts.processed = 1
	if created {
		counts.created = 1
	}
	for _, country := range countries {
		for _, entry := range country.ReleaseDates {
			rd, err := toReleaseDate(movie.ID, country.CountryCode, entry)
			if err != nil {
				counts.malformed++
				logger.Warn("skipping malformed release date",
					zap.Int64("tmdb_id", summary.ID),
					zap.String("country", country.CountryCode),
					zap.String("release_date", entry.ReleaseDate),
					zap.Error(err),
				)
				continue
			}
			inserted, err := store.UpsertReleaseDate(ctx, rd)
			if err != nil {
				return fmt.Errorf("upsert release date %s %s: %w",
					rd.CountryCode, rd.Date.Format(catalog.DateLayout), err)
			}
			if inserted {
				counts.inserted++
			} else {
				counts.existing++
			}
		}
	}
	*mc = counts
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, logger *zap.Logger, summary RunSummary) {
	if o.publisher == nil || o.cfg.Topic == "" {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	id, err := o.publisher.Publish(pubCtx, o.cfg.Topic, summary)
	if err != nil {
		logger.Error("publish run summary failed", zap.String("topic", o.cfg.Topic), zap.Error(err))
		return
	}
	logger.Info("run summary published", zap.String("topic", o.cfg.Topic), zap.String("message_id", id))
}

// ParseReleaseDate reads the calendar date from the first ten characters of
// an upstream timestamp such as "2025-05-01T00:00:00.000Z".
func ParseReleaseDate(raw string) (time.Time, error) {
	if len(raw) < len(catalog.DateLayout) {
		return time.Time{}, fmt.Errorf("release date %q too short", raw)
	}
	t, err := time.Parse(catalog.DateLayout, raw[:len(catalog.DateLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse release date %q: %w", raw, err)
	}
	return t, nil
}

func toReleaseDate(movieID int64, country string, entry tmdb.ReleaseDateEntry) (catalog.ReleaseDate, error) {
	code, err := catalog.NormalizeCountryCode(country)
	if err != nil {
		return catalog.ReleaseDate{}, err
	}
	date, err := ParseReleaseDate(entry.ReleaseDate)
	if err != nil {
		return catalog.ReleaseDate{}, err
	}
	if entry.Type <= 0 {
		return catalog.ReleaseDate{}, errors.New("missing release type")
	}
	return catalog.ReleaseDate{
		MovieID:     movieID,
		CountryCode: code,
		Date:        date,
		Type:        catalog.ReleaseType(entry.Type),
	}, nil
}

func observePage(year int, c pageCounts) {
	metrics.ObservePage(year)
	metrics.ObserveMovies("created", c.created)
	metrics.ObserveMovies("existing", c.processed-c.created)
	metrics.ObserveReleaseDates("inserted", c.inserted)
	metrics.ObserveReleaseDates("existing", c.existing)
	metrics.ObserveReleaseDates("malformed", c.malformed)
}

func startPage(startPages map[int]int, year int) int {
	if p, ok := startPages[year]; ok && p > 1 {
		return p
	}
	return 1
}
