// Package postgres provides the Postgres-backed catalog repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/release-calendar/internal/catalog"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type dbPool interface {
	querier
	Begin(context.Context) (pgx.Tx, error)
	Ping(context.Context) error
	Close()
}

// Store implements catalog.Repository on a pgx pool.
type Store struct {
	queries
	pool dbPool
}

var _ catalog.Repository = (*Store)(nil)

// NewStore connects a pool using cfg.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewStoreWithPool(pool)
}

// NewStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewStoreWithPool(pool dbPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{
		queries: queries{db: pool, now: func() time.Time { return time.Now().UTC() }},
		pool:    pool,
	}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// WithinTx runs fn in a transaction, committing on success.
func (s *Store) WithinTx(ctx context.Context, fn func(catalog.TxStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	return runInTx(ctx, tx, func() error {
		return fn(&txStore{queries: queries{db: tx, now: s.now}, tx: tx})
	})
}

type txStore struct {
	queries
	tx pgx.Tx
}

// Savepoint nests a pgx pseudo-transaction, which pgx issues as SAVEPOINT.
func (t *txStore) Savepoint(ctx context.Context, fn func(catalog.Store) error) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin savepoint: %w", err)
	}
	return runInTx(ctx, sp, func() error {
		return fn(&queries{db: sp, now: t.now})
	})
}

func runInTx(ctx context.Context, tx pgx.Tx, fn func() error) error {
	if err := fn(); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// queries holds the statements shared by the pool and transaction scopes.
type queries struct {
	db  querier
	now func() time.Time
}

const insertMovieSQL = `
INSERT INTO movies (tmdb_id, title, description, poster_url, last_updated)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (tmdb_id) DO NOTHING
RETURNING id, tmdb_id, title, COALESCE(description, ''), COALESCE(poster_url, ''), last_updated`

const selectMovieSQL = `
SELECT id, tmdb_id, title, COALESCE(description, ''), COALESCE(poster_url, ''), last_updated
FROM movies
WHERE tmdb_id = $1`

// UpsertMovie inserts the movie or returns the existing row untouched.
func (q *queries) UpsertMovie(ctx context.Context, m catalog.NewMovie) (catalog.Movie, bool, error) {
	if m.TMDBID <= 0 {
		return catalog.Movie{}, false, fmt.Errorf("tmdb id must be positive, got %d", m.TMDBID)
	}
	if m.Title == "" {
		return catalog.Movie{}, false, errors.New("title is required")
	}
	var movie catalog.Movie
	err := q.db.QueryRow(ctx, insertMovieSQL, m.TMDBID, m.Title, m.Description, m.PosterURL, q.now()).Scan(
		&movie.ID,
		&movie.TMDBID,
		&movie.Title,
		&movie.Description,
		&movie.PosterURL,
		&movie.LastUpdated,
	)
	switch {
	case err == nil:
		return movie, true, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return catalog.Movie{}, false, fmt.Errorf("insert movie %d: %w", m.TMDBID, err)
	}

	err = q.db.QueryRow(ctx, selectMovieSQL, m.TMDBID).Scan(
		&movie.ID,
		&movie.TMDBID,
		&movie.Title,
		&movie.Description,
		&movie.PosterURL,
		&movie.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Movie{}, false, fmt.Errorf("movie %d: %w", m.TMDBID, catalog.ErrNotFound)
		}
		return catalog.Movie{}, false, fmt.Errorf("select movie %d: %w", m.TMDBID, err)
	}
	return movie, false, nil
}

const insertReleaseDateSQL = `
INSERT INTO release_dates (movie_id, country_code, release_date, release_type)
VALUES ($1, $2, $3, $4)
ON CONFLICT (movie_id, country_code, release_date, release_type) DO NOTHING`

// UpsertReleaseDate inserts rd unless the (movie, country, date, type) tuple exists.
func (q *queries) UpsertReleaseDate(ctx context.Context, rd catalog.ReleaseDate) (bool, error) {
	tag, err := q.db.Exec(ctx, insertReleaseDateSQL, rd.MovieID, rd.CountryCode, rd.Date, int(rd.Type))
	if err != nil {
		return false, fmt.Errorf("insert release date for movie %d: %w", rd.MovieID, err)
	}
	return tag.RowsAffected() > 0, nil
}

const listReleasesSQL = `
SELECT m.id, m.tmdb_id, m.title, COALESCE(m.description, ''), COALESCE(m.poster_url, ''), m.last_updated,
	r.country_code, r.release_date, r.release_type
FROM movies m
JOIN release_dates r ON r.movie_id = m.id
WHERE r.country_code = $1
	AND r.release_type = ANY($2::int[])
	AND ($3::int = 0 OR EXTRACT(YEAR FROM r.release_date) = $3)
	AND (cardinality($4::bigint[]) = 0 OR m.id = ANY($4::bigint[]))
ORDER BY r.release_date ASC, m.title ASC`

// ListReleases returns joined rows for q ordered by release date.
func (q *queries) ListReleases(ctx context.Context, rq catalog.ReleaseQuery) ([]catalog.MovieRelease, error) {
	if err := rq.Validate(); err != nil {
		return nil, err
	}
	movieIDs := rq.MovieIDs
	if movieIDs == nil {
		movieIDs = []int64{}
	}
	rows, err := q.db.Query(
		ctx,
		listReleasesSQL,
		rq.CountryCode,
		catalog.TypeCodes(rq.EffectiveTypes()),
		rq.Year,
		movieIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	defer rows.Close()

	var out []catalog.MovieRelease
	for rows.Next() {
		var (
			rel catalog.MovieRelease
			typ int
		)
		if err := rows.Scan(
			&rel.ID,
			&rel.TMDBID,
			&rel.Title,
			&rel.Description,
			&rel.PosterURL,
			&rel.LastUpdated,
			&rel.CountryCode,
			&rel.ReleaseDate,
			&typ,
		); err != nil {
			return nil, fmt.Errorf("scan release row: %w", err)
		}
		rel.ReleaseType = catalog.ReleaseType(typ)
		out = append(out, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate release rows: %w", err)
	}
	return out, nil
}
