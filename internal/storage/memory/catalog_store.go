package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/release-calendar/internal/catalog"
)

type releaseKey struct {
	movieID int64
	country string
	date    string
	typ     catalog.ReleaseType
}

type state struct {
	nextMovieID   int64
	nextReleaseID int64
	movies        map[int64]catalog.Movie // keyed by TMDB ID
	releases      map[releaseKey]catalog.ReleaseDate
}

func (s state) clone() state {
	cp := state{
		nextMovieID:   s.nextMovieID,
		nextReleaseID: s.nextReleaseID,
		movies:        make(map[int64]catalog.Movie, len(s.movies)),
		releases:      make(map[releaseKey]catalog.ReleaseDate, len(s.releases)),
	}
	for k, v := range s.movies {
		cp.movies[k] = v
	}
	for k, v := range s.releases {
		cp.releases[k] = v
	}
	return cp
}

// CatalogStore is an in-memory catalog.Repository for development/testing.
// Transactions snapshot state and restore it on rollback; it assumes a single
// writer, like the Postgres-backed pipeline it stands in for.
type CatalogStore struct {
	mu  sync.RWMutex
	st  state
	now func() time.Time
}

// NewCatalogStore constructs an empty CatalogStore.
func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		st: state{
			movies:   make(map[int64]catalog.Movie),
			releases: make(map[releaseKey]catalog.ReleaseDate),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// UpsertMovie returns the stored movie for the TMDB ID or inserts it.
func (s *CatalogStore) UpsertMovie(_ context.Context, m catalog.NewMovie) (catalog.Movie, bool, error) {
	if m.TMDBID <= 0 {
		return catalog.Movie{}, false, fmt.Errorf("tmdb id must be positive, got %d", m.TMDBID)
	}
	if m.Title == "" {
		return catalog.Movie{}, false, errors.New("title is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.st.movies[m.TMDBID]; ok {
		return existing, false, nil
	}
	s.st.nextMovieID++
	movie := catalog.Movie{
		ID:          s.st.nextMovieID,
		TMDBID:      m.TMDBID,
		Title:       m.Title,
		Description: m.Description,
		PosterURL:   m.PosterURL,
		LastUpdated: s.now(),
	}
	s.st.movies[m.TMDBID] = movie
	return movie, true, nil
}

// UpsertReleaseDate inserts the release date unless the tuple already exists.
func (s *CatalogStore) UpsertReleaseDate(_ context.Context, rd catalog.ReleaseDate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasMovieID(rd.MovieID) {
		return false, fmt.Errorf("movie %d: %w", rd.MovieID, catalog.ErrNotFound)
	}
	key := releaseKey{
		movieID: rd.MovieID,
		country: rd.CountryCode,
		date:    rd.Date.Format(catalog.DateLayout),
		typ:     rd.Type,
	}
	if _, exists := s.st.releases[key]; exists {
		return false, nil
	}
	s.st.nextReleaseID++
	rd.ID = s.st.nextReleaseID
	s.st.releases[key] = rd
	return true, nil
}

// WithinTx runs fn and restores the previous state if it fails.
func (s *CatalogStore) WithinTx(ctx context.Context, fn func(catalog.TxStore) error) error {
	return s.atomically(func() error { return fn(txStore{s}) })
}

// ListReleases returns joined rows ordered by release date then title.
func (s *CatalogStore) ListReleases(_ context.Context, q catalog.ReleaseQuery) ([]catalog.MovieRelease, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	types := q.EffectiveTypes()
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := make(map[int64]catalog.Movie, len(s.st.movies))
	for _, m := range s.st.movies {
		byID[m.ID] = m
	}
	var out []catalog.MovieRelease
	for _, rd := range s.st.releases {
		if rd.CountryCode != q.CountryCode || !slices.Contains(types, rd.Type) {
			continue
		}
		if q.Year != 0 && rd.Date.Year() != q.Year {
			continue
		}
		if len(q.MovieIDs) > 0 && !slices.Contains(q.MovieIDs, rd.MovieID) {
			continue
		}
		out = append(out, catalog.MovieRelease{
			Movie:       byID[rd.MovieID],
			CountryCode: rd.CountryCode,
			ReleaseDate: rd.Date,
			ReleaseType: rd.Type,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ReleaseDate.Equal(out[j].ReleaseDate) {
			return out[i].ReleaseDate.Before(out[j].ReleaseDate)
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

// Ping always succeeds.
func (s *CatalogStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *CatalogStore) Close() {}

// MovieCount returns the number of stored movies.
func (s *CatalogStore) MovieCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.movies)
}

// ReleaseDateCount returns the number of stored release dates.
func (s *CatalogStore) ReleaseDateCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.releases)
}

// Movie looks up a stored movie by TMDB ID.
func (s *CatalogStore) Movie(tmdbID int64) (catalog.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.st.movies[tmdbID]
	if !ok {
		return catalog.Movie{}, catalog.ErrNotFound
	}
	return m, nil
}

// ReleaseDates returns the stored release dates for an internal movie ID.
func (s *CatalogStore) ReleaseDates(movieID int64) []catalog.ReleaseDate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []catalog.ReleaseDate
	for _, rd := range s.st.releases {
		if rd.MovieID == movieID {
			out = append(out, rd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *CatalogStore) atomically(fn func() error) error {
	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()
	if err := fn(); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *CatalogStore) hasMovieID(id int64) bool {
	for _, m := range s.st.movies {
		if m.ID == id {
			return true
		}
	}
	return false
}

type txStore struct {
	*CatalogStore
}

func (t txStore) Savepoint(_ context.Context, fn func(catalog.Store) error) error {
	return t.atomically(func() error { return fn(t.CatalogStore) })
}
