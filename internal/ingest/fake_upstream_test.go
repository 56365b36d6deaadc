package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/release-calendar/internal/tmdb"
)

type pageKey struct{ year, page int }

// fakeUpstream serves canned discover pages and release dates.
type fakeUpstream struct {
	mu            sync.Mutex
	pages         map[pageKey]tmdb.DiscoverPage
	discoverErr   map[int]error
	releases      map[int64][]tmdb.CountryReleases
	releaseErr    map[int64]error
	discoverCalls []pageKey
	releaseCalls  []int64
	onDiscover    func(year, page int)
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		pages:       make(map[pageKey]tmdb.DiscoverPage),
		discoverErr: make(map[int]error),
		releases:    make(map[int64][]tmdb.CountryReleases),
		releaseErr:  make(map[int64]error),
	}
}

func (f *fakeUpstream) addPage(year, page, total int, movies ...tmdb.MovieSummary) {
	f.pages[pageKey{year, page}] = tmdb.DiscoverPage{
		Page:         page,
		TotalPages:   total,
		TotalResults: total * len(movies),
		Results:      movies,
	}
}

func (f *fakeUpstream) addRelease(tmdbID int64, country, date string, typ int) {
	list := f.releases[tmdbID]
	for i := range list {
		if list[i].CountryCode == country {
			list[i].ReleaseDates = append(list[i].ReleaseDates, tmdb.ReleaseDateEntry{ReleaseDate: date, Type: typ})
			return
		}
	}
	f.releases[tmdbID] = append(list, tmdb.CountryReleases{
		CountryCode:  country,
		ReleaseDates: []tmdb.ReleaseDateEntry{{ReleaseDate: date, Type: typ}},
	})
}

func (f *fakeUpstream) DiscoverMovies(ctx context.Context, year, page int) (tmdb.DiscoverPage, error) {
	if err := ctx.Err(); err != nil {
		return tmdb.DiscoverPage{}, err
	}
	f.mu.Lock()
	f.discoverCalls = append(f.discoverCalls, pageKey{year, page})
	hook := f.onDiscover
	f.mu.Unlock()
	if hook != nil {
		hook(year, page)
	}
	if err := f.discoverErr[year]; err != nil {
		return tmdb.DiscoverPage{}, err
	}
	p, ok := f.pages[pageKey{year, page}]
	if !ok {
		return tmdb.DiscoverPage{}, fmt.Errorf("no page %d for %d", page, year)
	}
	return p, nil
}

func (f *fakeUpstream) ReleaseDates(ctx context.Context, tmdbID int64) ([]tmdb.CountryReleases, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.releaseCalls = append(f.releaseCalls, tmdbID)
	f.mu.Unlock()
	if err := f.releaseErr[tmdbID]; err != nil {
		return nil, err
	}
	return f.releases[tmdbID], nil
}

func (f *fakeUpstream) discovered() []pageKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pageKey(nil), f.discoverCalls...)
}
