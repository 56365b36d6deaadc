package ingest

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/release-calendar/internal/ratelimit"
	"github.com/JakeFAU/release-calendar/internal/tmdb"
)

func TestFetcherReturnsReleases(t *testing.T) {
	t.Parallel()
	up := newFakeUpstream()
	up.addRelease(42, "US", "2025-05-01T00:00:00.000Z", 3)

	f := NewReleaseDateFetcher(up, ratelimit.Unlimited(), nil)
	got, err := f.Fetch(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "US", got[0].CountryCode)
}

func TestFetcherSwallowsUpstreamErrors(t *testing.T) {
	t.Parallel()
	up := newFakeUpstream()
	up.releaseErr[42] = &tmdb.StatusError{Endpoint: "release_dates", StatusCode: http.StatusInternalServerError, Status: "500"}

	f := NewReleaseDateFetcher(up, ratelimit.Unlimited(), nil)
	got, err := f.Fetch(context.Background(), 42)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFetcherNoReleasesIsEmptySlice(t *testing.T) {
	t.Parallel()
	f := NewReleaseDateFetcher(newFakeUpstream(), ratelimit.Unlimited(), nil)
	got, err := f.Fetch(context.Background(), 7)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFetcherReportsCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewReleaseDateFetcher(newFakeUpstream(), ratelimit.Unlimited(), nil)
	_, err := f.Fetch(ctx, 42)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFetcherWaitsOnLimiter(t *testing.T) {
	t.Parallel()
	var waits int
	limiter := ratelimit.New(ratelimit.Config{PauseEvery: 1, PauseDuration: 1}, nil,
		ratelimit.WithSleeper(func(context.Context, time.Duration) error {
			waits++
			return nil
		}))

	f := NewReleaseDateFetcher(newFakeUpstream(), limiter, nil)
	_, err := f.Fetch(context.Background(), 1)
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, waits)
	assert.Equal(t, 2, limiter.Count())
}
