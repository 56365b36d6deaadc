package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/release-calendar/internal/ratelimit"
	"github.com/JakeFAU/release-calendar/internal/tmdb"
)

func TestPaginatorRecordsTotalFromFirstPage(t *testing.T) {
	t.Parallel()
	up := newFakeUpstream()
	up.addPage(2025, 3, 5)
	up.addPage(2025, 4, 9)

	p := NewPaginator(up, ratelimit.Unlimited(), nil)
	_, ok := p.TotalPages(2025)
	assert.False(t, ok)

	first, err := p.Page(context.Background(), 2025, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, first.TotalPages)

	// Later pages keep the count recorded from the resume page.
	second, err := p.Page(context.Background(), 2025, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, second.TotalPages)

	total, ok := p.TotalPages(2025)
	require.True(t, ok)
	assert.Equal(t, 5, total)
}

func TestPaginatorClampsToMaxPages(t *testing.T) {
	t.Parallel()
	up := newFakeUpstream()
	up.addPage(2024, 1, 38000)

	p := NewPaginator(up, ratelimit.Unlimited(), nil)
	page, err := p.Page(context.Background(), 2024, 1)
	require.NoError(t, err)
	assert.Equal(t, tmdb.MaxPages, page.TotalPages)
}

func TestPaginatorWrapsErrors(t *testing.T) {
	t.Parallel()
	up := newFakeUpstream()
	boom := errors.New("boom")
	up.discoverErr[2023] = boom

	p := NewPaginator(up, ratelimit.Unlimited(), nil)
	_, err := p.Page(context.Background(), 2023, 1)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "discover year 2023 page 1")
	_, ok := p.TotalPages(2023)
	assert.False(t, ok)
}

func TestPaginatorForgetRecordsCountAgain(t *testing.T) {
	t.Parallel()
	up := newFakeUpstream()
	up.addPage(2025, 1, 2)

	p := NewPaginator(up, ratelimit.Unlimited(), nil)
	_, err := p.Page(context.Background(), 2025, 1)
	require.NoError(t, err)

	up.addPage(2025, 1, 6)
	p.Forget(2025)
	_, ok := p.TotalPages(2025)
	assert.False(t, ok)

	page, err := p.Page(context.Background(), 2025, 1)
	require.NoError(t, err)
	assert.Equal(t, 6, page.TotalPages)
}
