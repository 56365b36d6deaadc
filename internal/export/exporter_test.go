package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/release-calendar/internal/catalog"
	"github.com/JakeFAU/release-calendar/internal/ics"
	"github.com/JakeFAU/release-calendar/internal/storage/local"
	"github.com/JakeFAU/release-calendar/internal/storage/memory"
)

func seededCatalog(t *testing.T) *memory.CatalogStore {
	t.Helper()
	ctx := context.Background()
	store := memory.NewCatalogStore()
	m, _, err := store.UpsertMovie(ctx, catalog.NewMovie{TMDBID: 42, Title: "T", Description: "D"})
	require.NoError(t, err)
	for _, rd := range []struct {
		country string
		date    time.Time
	}{
		{"US", time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"US", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"GB", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
	} {
		_, err := store.UpsertReleaseDate(ctx, catalog.ReleaseDate{
			MovieID: m.ID, CountryCode: rd.country, Date: rd.date, Type: catalog.ReleaseTheatrical,
		})
		require.NoError(t, err)
	}
	return store
}

func TestObjectPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "calendars/US/2025.ics", ObjectPath("calendars", "US", 2025))
	assert.Equal(t, "calendars/US/all.ics", ObjectPath("calendars", "US", 0))
	assert.Equal(t, "GB/all.ics", ObjectPath("", "GB", 0))
}

func TestExportToMemory(t *testing.T) {
	t.Parallel()
	blobs := memory.NewBlobStore()
	e := New(seededCatalog(t), blobs, Config{Prefix: "calendars"}, nil)

	results, err := e.Export(context.Background(), []string{"us", "GB"}, 2025, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, Result{CountryCode: "US", Path: "calendars/US/2025.ics", URI: "memory://calendars/US/2025.ics", Events: 1}, results[0])

	data, contentType, ok := blobs.Object("calendars/US/2025.ics")
	require.True(t, ok)
	assert.Equal(t, ics.ContentType, contentType)
	body := ics.Unfold(string(data))
	assert.Contains(t, body, "SUMMARY:T (Release)")
	assert.Contains(t, body, "DTSTART;VALUE=DATE:20250501")
	assert.NotContains(t, body, "20240501")
}

func TestExportAllYears(t *testing.T) {
	t.Parallel()
	blobs := memory.NewBlobStore()
	e := New(seededCatalog(t), blobs, Config{}, nil)

	results, err := e.Export(context.Background(), []string{"US"}, 0, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "US/all.ics", results[0].Path)
	assert.Equal(t, 2, results[0].Events)
}

func TestExportToLocalDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	blobs, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	e := New(seededCatalog(t), blobs, Config{Prefix: "out"}, nil)

	results, err := e.Export(context.Background(), []string{"GB"}, 2025, []catalog.ReleaseType{catalog.ReleaseTheatrical})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, strings.HasPrefix(results[0].URI, "file://"))

	data, err := os.ReadFile(filepath.Join(dir, "out", "GB", "2025.ics"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "BEGIN:VCALENDAR")
}

type failingBlobs struct{}

func (failingBlobs) PutObject(context.Context, string, string, []byte) (string, error) {
	return "", errors.New("bucket unavailable")
}

func TestExportCollectsErrors(t *testing.T) {
	t.Parallel()
	e := New(seededCatalog(t), failingBlobs{}, Config{}, nil)

	results, err := e.Export(context.Background(), []string{"US", "XYZ"}, 2025, nil)
	require.Error(t, err)
	assert.Empty(t, results)
	assert.Contains(t, err.Error(), "bucket unavailable")
	assert.Contains(t, err.Error(), `invalid country code "XYZ"`)
}

func TestExportContinuesAfterInvalidCountry(t *testing.T) {
	t.Parallel()
	blobs := memory.NewBlobStore()
	e := New(seededCatalog(t), blobs, Config{}, nil)

	results, err := e.Export(context.Background(), []string{"??", "US"}, 2025, nil)
	require.Error(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "US", results[0].CountryCode)
}

func exportSeries(t *testing.T) map[string]float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	series := make(map[string]float64)
	for _, mf := range families {
		if mf.GetName() != "release_calendar_exports_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			series[labels["country"]+"/"+labels["status"]] = m.GetCounter().GetValue()
		}
	}
	return series
}

func TestExportLabelsUnparseableCountryAsInvalid(t *testing.T) {
	e := New(seededCatalog(t), memory.NewBlobStore(), Config{}, nil)
	before := exportSeries(t)["invalid/error"]

	_, err := e.Export(context.Background(), []string{"not-a-country-7f3a", "us"}, 2025, nil)
	require.Error(t, err)

	after := exportSeries(t)
	assert.InDelta(t, 1, after["invalid/error"]-before, 0)
	assert.NotContains(t, after, "not-a-country-7f3a/error")
	assert.Positive(t, after["US/ok"])
}
