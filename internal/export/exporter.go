// Package export renders per-country release calendars and uploads them to
// blob storage.
package export

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/release-calendar/internal/catalog"
	"github.com/JakeFAU/release-calendar/internal/ics"
	"github.com/JakeFAU/release-calendar/internal/metrics"
)

// BlobStore persists rendered calendars and returns their URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Config controls where calendars are written.
type Config struct {
	Prefix string
}

// Result describes one uploaded calendar.
type Result struct {
	CountryCode string `json:"country_code"`
	Path        string `json:"path"`
	URI         string `json:"uri"`
	Events      int    `json:"events"`
}

// Exporter renders calendars from the catalog.
type Exporter struct {
	reader catalog.Reader
	blobs  BlobStore
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New constructs an Exporter.
func New(reader catalog.Reader, blobs BlobStore, cfg Config, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		reader: reader,
		blobs:  blobs,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ObjectPath returns <prefix>/<CC>/<year|all>.ics.
func ObjectPath(prefix, country string, year int) string {
	name := "all"
	if year > 0 {
		name = strconv.Itoa(year)
	}
	return path.Join(prefix, country, name+".ics")
}

// Export writes one calendar per country. A failing country does not stop
// the others; all failures are joined into the returned error.
func (e *Exporter) Export(
	ctx context.Context,
	countries []string,
	year int,
	types []catalog.ReleaseType,
) ([]Result, error) {
	results := make([]Result, 0, len(countries))
	var errs []error
	for _, raw := range countries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := e.exportCountry(ctx, raw, year, types)
		if err != nil {
			metrics.ObserveExport(countryLabel(raw), "error")
			e.logger.Error("calendar export failed", zap.String("country", raw), zap.Error(err))
			errs = append(errs, fmt.Errorf("export %s: %w", raw, err))
			continue
		}
		metrics.ObserveExport(res.CountryCode, "ok")
		e.logger.Info("calendar exported",
			zap.String("country", res.CountryCode),
			zap.String("uri", res.URI),
			zap.Int("events", res.Events),
		)
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// countryLabel is the metrics label for raw: its normalized code, or
// "invalid" when raw is not a country code.
func countryLabel(raw string) string {
	code, err := catalog.NormalizeCountryCode(raw)
	if err != nil {
		return "invalid"
	}
	return code
}

func (e *Exporter) exportCountry(
	ctx context.Context,
	country string,
	year int,
	types []catalog.ReleaseType,
) (Result, error) {
	q := catalog.ReleaseQuery{CountryCode: country, Year: year, Types: types}
	if err := q.Validate(); err != nil {
		return Result{}, err
	}
	releases, err := e.reader.ListReleases(ctx, q)
	if err != nil {
		return Result{}, fmt.Errorf("list releases: %w", err)
	}

	name := q.CountryCode + " movie releases"
	if year > 0 {
		name = fmt.Sprintf("%s %d movie releases", q.CountryCode, year)
	}
	cal := ics.FromReleases(name, releases)
	cal.Stamp = e.now()
	body, err := cal.Bytes()
	if err != nil {
		return Result{}, err
	}

	objectPath := ObjectPath(e.cfg.Prefix, q.CountryCode, year)
	uri, err := e.blobs.PutObject(ctx, objectPath, ics.ContentType, body)
	if err != nil {
		return Result{}, fmt.Errorf("upload %s: %w", objectPath, err)
	}
	return Result{CountryCode: q.CountryCode, Path: objectPath, URI: uri, Events: len(releases)}, nil
}
