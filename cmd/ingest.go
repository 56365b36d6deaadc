package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/release-calendar/internal/config"
	"github.com/JakeFAU/release-calendar/internal/tmdb"
)

func newIngestCmd() *cobra.Command {
	var (
		years      []int
		startPages []string
		batchSize  int
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest movies and release dates for one or more years",
		Long: `Walks the TMDB discover endpoint page by page for each year, storing
movies and their release dates. Each page is committed in its own transaction.
A year that fails is skipped and its resume page is logged; pass it back with
--start-page YEAR=PAGE to continue where it stopped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config()
			if cfg.TMDB.APIKey == "" {
				return fmt.Errorf("tmdb.api_key (or TMDB_API_KEY): %w", tmdb.ErrNotConfigured)
			}
			resume, err := mergeStartPages(cfg.Ingest, startPages)
			if err != nil {
				return err
			}
			if len(years) == 0 {
				years = cfg.Ingest.Years
			}
			if len(years) == 0 {
				years = config.SortedYears(resume)
			}
			if len(years) == 0 {
				return errors.New("no years to ingest; pass --year or set ingest.years")
			}
			if batchSize <= 0 {
				batchSize = cfg.Ingest.BatchSize
			}

			summary := appInstance.Orchestrator(batchSize).Run(cmd.Context(), years, resume)
			totals := summary.Totals()
			var skipped []int
			for _, ys := range summary.SkippedYears() {
				skipped = append(skipped, ys.Year)
			}
			appInstance.Logger().Info("ingest command finished",
				zap.String("run_id", summary.RunID),
				zap.Int("movies_created", totals.MoviesCreated),
				zap.Int("release_dates_inserted", totals.ReleaseDatesInserted),
				zap.Ints("skipped_years", skipped),
				zap.Bool("canceled", summary.Canceled),
			)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	cmd.Flags().IntSliceVar(&years, "year", nil, "release year to ingest (repeatable; defaults to ingest.years)")
	cmd.Flags().StringArrayVar(&startPages, "start-page", nil, "resume page as YEAR=PAGE (repeatable)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "movies per progress log line (defaults to ingest.batch_size)")
	return cmd
}

// mergeStartPages overlays --start-page flags onto ingest.start_pages.
func mergeStartPages(cfg config.IngestConfig, flags []string) (map[int]int, error) {
	pages, err := cfg.ResumePages()
	if err != nil {
		return nil, err
	}
	for _, raw := range flags {
		year, page, err := config.ParseStartPage(raw)
		if err != nil {
			return nil, fmt.Errorf("--start-page: %w", err)
		}
		pages[year] = page
	}
	return pages, nil
}
