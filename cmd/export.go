package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/release-calendar/internal/catalog"
)

func newExportCmd() *cobra.Command {
	var (
		countries    []string
		year         int
		releaseTypes string
		prefix       string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write per-country .ics calendars to blob storage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config().Export
			if len(countries) == 0 {
				countries = cfg.Countries
			}
			if len(countries) == 0 {
				return errors.New("no countries to export; pass --country or set export.countries")
			}
			if !cmd.Flags().Changed("year") {
				year = cfg.Year
			}
			if releaseTypes == "" {
				releaseTypes = cfg.ReleaseTypes
			}
			if prefix == "" {
				prefix = cfg.Prefix
			}
			var types []catalog.ReleaseType
			if releaseTypes != "" {
				if types, err = catalog.ParseReleaseTypes(releaseTypes); err != nil {
					return fmt.Errorf("--release-types: %w", err)
				}
			}

			results, err := appInstance.Exporter(prefix).Export(cmd.Context(), countries, year, types)
			for _, res := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d events\t%s\n", res.CountryCode, res.Events, res.URI)
			}
			return err
		},
	}
	cmd.Flags().StringSliceVar(&countries, "country", nil, "ISO 3166-1 country code (repeatable; defaults to export.countries)")
	cmd.Flags().IntVar(&year, "year", 0, "restrict to one release year (0 exports all years)")
	cmd.Flags().StringVar(&releaseTypes, "release-types", "", "comma-separated release types (default 3)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "object path prefix (defaults to export.prefix)")
	return cmd
}
