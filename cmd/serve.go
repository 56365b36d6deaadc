package cmd

import (
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the release-date query API",
		Long: `Serves /movies/country/{cc}, /movies/ics/country/{cc} and
/movies/ics/custom along with /healthz, /readyz and /metrics. The server
drains in-flight requests on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return appInstance.Serve(cmd.Context())
		},
	}
}
