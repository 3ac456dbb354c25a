package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/quake-bulletin-etl/internal/observability"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch the feed once and merge new bulletins into the dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, logger, observability.NewMetrics())
		if err != nil {
			return err
		}
		defer a.close()

		report, err := a.pipeline.RunOnce(cmd.Context())
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"outcome":     report.Outcome,
				"bulletins":   report.Bulletins,
				"added":       report.Added,
				"archive":     report.ArchivePath,
				"duration_ms": report.Duration.Milliseconds(),
			})
		}
		fmt.Printf("%s: %d bulletins, %d added\n", report.Outcome, report.Bulletins, report.Added)
		return nil
	},
}
