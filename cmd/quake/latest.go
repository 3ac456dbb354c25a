package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/quake-bulletin-etl/internal/domain"
	"github.com/couchcryptid/quake-bulletin-etl/internal/store"
)

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the newest events in the dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("number")
		if n <= 0 {
			return fmt.Errorf("--number must be positive, got %d", n)
		}

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := store.Open(cfg.DatasetPath, cfg.DatasetRotateBytes, logger)
		if err != nil {
			return err
		}
		events := st.Latest(n)

		if jsonOutput {
			payloads := make([]domain.Payload, len(events))
			for i, e := range events {
				payloads[i] = e.Payload()
			}
			data, err := json.MarshalIndent(payloads, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal events: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}
		printEventTable(events)
		return nil
	},
}

func init() {
	latestCmd.Flags().IntP("number", "n", 1, "number of events to show")
}

func printEventTable(events []domain.EarthquakeEvent) {
	if len(events) == 0 {
		fmt.Println("No events.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tSCALE\tINTENSITY\tLOCATION\tLAT\tLON")
	for _, e := range events {
		scale, lat, lon := "-", "-", "-"
		if e.Magnitude != nil {
			scale = fmt.Sprintf("%.1f", *e.Magnitude)
		}
		if e.Coordinate != nil {
			lat = fmt.Sprintf("%.4f", e.Coordinate.Lat)
			lon = fmt.Sprintf("%.4f", e.Coordinate.Lon)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.DateTime, scale, e.Intensity, e.Location, lat, lon)
	}
	w.Flush()
}
