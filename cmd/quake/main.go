package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/quake-bulletin-etl/internal/config"
	"github.com/couchcryptid/quake-bulletin-etl/internal/observability"
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:           "quake",
	Short:         "Ingest IPMA seismic bulletins into a geolocated earthquake dataset",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loadConfig reads the environment configuration and builds the logger
// every command passes down.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, observability.NewLogger(cfg), nil
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(extractCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
