package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/quake-bulletin-etl/internal/adapter/http"
	"github.com/couchcryptid/quake-bulletin-etl/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline every RUN_INTERVAL and serve health, metrics, and events over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg, logger, observability.NewMetrics())
		if err != nil {
			return err
		}
		defer a.close()

		srv := httpadapter.NewServer(cfg.HTTPAddr, a.pipeline, a.store, cfg.LatestLimit, logger)

		// Start HTTP server.
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()

		// Start scheduler.
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := a.pipeline.Run(ctx, cfg.RunInterval); err != nil {
				logger.Error("scheduler error", "error", err)
			}
		}()

		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		select {
		case <-done:
		case <-shutdownCtx.Done():
			logger.Warn("scheduler did not stop before shutdown timeout")
		}

		logger.Info("shutdown complete")
		return nil
	},
}
