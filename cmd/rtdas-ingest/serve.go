package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/rtdas-ingest-service/internal/adapter/httpadapter"
	"github.com/couchcryptid/rtdas-ingest-service/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run ingestion on a schedule and expose health and metrics endpoints",
	Long: `Runs ingestion immediately and then every RUN_INTERVAL. Serves /healthz,
/readyz, /status, and /metrics on HTTP_ADDR until SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	logger := a.logger
	srv := httpadapter.NewServer(a.cfg.HTTPAddr, a.orchestrator, a.orchestrator, logger)
	scheduler := pipeline.NewScheduler(a.orchestrator, a.cfg.Sources, a.cfg.RunInterval, a.cfg.RunTimeout,
		clockwork.NewRealClock(), logger, a.metrics)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("ingestion run still in progress at shutdown deadline")
	}

	logger.Info("shutdown complete")
	return nil
}
