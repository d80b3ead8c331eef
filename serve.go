package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Conceptual-Machines/algorhythm-api/internal/api"
	"github.com/Conceptual-Machines/algorhythm-api/internal/config"
	"github.com/Conceptual-Machines/algorhythm-api/internal/metrics"
	"github.com/Conceptual-Machines/algorhythm-api/internal/playback"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(cfg *config.Config) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				cfg.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides PORT)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	flush := initSentry(cfg)
	defer flush()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cloudwatch, err := metrics.NewClient(ctx, cfg.Environment, cfg.CloudWatchNamespace)
	if err != nil {
		sentry.CaptureException(err)
		return err
	}

	pipeline, err := newPipeline(ctx, cfg, cloudwatch)
	if err != nil {
		sentry.CaptureException(err)
		return err
	}

	sessions := playback.NewRegistry(playback.WithDefaults(cfg.DefaultTempo, cfg.DefaultVolume))
	defer sessions.Close()
	go sessions.Reap(ctx, cfg.SessionIdleTTL)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := api.SetupRouter(api.Dependencies{
		Config:     cfg,
		Pipeline:   pipeline,
		Sessions:   sessions,
		Metrics:    metrics.NewSentryMetrics(),
		CloudWatch: cloudwatch,
		Version:    GetVersion(),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 Starting server on port %s", cfg.Port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			sentry.CaptureException(err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("🛑 Shutting down server")
	// Ends open event streams so Shutdown does not wait on them
	sessions.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
