package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	agentconfig "github.com/Conceptual-Machines/algorhythm-api/internal/agents/core/config"
	"github.com/Conceptual-Machines/algorhythm-api/internal/agents/core/coordination"
	"github.com/Conceptual-Machines/algorhythm-api/internal/config"
	"github.com/Conceptual-Machines/algorhythm-api/internal/logger"
	"github.com/Conceptual-Machines/algorhythm-api/internal/metrics"
	"github.com/Conceptual-Machines/algorhythm-api/internal/observability"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	sentryFlushTimeout    = 2 * time.Second
	environmentProduction = "production"
)

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

// GetVersion returns the current release version
func GetVersion() string {
	return releaseVersion
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:           "algorhythm",
		Short:         "Turn photos into music",
		Version:       GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load environment variables
			if err := godotenv.Load(); err != nil {
				log.Println("No .env file found, using environment variables")
			}
			*cfg = *config.Load()
			logger.SetDebug(cfg.Debug)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newServeCommand(cfg))
	rootCmd.AddCommand(newComposeCommand(cfg))
	rootCmd.AddCommand(newPlayCommand(cfg))

	return rootCmd
}

// initSentry configures error tracking; the returned func flushes pending events
func initSentry(cfg *config.Config) func() {
	if cfg.SentryDSN == "" {
		log.Println("⚠️  Sentry not configured (SENTRY_DSN not set)")
		return func() {}
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          "algorhythm-api@" + releaseVersion,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		EnableLogs:       true,
		Debug:            cfg.Environment != environmentProduction,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			// Filter out sensitive data
			if event.Request != nil {
				event.Request.Headers = filterSensitiveHeaders(event.Request.Headers)
			}
			return event
		},
	}); err != nil {
		log.Printf("Failed to initialize Sentry: %v", err)
		return func() {}
	}

	log.Printf("✅ Sentry initialized (environment: %s, release: %s)", cfg.Environment, releaseVersion)
	return func() { sentry.Flush(sentryFlushTimeout) }
}

// newPipeline wires both stages with the configured providers and observability.
// cloudwatch may be nil.
func newPipeline(ctx context.Context, cfg *config.Config, cloudwatch *metrics.Client) (*coordination.Orchestrator, error) {
	orchestrator, err := coordination.NewOrchestrator(ctx, agentconfig.FromAppConfig(cfg), cloudwatch)
	if err != nil {
		return nil, err
	}
	return orchestrator.WithObservability(observability.NewLangfuseClient(ctx, cfg), cloudwatch), nil
}

func filterSensitiveHeaders(headers map[string]string) map[string]string {
	filtered := make(map[string]string)
	sensitiveKeys := map[string]bool{
		"authorization": true,
		"cookie":        true,
		"x-api-key":     true,
	}

	for k, v := range headers {
		if sensitiveKeys[strings.ToLower(k)] {
			filtered[k] = "[REDACTED]"
		} else {
			filtered[k] = v
		}
	}
	return filtered
}
