package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Conceptual-Machines/algorhythm-api/internal/llm"
	"github.com/getsentry/sentry-go"
)

const (
	// HTTP status code threshold for considering a request successful
	successStatusCodeThreshold = http.StatusBadRequest
)

// SentryMetrics handles custom metrics for Sentry
type SentryMetrics struct {
	enabled bool
}

// NewSentryMetrics creates a new Sentry metrics client
func NewSentryMetrics() *SentryMetrics {
	return &SentryMetrics{
		enabled: true, // No-op when Sentry is not initialised
	}
}

// RecordAPIRequest records API request metrics
func (m *SentryMetrics) RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, "api.request")
	defer span.Finish()

	success := statusCode < successStatusCodeThreshold
	span.SetTag("endpoint", endpoint)
	span.SetTag("status_code", fmt.Sprintf("%d", statusCode))
	span.SetTag("success", fmt.Sprintf("%t", success))
	span.SetData("duration_ms", duration.Milliseconds())

	span.Status = statusFor(success)
	span.Description = fmt.Sprintf("API Request: %s", endpoint)
}

// RecordTokenUsage records token usage of one stage call on the current transaction
func (m *SentryMetrics) RecordTokenUsage(ctx context.Context, stage, model string, usage llm.TokenUsage) {
	if !m.enabled {
		return
	}

	if transaction := sentry.TransactionFromContext(ctx); transaction != nil {
		prefix := "llm." + stage
		transaction.SetTag(prefix+".model", model)
		transaction.SetData(prefix+".total_tokens", usage.Total)
		transaction.SetData(prefix+".input_tokens", usage.Input)
		transaction.SetData(prefix+".output_tokens", usage.Output)
		transaction.SetData(prefix+".reasoning_tokens", usage.Reasoning)
	}

	span := sentry.StartSpan(ctx, "llm.token_usage")
	defer span.Finish()

	span.SetTag("stage", stage)
	span.SetTag("model", model)
	for key, value := range usage.Fields() {
		span.SetData(key, value)
	}

	span.Status = sentry.SpanStatusOK
	span.Description = fmt.Sprintf("Token Usage: %s (%s)", stage, model)
}

// RecordStageDuration records the duration of one pipeline stage
func (m *SentryMetrics) RecordStageDuration(ctx context.Context, stage string, duration time.Duration, success bool) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, "pipeline.stage")
	defer span.Finish()

	span.SetTag("stage", stage)
	span.SetTag("success", fmt.Sprintf("%t", success))
	span.SetData("duration_ms", duration.Milliseconds())

	span.Status = statusFor(success)
	span.Description = fmt.Sprintf("Stage: %s", stage)
}

// RecordPipelineRun records one full pipeline run; failedStage is empty on success
func (m *SentryMetrics) RecordPipelineRun(ctx context.Context, duration time.Duration, failedStage string) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, "pipeline.run")
	defer span.Finish()

	success := failedStage == ""
	span.SetTag("success", fmt.Sprintf("%t", success))
	if !success {
		span.SetTag("failed_stage", failedStage)
	}
	span.SetData("duration_ms", duration.Milliseconds())

	span.Status = statusFor(success)
	span.Description = fmt.Sprintf("Pipeline Run: %t", success)
}

// RecordPlaybackCommand records a scheduler command issued by a client
func (m *SentryMetrics) RecordPlaybackCommand(command string, applied bool) {
	if !m.enabled {
		return
	}

	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Type:     "default",
		Category: "playback",
		Message:  command,
		Data:     map[string]interface{}{"applied": applied},
		Level:    sentry.LevelInfo,
	})
}

func statusFor(success bool) sentry.SpanStatus {
	if success {
		return sentry.SpanStatusOK
	}
	return sentry.SpanStatusInternalError
}
