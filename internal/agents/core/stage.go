package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Conceptual-Machines/algorhythm-api/internal/llm"
	"github.com/Conceptual-Machines/algorhythm-api/internal/logger"
	"github.com/Conceptual-Machines/algorhythm-api/internal/metrics"
	"github.com/Conceptual-Machines/algorhythm-api/internal/observability"
	"github.com/getsentry/sentry-go"
)

// StageCall describes one structured model call made by a pipeline stage
type StageCall struct {
	Stage      string
	Provider   llm.Provider
	Request    *llm.GenerationRequest
	Prompt     string // rendered instruction, recorded on the Langfuse generation
	Timeout    time.Duration
	Metrics    *metrics.SentryMetrics
	CloudWatch *metrics.Client
}

// RunStage performs the model call under the stage timeout and hands the raw output
// to decode. Every failure, including a decode error, comes back as a *GenerationError.
func RunStage(ctx context.Context, call StageCall, decode func(raw string) error) error {
	startTime := time.Now()
	model := call.Request.Model

	transaction := sentry.StartTransaction(ctx, "pipeline."+call.Stage)
	defer transaction.Finish()
	transaction.SetTag("stage", call.Stage)
	transaction.SetTag("model", model)
	transaction.SetTag("provider", call.Provider.Name())
	ctx = transaction.Context()

	generation := observability.TraceFromContext(ctx).Generation(call.Stage, map[string]interface{}{
		"provider":       call.Provider.Name(),
		"reasoning_mode": call.Request.ReasoningMode,
	})
	defer generation.Finish()

	stageCtx, cancel := context.WithTimeout(ctx, call.Timeout)
	defer cancel()

	log.Printf("🚀 %s REQUEST: %s model=%s, timeout=%v", call.Stage, call.Provider.Name(), model, call.Timeout)

	var usage llm.TokenUsage
	resp, err := call.Provider.Generate(stageCtx, call.Request)
	switch {
	case err != nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("%w after %v: %w", ErrStageTimeout, call.Timeout, err)
	case err != nil:
		err = fmt.Errorf("provider request failed: %w", err)
	case resp == nil:
		err = errors.New("provider returned no response")
	default:
		usage = llm.ExtractTokenUsage(resp.Usage)
		generation.Record(model, call.Prompt, resp.RawOutput, usage)
		err = decode(resp.RawOutput)
	}

	duration := time.Since(startTime)
	if call.Metrics != nil {
		call.Metrics.RecordStageDuration(ctx, call.Stage, duration, err == nil)
	}
	logger.LogStageResult(ctx, call.Stage, model, duration, usage.Fields(), err)

	if err != nil {
		transaction.SetTag("success", "false")
		generation.Fail(err)
		return &GenerationError{Stage: call.Stage, Err: err}
	}

	transaction.SetTag("success", "true")
	if call.Metrics != nil {
		call.Metrics.RecordTokenUsage(ctx, call.Stage, model, usage)
	}
	if call.CloudWatch != nil {
		call.CloudWatch.RecordTokenUsage(call.Stage, model, usage)
	}
	return nil
}
