package coordination

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Conceptual-Machines/algorhythm-api/internal/agents/analysis"
	"github.com/Conceptual-Machines/algorhythm-api/internal/agents/composer"
	"github.com/Conceptual-Machines/algorhythm-api/internal/agents/core"
	"github.com/Conceptual-Machines/algorhythm-api/internal/agents/core/config"
	"github.com/Conceptual-Machines/algorhythm-api/internal/contract"
	"github.com/Conceptual-Machines/algorhythm-api/internal/metrics"
	"github.com/Conceptual-Machines/algorhythm-api/internal/models"
	"github.com/Conceptual-Machines/algorhythm-api/internal/observability"
	"github.com/getsentry/sentry-go"
)

// Stream event types
const (
	EventProgress = "progress"
	EventAnalysis = "analysis"
	EventResult   = "result"
	EventError    = "error"
)

// Analyzer is the image analysis stage
type Analyzer interface {
	Analyze(ctx context.Context, photoURL string) (*models.ImageAnalysis, error)
}

// Composer is the music specification stage
type Composer interface {
	Compose(ctx context.Context, input composer.Input) (*models.MusicSpecification, error)
}

// Request is one pipeline run: a photo plus optional composition hints
type Request struct {
	PhotoURL string
	Style    string
	Lighting string
}

// Result carries the pipeline output. On a composition failure Analysis is set
// and Specification is nil.
type Result = models.Composition

// StreamEvent is emitted by RunStream as the pipeline progresses
type StreamEvent struct {
	Type    string `json:"type"`
	Stage   string `json:"stage,omitempty"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// StreamCallback is called for each event; a returned error aborts the run
type StreamCallback func(event StreamEvent) error

// Orchestrator runs image analysis then music specification, strictly in that order.
// It keeps no per-request state, so concurrent runs are safe.
type Orchestrator struct {
	analyzer   Analyzer
	composer   Composer
	langfuse   *observability.LangfuseClient
	metrics    *metrics.SentryMetrics
	cloudwatch *metrics.Client
}

// NewOrchestrator creates an orchestrator with providers selected by the configuration.
// Both stages report token usage to cloudwatch, which may be nil.
func NewOrchestrator(ctx context.Context, cfg *config.Config, cloudwatch *metrics.Client) (*Orchestrator, error) {
	analyzer, err := analysis.NewAgent(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis agent: %w", err)
	}
	comp, err := composer.NewAgent(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create composer agent: %w", err)
	}
	o := NewOrchestratorWithAgents(analyzer.WithCloudWatch(cloudwatch), comp.WithCloudWatch(cloudwatch))
	o.cloudwatch = cloudwatch
	return o, nil
}

// NewOrchestratorWithAgents creates an orchestrator over the given stages
func NewOrchestratorWithAgents(analyzer Analyzer, comp Composer) *Orchestrator {
	return &Orchestrator{
		analyzer: analyzer,
		composer: comp,
		langfuse: observability.Disabled(),
		metrics:  metrics.NewSentryMetrics(),
	}
}

// WithObservability attaches Langfuse tracing and CloudWatch pipeline metrics
func (o *Orchestrator) WithObservability(langfuse *observability.LangfuseClient, cloudwatch *metrics.Client) *Orchestrator {
	if langfuse != nil {
		o.langfuse = langfuse
	}
	o.cloudwatch = cloudwatch
	return o
}

// Run executes the pipeline. A bad URL fails with *core.ValidationError before any
// model call. An analysis failure returns (nil, err) and the composer is never called.
// A composition failure returns the analysis alongside the error.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	return o.run(ctx, req, nil)
}

// RunStream is Run with progress events delivered to callback as stages complete
func (o *Orchestrator) RunStream(ctx context.Context, req Request, callback StreamCallback) (*Result, error) {
	return o.run(ctx, req, callback)
}

func (o *Orchestrator) run(ctx context.Context, req Request, callback StreamCallback) (*Result, error) {
	emit := func(event StreamEvent) error {
		if callback == nil {
			return nil
		}
		return callback(event)
	}

	if err := contract.ValidateURL(req.PhotoURL); err != nil {
		validationErr := &core.ValidationError{Field: "photo_url", Message: "must be an absolute http(s) URL"}
		_ = emit(StreamEvent{Type: EventError, Message: validationErr.Error()})
		return nil, validationErr
	}

	startTime := time.Now()

	// Reuse the HTTP transaction when there is one
	transaction := sentry.TransactionFromContext(ctx)
	if transaction == nil {
		transaction = sentry.StartTransaction(ctx, "pipeline.run")
		defer transaction.Finish()
	}
	ctx = transaction.Context()

	trace := o.langfuse.StartTrace(ctx, "photo-to-music", map[string]interface{}{
		"photo_url": req.PhotoURL,
		"style":     req.Style,
		"lighting":  req.Lighting,
	})
	defer trace.Finish()
	ctx = observability.ContextWithTrace(ctx, trace)

	log.Printf("🎨 PIPELINE STARTED: %s", req.PhotoURL)

	if err := emit(StreamEvent{Type: EventProgress, Stage: core.StageAnalysis, Message: "Analyzing photo..."}); err != nil {
		return nil, err
	}

	imageAnalysis, err := o.analyzer.Analyze(ctx, req.PhotoURL)
	if err != nil {
		o.finish(ctx, startTime, core.StageAnalysis)
		_ = emit(StreamEvent{Type: EventError, Stage: core.StageAnalysis, Message: err.Error()})
		return nil, err
	}

	if err := emit(StreamEvent{Type: EventAnalysis, Stage: core.StageAnalysis, Data: imageAnalysis}); err != nil {
		return nil, err
	}
	if err := emit(StreamEvent{Type: EventProgress, Stage: core.StageComposition, Message: "Composing music..."}); err != nil {
		return nil, err
	}

	spec, err := o.composer.Compose(ctx, composer.InputFromAnalysis(imageAnalysis, req.Style, req.Lighting))
	if err != nil {
		o.finish(ctx, startTime, core.StageComposition)
		_ = emit(StreamEvent{
			Type:    EventError,
			Stage:   core.StageComposition,
			Data:    &Result{Analysis: imageAnalysis},
			Message: err.Error(),
		})
		return &Result{Analysis: imageAnalysis}, err
	}

	result := &Result{Analysis: imageAnalysis, Specification: spec}
	o.finish(ctx, startTime, "")
	log.Printf("✅ PIPELINE COMPLETE in %v", time.Since(startTime))

	if err := emit(StreamEvent{Type: EventResult, Data: result}); err != nil {
		return result, err
	}
	return result, nil
}

// finish records the run; failedStage is empty on success
func (o *Orchestrator) finish(ctx context.Context, startTime time.Time, failedStage string) {
	duration := time.Since(startTime)

	if transaction := sentry.TransactionFromContext(ctx); transaction != nil {
		transaction.SetTag("success", boolTag(failedStage == ""))
		if failedStage != "" {
			transaction.SetTag("failed_stage", failedStage)
		}
	}

	o.metrics.RecordPipelineRun(ctx, duration, failedStage)
	if o.cloudwatch != nil {
		o.cloudwatch.RecordPipelineRun(duration, failedStage)
	}
	if failedStage != "" {
		log.Printf("❌ PIPELINE FAILED at %s stage after %v", failedStage, duration)
	}
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
