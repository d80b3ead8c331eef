package observability

import (
	"context"
	"log"
	"time"

	"github.com/Conceptual-Machines/algorhythm-api/internal/config"
	"github.com/Conceptual-Machines/algorhythm-api/internal/llm"
	langfuse "github.com/henomis/langfuse-go"
	"github.com/henomis/langfuse-go/model"
)

// LangfuseClient wraps the Langfuse client with our configuration
type LangfuseClient struct {
	client  *langfuse.Langfuse
	enabled bool
}

// NewLangfuseClient creates a Langfuse client. The SDK reads
// LANGFUSE_PUBLIC_KEY, LANGFUSE_SECRET_KEY and LANGFUSE_HOST from the environment.
func NewLangfuseClient(ctx context.Context, cfg *config.Config) *LangfuseClient {
	if !cfg.LangfuseEnabled || cfg.LangfuseSecretKey == "" {
		log.Println("⚠️  Langfuse not configured (LANGFUSE_ENABLED=false or LANGFUSE_SECRET_KEY not set)")
		return &LangfuseClient{enabled: false}
	}

	log.Printf("✅ Langfuse initialized (host: %s)", cfg.LangfuseHost)
	return &LangfuseClient{
		client:  langfuse.New(ctx),
		enabled: true,
	}
}

// Disabled returns a client that records nothing
func Disabled() *LangfuseClient {
	return &LangfuseClient{enabled: false}
}

// IsEnabled returns whether Langfuse is enabled
func (c *LangfuseClient) IsEnabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// StartTrace starts a new trace in Langfuse
func (c *LangfuseClient) StartTrace(ctx context.Context, name string, metadata map[string]interface{}) *Trace {
	if !c.IsEnabled() {
		return &Trace{enabled: false, ctx: ctx}
	}

	trace, err := c.client.Trace(&model.Trace{
		Name:     name,
		Metadata: metadata,
	})
	if err != nil {
		log.Printf("⚠️  Failed to create Langfuse trace: %v", err)
		return &Trace{enabled: false, ctx: ctx}
	}

	log.Printf("🔍 Langfuse: Created trace (name: %s)", name)
	return &Trace{
		trace:   trace,
		enabled: true,
		ctx:     ctx,
		client:  c.client,
	}
}

type traceKey struct{}

// ContextWithTrace attaches a trace so stages can hang generations off it
func ContextWithTrace(ctx context.Context, trace *Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, trace)
}

// TraceFromContext returns the attached trace, or a disabled one
func TraceFromContext(ctx context.Context) *Trace {
	if trace, ok := ctx.Value(traceKey{}).(*Trace); ok && trace != nil {
		return trace
	}
	return &Trace{enabled: false, ctx: ctx}
}

// Trace represents a Langfuse trace
type Trace struct {
	trace   *model.Trace
	enabled bool
	ctx     context.Context
	client  *langfuse.Langfuse
}

// ID returns the trace ID, empty when disabled
func (t *Trace) ID() string {
	if !t.enabled || t.trace == nil || t.trace.ID == nil {
		return ""
	}
	return *t.trace.ID
}

// Generation creates a new generation span within the trace
func (t *Trace) Generation(name string, metadata map[string]interface{}) *Generation {
	if !t.enabled {
		return &Generation{enabled: false}
	}

	now := time.Now()
	gen, err := t.client.Generation(&model.Generation{
		TraceID:   t.trace.ID,
		Name:      name,
		StartTime: &now,
		Metadata:  metadata,
	}, nil)
	if err != nil {
		log.Printf("⚠️  Failed to create Langfuse generation: %v", err)
		return &Generation{enabled: false}
	}

	return &Generation{
		generation: gen,
		enabled:    true,
		client:     t.client,
	}
}

// Finish completes the trace and flushes data to Langfuse
func (t *Trace) Finish() {
	if t.enabled && t.client != nil {
		t.client.Flush(t.ctx)
	}
}

// Generation represents a Langfuse generation span
type Generation struct {
	generation *model.Generation
	enabled    bool
	client     *langfuse.Langfuse
}

// Record stores the model call on the generation
func (g *Generation) Record(modelName string, input interface{}, output string, usage llm.TokenUsage) {
	if !g.enabled || g.generation == nil {
		return
	}

	cost := CalculateCost(modelName, usage)
	g.generation.Model = modelName
	g.generation.Input = input
	if output != "" {
		g.generation.Output = output
	}
	g.generation.Usage = model.Usage{
		Input:     int(usage.Input),
		Output:    int(usage.Output),
		Total:     int(usage.Total),
		Unit:      model.ModelUsageUnitTokens,
		TotalCost: cost,
	}
	g.addMetadata(map[string]interface{}{
		"cost_usd":         FormatCost(cost),
		"reasoning_tokens": usage.Reasoning,
	})
}

// Fail marks the generation as errored
func (g *Generation) Fail(err error) {
	if !g.enabled || g.generation == nil || err == nil {
		return
	}
	g.generation.Level = model.ObservationLevel("ERROR")
	g.addMetadata(map[string]interface{}{"error": err.Error()})
}

func (g *Generation) addMetadata(metadata map[string]interface{}) {
	md, ok := g.generation.Metadata.(map[string]interface{})
	if !ok || md == nil {
		md = make(map[string]interface{}, len(metadata))
	}
	for k, v := range metadata {
		md[k] = v
	}
	g.generation.Metadata = md
}

// Finish completes the generation and sends it to Langfuse
func (g *Generation) Finish() {
	if g.enabled && g.generation != nil && g.client != nil {
		now := time.Now()
		g.generation.EndTime = &now
		if _, err := g.client.GenerationEnd(g.generation); err != nil {
			log.Printf("⚠️  Failed to end Langfuse generation: %v", err)
		}
	}
}
