package analysis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Conceptual-Machines/algorhythm-api/internal/agents/core"
	"github.com/Conceptual-Machines/algorhythm-api/internal/agents/core/config"
	"github.com/Conceptual-Machines/algorhythm-api/internal/contract"
	"github.com/Conceptual-Machines/algorhythm-api/internal/llm"
	"github.com/Conceptual-Machines/algorhythm-api/internal/metrics"
	"github.com/Conceptual-Machines/algorhythm-api/internal/models"
	"github.com/Conceptual-Machines/algorhythm-api/internal/prompt"
)

type analysisContract interface {
	OutputSchema() *llm.OutputSchema
	Decode(raw string) (*models.ImageAnalysis, error)
}

// Agent derives mood, dominant colors and salient objects from a photo
type Agent struct {
	provider      llm.Provider
	model         string
	reasoningMode string
	timeout       time.Duration
	prompts       *prompt.Builder
	contract      analysisContract
	metrics       *metrics.SentryMetrics
	cloudwatch    *metrics.Client
}

// NewAgent creates an analysis agent with the provider selected by the configuration
func NewAgent(ctx context.Context, cfg *config.Config) (*Agent, error) {
	factory := llm.NewProviderFactory(cfg.OpenAIAPIKey, cfg.GeminiAPIKey)
	provider, err := factory.GetProvider(ctx, cfg.AnalysisModel, cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("analysis provider: %w", err)
	}
	return NewAgentWithProvider(cfg, provider)
}

// NewAgentWithProvider creates an analysis agent with a specific LLM provider
func NewAgentWithProvider(cfg *config.Config, provider llm.Provider) (*Agent, error) {
	prompts, err := prompt.NewPromptBuilder(cfg.MusicSpecVariant())
	if err != nil {
		return nil, err
	}

	agent := &Agent{
		provider:      provider,
		model:         cfg.AnalysisModel,
		reasoningMode: cfg.ReasoningMode,
		timeout:       cfg.Timeout(),
		prompts:       prompts,
		contract:      contract.ImageAnalysis(),
		metrics:       metrics.NewSentryMetrics(),
	}

	log.Printf("🖼️  ANALYSIS AGENT INITIALIZED:")
	log.Printf("   Provider: %s", provider.Name())
	log.Printf("   Model: %s", agent.model)

	return agent, nil
}

// WithCloudWatch records token usage to CloudWatch as well
func (a *Agent) WithCloudWatch(client *metrics.Client) *Agent {
	a.cloudwatch = client
	return a
}

// Analyze runs the image analysis stage for a photo URL. Any failure is returned
// as a *core.GenerationError with Stage "analysis".
func (a *Agent) Analyze(ctx context.Context, photoURL string) (*models.ImageAnalysis, error) {
	log.Printf("🖼️  IMAGE ANALYSIS STARTED (Model: %s)", a.model)

	instruction, err := a.prompts.BuildAnalysisPrompt(prompt.AnalysisInput{PhotoURL: photoURL})
	if err != nil {
		return nil, &core.GenerationError{Stage: core.StageAnalysis, Err: err}
	}

	request := &llm.GenerationRequest{
		Model:         a.model,
		InputArray:    []map[string]any{llm.UserMessage(instruction)},
		ReasoningMode: a.reasoningMode,
		SystemPrompt:  a.prompts.AnalysisSystemPrompt(),
		OutputSchema:  a.contract.OutputSchema(),
	}

	var analysis *models.ImageAnalysis
	err = core.RunStage(ctx, core.StageCall{
		Stage:      core.StageAnalysis,
		Provider:   a.provider,
		Request:    request,
		Prompt:     instruction,
		Timeout:    a.timeout,
		Metrics:    a.metrics,
		CloudWatch: a.cloudwatch,
	}, func(raw string) error {
		decoded, decodeErr := a.contract.Decode(raw)
		if decodeErr != nil {
			return decodeErr
		}
		analysis = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ IMAGE ANALYSIS COMPLETE: mood=%q, colors=%d, objects=%d",
		analysis.Mood, len(analysis.DominantColors), len(analysis.Objects))
	return analysis, nil
}
