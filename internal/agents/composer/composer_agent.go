package composer

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

// Input is what the composer works from: the image analysis plus optional hints
type Input struct {
	Mood           string
	DominantColors []string
	Objects        []string
	Style          string // optional musical style
	Lighting       string // optional lighting description
}

// InputFromAnalysis builds composer input from an image analysis
func InputFromAnalysis(analysis *models.ImageAnalysis, style, lighting string) Input {
	return Input{
		Mood:           analysis.Mood,
		DominantColors: analysis.DominantColors,
		Objects:        analysis.Objects,
		Style:          style,
		Lighting:       lighting,
	}
}

// Agent turns an image description into a music specification
type Agent struct {
	provider      llm.Provider
	model         string
	reasoningMode string
	timeout       time.Duration
	prompts       *prompt.Builder
	contract      contract.Decoder
	metrics       *metrics.SentryMetrics
	cloudwatch    *metrics.Client
}

// NewAgent creates a composer agent with the provider selected by the configuration
func NewAgent(ctx context.Context, cfg *config.Config) (*Agent, error) {
	factory := llm.NewProviderFactory(cfg.OpenAIAPIKey, cfg.GeminiAPIKey)
	provider, err := factory.GetProvider(ctx, cfg.CompositionModel, cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("composition provider: %w", err)
	}
	return NewAgentWithProvider(cfg, provider)
}

// NewAgentWithProvider creates a composer agent with a specific LLM provider
func NewAgentWithProvider(cfg *config.Config, provider llm.Provider) (*Agent, error) {
	variant := cfg.MusicSpecVariant()
	prompts, err := prompt.NewPromptBuilder(variant)
	if err != nil {
		return nil, err
	}

	agent := &Agent{
		provider:      provider,
		model:         cfg.CompositionModel,
		reasoningMode: cfg.ReasoningMode,
		timeout:       cfg.Timeout(),
		prompts:       prompts,
		contract:      contract.MusicSpecification(variant),
		metrics:       metrics.NewSentryMetrics(),
	}

	log.Printf("🎼 COMPOSER AGENT INITIALIZED:")
	log.Printf("   Provider: %s", provider.Name())
	log.Printf("   Model: %s", agent.model)
	log.Printf("   Variant: %s", variant)

	return agent, nil
}

// WithCloudWatch records token usage to CloudWatch as well
func (a *Agent) WithCloudWatch(client *metrics.Client) *Agent {
	a.cloudwatch = client
	return a
}

// Variant returns the music specification variant this agent asks for
func (a *Agent) Variant() string {
	return a.prompts.Variant()
}

// Compose runs the music specification stage
func (a *Agent) Compose(ctx context.Context, input Input) (*models.MusicSpecification, error) {
	log.Printf("🎼 COMPOSITION STARTED (Model: %s, mood=%q)", a.model, input.Mood)

	instruction, err := a.prompts.BuildCompositionPrompt(prompt.CompositionInput{
		Mood:           input.Mood,
		DominantColors: input.DominantColors,
		Objects:        input.Objects,
		Style:          input.Style,
		Lighting:       input.Lighting,
	})
	if err != nil {
		return nil, &core.GenerationError{Stage: core.StageComposition, Err: err}
	}

	request := &llm.GenerationRequest{
		Model:         a.model,
		InputArray:    []map[string]any{llm.UserMessage(instruction)},
		ReasoningMode: a.reasoningMode,
		SystemPrompt:  a.prompts.CompositionSystemPrompt(),
		OutputSchema:  a.contract.OutputSchema(),
	}

	var spec *models.MusicSpecification
	err = core.RunStage(ctx, core.StageCall{
		Stage:      core.StageComposition,
		Provider:   a.provider,
		Request:    request,
		Prompt:     instruction,
		Timeout:    a.timeout,
		Metrics:    a.metrics,
		CloudWatch: a.cloudwatch,
	}, func(raw string) error {
		decoded, decodeErr := a.contract.DecodeSpecification(raw)
		if decodeErr != nil {
			return decodeErr
		}
		spec = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ COMPOSITION COMPLETE: tempo=%.0f, key=%q, notes=%d, instruments=%d",
		spec.Tempo(), spec.Key(), len(spec.Notes), len(spec.Instruments))
	return spec, nil
}
