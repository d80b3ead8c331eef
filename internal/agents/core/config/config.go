package config

import (
	"time"

	appconfig "github.com/Conceptual-Machines/algorhythm-api/internal/config"
	"github.com/Conceptual-Machines/algorhythm-api/internal/llm"
)

const defaultStageTimeout = 60 * time.Second

// Config contains configuration for the pipeline agents
type Config struct {
	OpenAIAPIKey     string        // OpenAI API key for GPT models
	GeminiAPIKey     string        // Google Gemini API key
	Provider         string        // "openai", "gemini" or empty to infer from the model
	AnalysisModel    string        // model for the image analysis stage
	CompositionModel string        // model for the music specification stage
	ReasoningMode    string        // none, minimal, low, medium or high
	Variant          string        // music specification contract variant
	StageTimeout     time.Duration // upper bound on one stage model call
}

// FromAppConfig derives the agent configuration from the service configuration
func FromAppConfig(cfg *appconfig.Config) *Config {
	return &Config{
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		GeminiAPIKey:     cfg.GeminiAPIKey,
		Provider:         cfg.LLMProvider,
		AnalysisModel:    cfg.AnalysisModel,
		CompositionModel: cfg.CompositionModel,
		ReasoningMode:    cfg.ReasoningMode,
		Variant:          cfg.MusicSpecVariant,
		StageTimeout:     cfg.StageTimeout,
	}
}

// Timeout returns the stage timeout, falling back to the default
func (c *Config) Timeout() time.Duration {
	if c.StageTimeout <= 0 {
		return defaultStageTimeout
	}
	return c.StageTimeout
}

// MusicSpecVariant returns the configured variant, extended unless basic was asked for
func (c *Config) MusicSpecVariant() string {
	if c.Variant == llm.VariantBasic {
		return llm.VariantBasic
	}
	return llm.VariantExtended
}
