package llm

import (
	"context"
)

// Provider defines the interface for LLM providers
// All providers MUST support structured output (JSON Schema) for reliable response parsing
type Provider interface {
	// Generate runs one model call with structured output
	// The provider MUST enforce the OutputSchema to ensure JSON responses
	Generate(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error)

	// Name returns the provider name (e.g., "openai", "gemini")
	Name() string
}

// GenerationRequest contains all parameters needed for generation
type GenerationRequest struct {
	Model         string
	InputArray    []map[string]any
	ReasoningMode string
	SystemPrompt  string
	// Structured output schema - REQUIRED for reliable JSON parsing
	OutputSchema *OutputSchema
}

// OutputSchema defines the expected JSON output structure
type OutputSchema struct {
	Name        string
	Description string
	Schema      map[string]any // JSON Schema object
}

// GenerationResponse contains the result from the LLM
type GenerationResponse struct {
	RawOutput string `json:"-"` // Raw JSON text output, validated by the caller
	Usage     any    `json:"usage"`
}

// UserMessage builds a single user input item
func UserMessage(content string) map[string]any {
	return map[string]any{
		"role":    userRole,
		"content": content,
	}
}
