package llm

import (
	"testing"

	"github.com/openai/openai-go/responses"
	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestExtractTokenUsage(t *testing.T) {
	openaiUsage := responses.ResponseUsage{
		InputTokens:  120,
		OutputTokens: 80,
		TotalTokens:  200,
	}
	openaiUsage.OutputTokensDetails.ReasoningTokens = 30

	tests := []struct {
		name     string
		usage    any
		expected TokenUsage
	}{
		{"openai value", openaiUsage, TokenUsage{Input: 120, Output: 80, Reasoning: 30, Total: 200}},
		{"openai pointer", &openaiUsage, TokenUsage{Input: 120, Output: 80, Reasoning: 30, Total: 200}},
		{
			"gemini",
			&genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 5, TotalTokenCount: 15},
			TokenUsage{Input: 10, Output: 5, Total: 15},
		},
		{"nil gemini", (*genai.GenerateContentResponseUsageMetadata)(nil), TokenUsage{}},
		{"unknown", "nope", TokenUsage{}},
		{"nil", nil, TokenUsage{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractTokenUsage(tt.usage))
		})
	}
}

func TestTokenUsageFields(t *testing.T) {
	fields := TokenUsage{Input: 1, Output: 2, Reasoning: 3, Total: 6}.Fields()
	assert.Equal(t, int64(6), fields["total_tokens"])
	assert.Equal(t, int64(3), fields["reasoning_tokens"])
}
