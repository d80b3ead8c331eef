package llm

import (
	"github.com/openai/openai-go/responses"
	"google.golang.org/genai"
)

// TokenUsage is the provider-neutral token count of one generation
type TokenUsage struct {
	Input     int64
	Output    int64
	Reasoning int64
	Total     int64
}

// ExtractTokenUsage reads token counts from a provider's raw usage value
func ExtractTokenUsage(usage any) TokenUsage {
	switch u := usage.(type) {
	case responses.ResponseUsage:
		return TokenUsage{
			Input:     u.InputTokens,
			Output:    u.OutputTokens,
			Reasoning: u.OutputTokensDetails.ReasoningTokens,
			Total:     u.TotalTokens,
		}
	case *responses.ResponseUsage:
		if u == nil {
			return TokenUsage{}
		}
		return ExtractTokenUsage(*u)
	case *genai.GenerateContentResponseUsageMetadata:
		if u == nil {
			return TokenUsage{}
		}
		return TokenUsage{
			Input:     int64(u.PromptTokenCount),
			Output:    int64(u.CandidatesTokenCount),
			Reasoning: int64(u.ThoughtsTokenCount),
			Total:     int64(u.TotalTokenCount),
		}
	default:
		return TokenUsage{}
	}
}

// Fields returns the counts keyed the way logs and traces report them
func (u TokenUsage) Fields() map[string]int64 {
	return map[string]int64{
		"input_tokens":     u.Input,
		"output_tokens":    u.Output,
		"reasoning_tokens": u.Reasoning,
		"total_tokens":     u.Total,
	}
}
