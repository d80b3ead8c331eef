package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Conceptual-Machines/algorhythm-api/internal/agents/core"
	"github.com/Conceptual-Machines/algorhythm-api/internal/agents/core/config"
	"github.com/Conceptual-Machines/algorhythm-api/internal/contract"
	"github.com/Conceptual-Machines/algorhythm-api/internal/llm/llmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const photoURL = "https://example.com/sunset.jpg"

func testConfig() *config.Config {
	return &config.Config{
		AnalysisModel: "gpt-5-mini",
		ReasoningMode: "low",
		StageTimeout:  time.Second,
	}
}

func newAgent(t *testing.T, provider *llmtest.StubProvider) *Agent {
	t.Helper()
	agent, err := NewAgentWithProvider(testConfig(), provider)
	require.NoError(t, err)
	return agent
}

func requireStageError(t *testing.T, err error) *core.GenerationError {
	t.Helper()
	require.Error(t, err)
	var genErr *core.GenerationError
	require.True(t, errors.As(err, &genErr), "expected GenerationError, got %T", err)
	assert.Equal(t, core.StageAnalysis, genErr.Stage)
	return genErr
}

func TestAnalyze_Success(t *testing.T) {
	provider := llmtest.Returning(`{"dominantColors":["orange","purple"],"objects":["ocean","sun"],"mood":"serene"}`)
	agent := newAgent(t, provider)

	analysis, err := agent.Analyze(context.Background(), photoURL)
	require.NoError(t, err)
	assert.Equal(t, "serene", analysis.Mood)
	assert.Equal(t, []string{"orange", "purple"}, analysis.DominantColors)
	assert.Equal(t, []string{"ocean", "sun"}, analysis.Objects)

	require.Equal(t, 1, provider.Calls())
	request := provider.LastRequest()
	assert.Equal(t, "gpt-5-mini", request.Model)
	assert.Equal(t, "low", request.ReasoningMode)
	assert.Contains(t, request.SystemPrompt, "computer vision")
	assert.Contains(t, llmtest.Content(request), "Photo URL: "+photoURL)
	require.NotNil(t, request.OutputSchema)
	assert.Equal(t, "ImageAnalysis", request.OutputSchema.Name)
}

func TestAnalyze_ContractViolation(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"missing mood", `{"dominantColors":["grey"],"objects":[]}`, "mood"},
		{"unknown field", `{"dominantColors":["grey"],"objects":[],"mood":"calm","weather":"rain"}`, "weather"},
		{"not json", `the photo looks calm`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := newAgent(t, llmtest.Returning(tt.raw))

			analysis, err := agent.Analyze(context.Background(), photoURL)
			assert.Nil(t, analysis)
			genErr := requireStageError(t, err)

			var violation *contract.ViolationError
			require.True(t, errors.As(genErr, &violation))
			if tt.field != "" {
				assert.Equal(t, tt.field, violation.Field)
			}
		})
	}
}

func TestAnalyze_ProviderError(t *testing.T) {
	providerErr := errors.New("upstream unavailable")
	agent := newAgent(t, llmtest.Failing(providerErr))

	_, err := agent.Analyze(context.Background(), photoURL)
	requireStageError(t, err)
	assert.ErrorIs(t, err, providerErr)
}

func TestAnalyze_Timeout(t *testing.T) {
	cfg := testConfig()
	cfg.StageTimeout = 20 * time.Millisecond
	provider := llmtest.Blocking()
	agent, err := NewAgentWithProvider(cfg, provider)
	require.NoError(t, err)

	_, err = agent.Analyze(context.Background(), photoURL)
	requireStageError(t, err)
	assert.ErrorIs(t, err, core.ErrStageTimeout)
	assert.Equal(t, 1, provider.Calls())
}

func TestNewAgent_MissingKey(t *testing.T) {
	_, err := NewAgent(context.Background(), testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai API key not configured")
}
