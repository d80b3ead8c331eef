package coordination

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Conceptual-Machines/algorhythm-api/internal/agents/analysis"
	"github.com/Conceptual-Machines/algorhythm-api/internal/agents/composer"
	"github.com/Conceptual-Machines/algorhythm-api/internal/agents/core"
	"github.com/Conceptual-Machines/algorhythm-api/internal/agents/core/config"
	"github.com/Conceptual-Machines/algorhythm-api/internal/contract"
	"github.com/Conceptual-Machines/algorhythm-api/internal/llm/llmtest"
	"github.com/Conceptual-Machines/algorhythm-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sunsetURL      = "https://example.com/sunset.jpg"
	sunsetAnalysis = `{"dominantColors":["orange","purple"],"objects":["ocean","sun"],"mood":"serene"}`
	sunsetSpec     = `{
  "tempoChanges": [90],
  "keyChanges": ["D major"],
  "timeSignatureChanges": ["4/4"],
  "instruments": ["piano"],
  "notes": ["D4", "F#4", "A4", "D5"],
  "melodyDescription": "calm arpeggio",
  "chordProgression": ["D", "G", "A"]
}`
)

func newPipeline(t *testing.T, analysisProvider, compositionProvider *llmtest.StubProvider) *Orchestrator {
	t.Helper()
	cfg := &config.Config{
		AnalysisModel:    "gpt-5-mini",
		CompositionModel: "gpt-5-mini",
		StageTimeout:     time.Second,
	}
	analyzer, err := analysis.NewAgentWithProvider(cfg, analysisProvider)
	require.NoError(t, err)
	comp, err := composer.NewAgentWithProvider(cfg, compositionProvider)
	require.NoError(t, err)
	return NewOrchestratorWithAgents(analyzer, comp)
}

func TestRun_SunsetEndToEnd(t *testing.T) {
	analysisProvider := llmtest.Returning(sunsetAnalysis)
	compositionProvider := llmtest.Returning(sunsetSpec)
	o := newPipeline(t, analysisProvider, compositionProvider)

	result, err := o.Run(context.Background(), Request{PhotoURL: sunsetURL, Style: "ambient"})
	require.NoError(t, err)

	assert.Equal(t, "serene", result.Analysis.Mood)
	assert.Equal(t, 90.0, result.Specification.Tempo())
	assert.Equal(t, []string{"D4", "F#4", "A4", "D5"}, result.Specification.Notes)
	assert.NoError(t, contract.ValidateSpecification(result.Specification))

	assert.Equal(t, 1, analysisProvider.Calls())
	assert.Equal(t, 1, compositionProvider.Calls())

	// The composer sees exactly what analysis produced
	content := llmtest.Content(compositionProvider.LastRequest())
	assert.Contains(t, content, "Mood: serene")
	assert.Contains(t, content, "Dominant Colors: orange purple")
	assert.Contains(t, content, "Style: ambient")
}

func TestRun_InvalidURL(t *testing.T) {
	tests := []string{"", "not a url", "ftp://example.com/a.jpg", "/relative/path.jpg"}

	for _, photoURL := range tests {
		t.Run(photoURL, func(t *testing.T) {
			analysisProvider := llmtest.Returning(sunsetAnalysis)
			compositionProvider := llmtest.Returning(sunsetSpec)
			o := newPipeline(t, analysisProvider, compositionProvider)

			result, err := o.Run(context.Background(), Request{PhotoURL: photoURL})
			assert.Nil(t, result)

			var validationErr *core.ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, "photo_url", validationErr.Field)
			assert.Zero(t, analysisProvider.Calls())
			assert.Zero(t, compositionProvider.Calls())
		})
	}
}

func TestRun_AnalysisFailureSkipsComposer(t *testing.T) {
	compositionProvider := llmtest.Returning(sunsetSpec)
	o := newPipeline(t, llmtest.Returning(`{"objects":[],"mood":"calm"}`), compositionProvider)

	result, err := o.Run(context.Background(), Request{PhotoURL: sunsetURL})
	assert.Nil(t, result)
	assert.Equal(t, core.StageAnalysis, core.StageOf(err))
	assert.Zero(t, compositionProvider.Calls())
}

func TestRun_CompositionFailureKeepsAnalysis(t *testing.T) {
	providerErr := errors.New("model overloaded")
	o := newPipeline(t, llmtest.Returning(sunsetAnalysis), llmtest.Failing(providerErr))

	result, err := o.Run(context.Background(), Request{PhotoURL: sunsetURL})
	require.Error(t, err)
	assert.Equal(t, core.StageComposition, core.StageOf(err))
	assert.ErrorIs(t, err, providerErr)

	require.NotNil(t, result)
	assert.Equal(t, "serene", result.Analysis.Mood)
	assert.Nil(t, result.Specification)
}

func TestRun_CompositionViolation(t *testing.T) {
	bad := `{"tempoChanges":[0],"keyChanges":["C major"],"timeSignatureChanges":["4/4"],` +
		`"instruments":[],"notes":[],"melodyDescription":"x","chordProgression":[]}`
	o := newPipeline(t, llmtest.Returning(sunsetAnalysis), llmtest.Returning(bad))

	result, err := o.Run(context.Background(), Request{PhotoURL: sunsetURL})
	require.NotNil(t, result)
	assert.Nil(t, result.Specification)

	var violation *contract.ViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "tempoChanges[0]", violation.Field)
}

type countingAnalyzer struct {
	mu    sync.Mutex
	calls int
}

func (a *countingAnalyzer) Analyze(_ context.Context, photoURL string) (*models.ImageAnalysis, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	return &models.ImageAnalysis{DominantColors: []string{photoURL}, Objects: []string{}, Mood: "calm"}, nil
}

type echoComposer struct{}

func (echoComposer) Compose(_ context.Context, input composer.Input) (*models.MusicSpecification, error) {
	return &models.MusicSpecification{
		Tempos:            []float64{100},
		Keys:              []string{"C major"},
		TimeSignatures:    []string{"4/4"},
		Instruments:       []string{},
		Notes:             []string{"C4"},
		MelodyDescription: input.DominantColors[0],
	}, nil
}

func TestRun_ConcurrentRunsAreIndependent(t *testing.T) {
	analyzer := &countingAnalyzer{}
	o := NewOrchestratorWithAgents(analyzer, echoComposer{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			photoURL := "https://example.com/" + string(rune('a'+i)) + ".jpg"
			result, err := o.Run(context.Background(), Request{PhotoURL: photoURL})
			assert.NoError(t, err)
			assert.Equal(t, photoURL, result.Specification.MelodyDescription)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, analyzer.calls)
}

func TestRunStream_Events(t *testing.T) {
	o := newPipeline(t, llmtest.Returning(sunsetAnalysis), llmtest.Returning(sunsetSpec))

	var events []StreamEvent
	result, err := o.RunStream(context.Background(), Request{PhotoURL: sunsetURL}, func(event StreamEvent) error {
		events = append(events, event)
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, result.Specification)

	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{EventProgress, EventAnalysis, EventProgress, EventResult}, types)
	assert.Equal(t, result.Analysis, events[1].Data)
	assert.Equal(t, result, events[3].Data)
}

func TestRunStream_CompositionError(t *testing.T) {
	o := newPipeline(t, llmtest.Returning(sunsetAnalysis), llmtest.Failing(errors.New("boom")))

	var last StreamEvent
	_, err := o.RunStream(context.Background(), Request{PhotoURL: sunsetURL}, func(event StreamEvent) error {
		last = event
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, EventError, last.Type)
	assert.Equal(t, core.StageComposition, last.Stage)

	partial, ok := last.Data.(*Result)
	require.True(t, ok)
	assert.Equal(t, "serene", partial.Analysis.Mood)
}

func TestRunStream_CallbackErrorAborts(t *testing.T) {
	analysisProvider := llmtest.Returning(sunsetAnalysis)
	compositionProvider := llmtest.Returning(sunsetSpec)
	o := newPipeline(t, analysisProvider, compositionProvider)

	disconnected := errors.New("client gone")
	_, err := o.RunStream(context.Background(), Request{PhotoURL: sunsetURL}, func(event StreamEvent) error {
		if event.Type == EventAnalysis {
			return disconnected
		}
		return nil
	})
	assert.ErrorIs(t, err, disconnected)
	assert.Equal(t, 1, analysisProvider.Calls())
	assert.Zero(t, compositionProvider.Calls())
}
