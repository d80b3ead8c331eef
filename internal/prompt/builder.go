package prompt

import (
	"fmt"
	"strings"
	"text/template"
)

// AnalysisInput fills the image analysis template
type AnalysisInput struct {
	PhotoURL string
}

// CompositionInput fills the music specification templates
type CompositionInput struct {
	Mood           string
	DominantColors []string
	Objects        []string
	Style          string
	Lighting       string
}

var templateFuncs = template.FuncMap{
	"join": func(items []string) string { return strings.Join(items, " ") },
}

// Builder renders the stage instructions from the embedded templates
type Builder struct {
	analysis       *template.Template
	composition    *template.Template
	variant        string
	analysisSys    string
	compositionSys string
}

// NewPromptBuilder parses the templates for the given music specification variant
func NewPromptBuilder(variant string) (*Builder, error) {
	loader := NewPromptLoader()

	analysisText, err := loader.GetImageAnalysisTemplate()
	if err != nil {
		return nil, err
	}
	analysis, err := template.New("image_analysis").Funcs(templateFuncs).Parse(analysisText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse image analysis template: %w", err)
	}

	compositionText, err := loader.GetMusicSpecificationTemplate(variant)
	if err != nil {
		return nil, err
	}
	composition, err := template.New("music_specification").Funcs(templateFuncs).Parse(compositionText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse music specification template: %w", err)
	}

	analysisSys, err := loader.GetImageAnalysisSystemPrompt()
	if err != nil {
		return nil, err
	}
	compositionSys, err := loader.GetComposerSystemPrompt()
	if err != nil {
		return nil, err
	}

	return &Builder{
		analysis:       analysis,
		composition:    composition,
		variant:        variant,
		analysisSys:    analysisSys,
		compositionSys: compositionSys,
	}, nil
}

// Variant returns the music specification variant the builder renders for
func (b *Builder) Variant() string {
	return b.variant
}

// AnalysisSystemPrompt returns the system prompt for the analysis stage
func (b *Builder) AnalysisSystemPrompt() string {
	return b.analysisSys
}

// CompositionSystemPrompt returns the system prompt for the composition stage
func (b *Builder) CompositionSystemPrompt() string {
	return b.compositionSys
}

// BuildAnalysisPrompt renders the analysis instruction for a photo URL
func (b *Builder) BuildAnalysisPrompt(input AnalysisInput) (string, error) {
	return render(b.analysis, input)
}

// BuildCompositionPrompt renders the composition instruction from an analysis
func (b *Builder) BuildCompositionPrompt(input CompositionInput) (string, error) {
	return render(b.composition, input)
}

func render(tmpl *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", tmpl.Name(), err)
	}
	return sb.String(), nil
}
