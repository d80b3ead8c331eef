package prompt

import (
	"strings"

	"github.com/Conceptual-Machines/algorhythm-api/pkg/embedded"
)

type Loader struct{}

func NewPromptLoader() *Loader {
	return &Loader{}
}

// GetImageAnalysisSystemPrompt loads the system prompt for the analysis stage
func (l *Loader) GetImageAnalysisSystemPrompt() (string, error) {
	return strings.TrimSpace(string(embedded.ImageAnalysisSystemPromptTxt)), nil
}

// GetComposerSystemPrompt loads the system prompt for the composition stage
func (l *Loader) GetComposerSystemPrompt() (string, error) {
	return strings.TrimSpace(string(embedded.ComposerSystemPromptTxt)), nil
}

// GetImageAnalysisTemplate loads the analysis instruction template
func (l *Loader) GetImageAnalysisTemplate() (string, error) {
	return strings.TrimSpace(string(embedded.ImageAnalysisPromptTxt)), nil
}

// GetMusicSpecificationTemplate loads the composition instruction template for a variant
func (l *Loader) GetMusicSpecificationTemplate(variant string) (string, error) {
	if variant == "basic" {
		return strings.TrimSpace(string(embedded.MusicSpecificationBasicPromptTxt)), nil
	}
	return strings.TrimSpace(string(embedded.MusicSpecificationExtendedPromptTxt)), nil
}
