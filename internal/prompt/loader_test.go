package prompt

import (
	"strings"
	"testing"
)

func TestNewPromptLoader(t *testing.T) {
	loader := NewPromptLoader()
	if loader == nil {
		t.Fatal("NewPromptLoader() returned nil")
	}
}

func TestGetImageAnalysisSystemPrompt(t *testing.T) {
	loader := NewPromptLoader()
	content, err := loader.GetImageAnalysisSystemPrompt()
	if err != nil {
		t.Fatalf("GetImageAnalysisSystemPrompt() returned error: %v", err)
	}

	if !strings.Contains(content, "computer vision") {
		t.Error("GetImageAnalysisSystemPrompt() does not contain expected content")
	}

	if strings.HasPrefix(content, "\n") || strings.HasSuffix(content, "\n") {
		t.Error("GetImageAnalysisSystemPrompt() was not trimmed")
	}
}

func TestGetComposerSystemPrompt(t *testing.T) {
	loader := NewPromptLoader()
	content, err := loader.GetComposerSystemPrompt()
	if err != nil {
		t.Fatalf("GetComposerSystemPrompt() returned error: %v", err)
	}

	for _, expected := range []string{"composer", "scientific pitch notation", "at least one note"} {
		if !strings.Contains(content, expected) {
			t.Errorf("GetComposerSystemPrompt() missing %q", expected)
		}
	}
}

func TestGetMusicSpecificationTemplate(t *testing.T) {
	loader := NewPromptLoader()

	basic, err := loader.GetMusicSpecificationTemplate("basic")
	if err != nil {
		t.Fatalf("GetMusicSpecificationTemplate(basic) returned error: %v", err)
	}
	if !strings.Contains(basic, "a single tempo") {
		t.Error("basic template should ask for a single tempo")
	}

	extended, err := loader.GetMusicSpecificationTemplate("extended")
	if err != nil {
		t.Fatalf("GetMusicSpecificationTemplate(extended) returned error: %v", err)
	}
	if !strings.Contains(extended, "chord progressions") {
		t.Error("extended template should ask for chord progressions")
	}
}
