package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"google.golang.org/genai"
)

const (
	providerNameGemini = "gemini"
	mimeTypeJSON       = "application/json"
	geminiUserRole     = "user"
)

// GeminiProvider implements the Provider interface using Google's Gemini API
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
	}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return providerNameGemini
}

// Generate implements generation using Gemini's API
func (p *GeminiProvider) Generate(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error) {
	startTime := time.Now()
	log.Printf("🎵 GEMINI GENERATION REQUEST STARTED (Model: %s)", request.Model)

	transaction := sentry.StartTransaction(ctx, "gemini.generate")
	defer transaction.Finish()

	transaction.SetTag("model", request.Model)
	transaction.SetTag("provider", providerNameGemini)

	contents, err := p.buildGeminiContents(request.InputArray)
	if err != nil {
		transaction.SetTag("success", "false")
		sentry.CaptureException(err)
		return nil, fmt.Errorf("failed to build Gemini contents: %w", err)
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: request.SystemPrompt}},
		},
	}

	if request.OutputSchema != nil {
		config.ResponseMIMEType = mimeTypeJSON
		config.ResponseSchema = convertSchemaToGemini(request.OutputSchema.Schema)
	}

	span := transaction.StartChild("gemini.api_call")
	apiStartTime := time.Now()
	result, err := p.client.Models.GenerateContent(ctx, request.Model, contents, config)
	apiDuration := time.Since(apiStartTime)
	span.Finish()

	if err != nil {
		log.Printf("❌ GEMINI REQUEST FAILED after %v: %v", apiDuration, err)
		transaction.SetTag("success", "false")
		sentry.CaptureException(err)
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	log.Printf("⏱️  GEMINI API CALL COMPLETED in %v", apiDuration)

	response, err := p.processGeminiResponse(result, startTime, transaction)
	if err != nil {
		transaction.SetTag("success", "false")
		return nil, err
	}

	transaction.SetTag("success", "true")
	return response, nil
}

// buildGeminiContents converts our input array to Gemini Content format
func (p *GeminiProvider) buildGeminiContents(inputArray []map[string]any) ([]*genai.Content, error) {
	var contents []*genai.Content

	for _, item := range inputArray {
		_, hasRole := item["role"].(string)
		content, hasContent := item["content"].(string)

		if !hasRole || !hasContent {
			log.Printf("⚠️  Skipping invalid input item (missing role or content): %v", item)
			continue
		}

		// Gemini only knows "user" and "model"; developer messages go as user
		contents = append(contents, &genai.Content{
			Role:  geminiUserRole,
			Parts: []*genai.Part{{Text: content}},
		})
	}

	if len(contents) == 0 {
		return nil, fmt.Errorf("no valid input items")
	}

	return contents, nil
}

// convertSchemaToGemini converts a JSON schema map to Gemini's schema type.
// Only the subset used by our output schemas is mapped: type, description,
// properties, items, required and enum.
func convertSchemaToGemini(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	out := &genai.Schema{}

	switch schema["type"] {
	case "object":
		out.Type = genai.TypeObject
	case "array":
		out.Type = genai.TypeArray
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	}

	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}

	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if prop, ok := raw.(map[string]any); ok {
				out.Properties[name] = convertSchemaToGemini(prop)
			}
		}
	}

	if items, ok := schema["items"].(map[string]any); ok {
		out.Items = convertSchemaToGemini(items)
	}

	if required, ok := schema["required"].([]string); ok {
		out.Required = append([]string(nil), required...)
		// Gemini emits properties in this order, keep it stable
		out.PropertyOrdering = append([]string(nil), required...)
	}

	if enum, ok := schema["enum"].([]string); ok {
		out.Enum = append([]string(nil), enum...)
	}

	return out
}

// candidateText joins the answer parts of a candidate, skipping thought summaries
func candidateText(candidate *genai.Candidate) string {
	if candidate == nil || candidate.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// processGeminiResponse converts Gemini response to our GenerationResponse
func (p *GeminiProvider) processGeminiResponse(
	result *genai.GenerateContentResponse,
	startTime time.Time,
	transaction *sentry.Span,
) (*GenerationResponse, error) {
	span := transaction.StartChild("process_response")
	defer span.Finish()

	if result == nil || len(result.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in Gemini response")
	}

	candidate := result.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("no parts in Gemini response")
	}

	textOutput := stripCodeFences(candidateText(candidate))
	log.Printf("📥 GEMINI RESPONSE: output_length=%d", len(textOutput))

	if textOutput == "" {
		return nil, fmt.Errorf("gemini response did not include any output text")
	}
	log.Printf("Raw output (first %d chars): %s", maxOutputTrunc, truncate(textOutput, maxOutputTrunc))

	if result.UsageMetadata != nil {
		log.Printf("📊 GEMINI USAGE: input=%d, output=%d, total=%d",
			result.UsageMetadata.PromptTokenCount,
			result.UsageMetadata.CandidatesTokenCount,
			result.UsageMetadata.TotalTokenCount)
	}

	log.Printf("✅ GEMINI GENERATION COMPLETED in %v", time.Since(startTime))

	return &GenerationResponse{
		RawOutput: textOutput,
		Usage:     result.UsageMetadata,
	}, nil
}
