package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

const (
	// Role constants
	userRole      = "user"
	developerRole = "developer"

	// Reasoning effort levels
	reasoningNone    = "none"
	reasoningMinimal = "minimal"
	reasoningMin     = "min"
	reasoningLow     = "low"
	reasoningMedium  = "medium"
	reasoningMed     = "med"
	reasoningHigh    = "high"

	// Provider name
	providerNameOpenAI = "openai"

	// Logging limits
	maxOutputTrunc = 200
)

// Only GPT-5 family models accept a reasoning parameter
var modelsWithReasoning = map[string]bool{
	"gpt-5":        true,
	"gpt-5-mini":   true,
	"gpt-5-nano":   true,
	"gpt-5.1":      true,
	"gpt-5.1-mini": true,
	"gpt-5.1-nano": true,
	"gpt-5.2":      true,
	"gpt-5.2-mini": true,
	"gpt-5.2-nano": true,
}

// OpenAIProvider implements the Provider interface using OpenAI's Responses API
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string, opts ...option.RequestOption) *OpenAIProvider {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := openai.NewClient(opts...)
	return &OpenAIProvider{
		client: &client,
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return providerNameOpenAI
}

// Generate implements generation using OpenAI's Responses API
func (p *OpenAIProvider) Generate(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error) {
	startTime := time.Now()
	log.Printf("🎵 OPENAI GENERATION REQUEST STARTED (Model: %s)", request.Model)

	transaction := sentry.StartTransaction(ctx, "openai.generate")
	defer transaction.Finish()

	transaction.SetTag("model", request.Model)
	transaction.SetTag("provider", providerNameOpenAI)

	params := p.buildRequestParams(request)

	span := transaction.StartChild("openai.api_call")
	apiStartTime := time.Now()
	resp, err := p.client.Responses.New(ctx, params)
	apiDuration := time.Since(apiStartTime)
	span.Finish()

	if err != nil {
		log.Printf("❌ OPENAI REQUEST FAILED after %v: %v", apiDuration, err)
		transaction.SetTag("success", "false")
		sentry.CaptureException(err)
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	log.Printf("⏱️  OPENAI API CALL COMPLETED in %v", apiDuration)

	result, err := p.processResponse(resp, request, startTime, transaction)
	if err != nil {
		transaction.SetTag("success", "false")
		return nil, err
	}
	transaction.SetTag("success", "true")
	return result, nil
}

// buildRequestParams converts GenerationRequest to OpenAI-specific ResponseNewParams
func (p *OpenAIProvider) buildRequestParams(request *GenerationRequest) responses.ResponseNewParams {
	inputItems := responses.ResponseInputParam{}

	for _, item := range request.InputArray {
		role, hasRole := item["role"].(string)
		content, hasContent := item["content"].(string)

		if !hasRole || !hasContent {
			log.Printf("⚠️  Skipping invalid input item (missing role or content): %v", item)
			continue
		}

		roleEnum := responses.EasyInputMessageRoleUser
		if role == developerRole {
			roleEnum = responses.EasyInputMessageRoleDeveloper
		}

		inputItems = append(inputItems,
			responses.ResponseInputItemParamOfMessage(content, roleEnum),
		)
	}

	params := responses.ResponseNewParams{
		Model: request.Model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: inputItems,
		},
		Instructions: openai.String(request.SystemPrompt),
	}

	if modelsWithReasoning[request.Model] {
		params.Reasoning = shared.ReasoningParam{
			Effort: reasoningEffort(request.ReasoningMode),
		}
	}

	if request.OutputSchema != nil {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigParamOfJSONSchema(
				request.OutputSchema.Name,
				request.OutputSchema.Schema,
			),
		}
		log.Printf("📋 JSON SCHEMA CONFIGURED: %s", request.OutputSchema.Name)
	}

	return params
}

func reasoningEffort(mode string) shared.ReasoningEffort {
	switch mode {
	case reasoningNone:
		return shared.ReasoningEffort("none")
	case reasoningMinimal, reasoningMin:
		return shared.ReasoningEffort("minimal")
	case reasoningLow:
		return responses.ReasoningEffortLow
	case reasoningMedium, reasoningMed:
		return responses.ReasoningEffortMedium
	case reasoningHigh:
		return responses.ReasoningEffortHigh
	default:
		return responses.ReasoningEffortLow
	}
}

func (p *OpenAIProvider) processResponse(
	resp *responses.Response,
	request *GenerationRequest,
	startTime time.Time,
	transaction *sentry.Span,
) (*GenerationResponse, error) {
	span := transaction.StartChild("process_response")
	defer span.Finish()

	textOutput := p.extractAndCleanTextOutput(resp)
	log.Printf("📥 OPENAI RESPONSE: output_length=%d, output_items=%d, tokens=%d",
		len(textOutput), len(resp.Output), resp.Usage.TotalTokens)

	if textOutput == "" {
		return nil, fmt.Errorf("openai response did not include any output text")
	}

	if request.OutputSchema != nil {
		transaction.SetTag("output_type", "json_schema")
	} else {
		transaction.SetTag("output_type", "plain_text")
	}

	p.logUsageStats(resp.Usage)
	log.Printf("✅ OPENAI GENERATION COMPLETED in %v", time.Since(startTime))

	return &GenerationResponse{
		RawOutput: textOutput,
		Usage:     resp.Usage,
	}, nil
}

// extractAndCleanTextOutput extracts and cleans text output from response
func (p *OpenAIProvider) extractAndCleanTextOutput(resp *responses.Response) string {
	return stripCodeFences(resp.OutputText())
}

// stripCodeFences removes markdown code fences some models wrap around JSON
func stripCodeFences(textOutput string) string {
	if textOutput == "" {
		return ""
	}

	cleaned := strings.TrimSpace(textOutput)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned != textOutput {
		log.Printf("🧹 Stripped markdown code blocks from output: %d -> %d chars", len(textOutput), len(cleaned))
	}

	return cleaned
}

// logUsageStats logs token usage statistics
func (p *OpenAIProvider) logUsageStats(usage responses.ResponseUsage) {
	log.Printf("📊 USAGE: input=%d, output=%d, reasoning=%d, total=%d",
		usage.InputTokens, usage.OutputTokens,
		usage.OutputTokensDetails.ReasoningTokens, usage.TotalTokens)
}

// truncate truncates a string to maxLen characters
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
