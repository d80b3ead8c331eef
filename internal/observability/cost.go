package observability

import (
	"strconv"
	"strings"

	"github.com/Conceptual-Machines/algorhythm-api/internal/llm"
)

const (
	tokensPerKilo       = 1000.0
	costFormatPrecision = 6
	defaultPricingModel = "gpt-5-mini"
)

// ModelPricing contains pricing information per 1K tokens
type ModelPricing struct {
	InputPricePer1K  float64 // USD per 1K input tokens
	OutputPricePer1K float64 // USD per 1K output tokens
}

// PricingTable contains pricing for the models the pipeline can be configured with
var PricingTable = map[string]ModelPricing{
	"gpt-5":            {InputPricePer1K: 0.00125, OutputPricePer1K: 0.01},
	"gpt-5-mini":       {InputPricePer1K: 0.00025, OutputPricePer1K: 0.002},
	"gpt-5-nano":       {InputPricePer1K: 0.00005, OutputPricePer1K: 0.0004},
	"gpt-4o":           {InputPricePer1K: 0.0025, OutputPricePer1K: 0.01},
	"gpt-4o-mini":      {InputPricePer1K: 0.00015, OutputPricePer1K: 0.0006},
	"gemini-2.5-pro":   {InputPricePer1K: 0.00125, OutputPricePer1K: 0.01},
	"gemini-2.5-flash": {InputPricePer1K: 0.0003, OutputPricePer1K: 0.0025},
}

// LookupPricing finds pricing for a model, matching dated variants by prefix
func LookupPricing(model string) (ModelPricing, bool) {
	if pricing, ok := PricingTable[model]; ok {
		return pricing, true
	}

	best := ""
	for name := range PricingTable {
		if strings.HasPrefix(model, name+"-") && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return PricingTable[defaultPricingModel], false
	}
	return PricingTable[best], true
}

// CalculateCost calculates the cost in USD of one model call.
// Reasoning tokens are billed at the input rate.
func CalculateCost(model string, usage llm.TokenUsage) float64 {
	pricing, _ := LookupPricing(model)

	inputCost := (float64(usage.Input) / tokensPerKilo) * pricing.InputPricePer1K
	outputCost := (float64(usage.Output) / tokensPerKilo) * pricing.OutputPricePer1K
	reasoningCost := 0.0
	if usage.Reasoning > 0 {
		reasoningCost = (float64(usage.Reasoning) / tokensPerKilo) * pricing.InputPricePer1K
	}

	return inputCost + outputCost + reasoningCost
}

// FormatCost formats a cost value as a USD string
func FormatCost(cost float64) string {
	return "$" + strconv.FormatFloat(cost, 'f', costFormatPrecision, 64)
}
