package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/duckgeunpark/IWT/internal/ai"
	"github.com/duckgeunpark/IWT/internal/config"
)

// Model names per provider, used for pricing lookups.
const (
	openAIModelName = "gpt-4.1-mini"
	geminiModelName = "gemini-2.5-flash"
	groqModelName   = "llama3-8b-8192"
)

// newAIProvider builds the provider selected by name, falling back to the
// configured default and finally to groq. The matching API key must be set.
func newAIProvider(ctx context.Context, cfg *config.Config, name string) (ai.Provider, error) {
	if name == "" {
		name = cfg.AI.Provider
	}
	if name == "" {
		name = "groq"
	}

	var apiKey, modelName string
	switch name {
	case "groq":
		apiKey, modelName = cfg.Groq.APIKey, groqModelName
		if apiKey == "" {
			return nil, errors.New("GROQ_API_KEY environment variable is required for the groq provider")
		}
	case "openai":
		apiKey, modelName = cfg.OpenAI.Token, openAIModelName
		if apiKey == "" {
			return nil, errors.New("OPENAI_TOKEN environment variable is required for the openai provider")
		}
	case "gemini":
		apiKey, modelName = cfg.Gemini.APIKey, geminiModelName
		if apiKey == "" {
			return nil, errors.New("GEMINI_API_KEY environment variable is required for the gemini provider")
		}
	default:
		return nil, fmt.Errorf("unsupported AI provider: %q (use groq, openai or gemini)", name)
	}

	pricing := cfg.GetModelPricing(modelName)
	return ai.NewProvider(ctx, name, apiKey, ai.RequestPricing{
		Input:  pricing.Input,
		Output: pricing.Output,
	})
}
