// Package generation provides the text-generation capability used by the
// generative writer. The call is a single non-streaming request at zero
// sampling temperature; the output is treated as untrusted and is checked by
// the verifier, never by this package.
package generation

import (
	"context"
	"fmt"

	"briefsmith/internal/logging"
)

// Client defines the interface for text-generation providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config holds generation client configuration.
type Config struct {
	// Provider: "openai" or "genai"
	Provider string `json:"provider"`

	OpenAIAPIKey string `json:"openai_api_key"`
	OpenAIModel  string `json:"openai_model"` // Default: "gpt-4o-mini"

	GenAIAPIKey string `json:"genai_api_key"`
	GenAIModel  string `json:"genai_model"` // Default: "gemini-2.0-flash"
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:    "openai",
		OpenAIModel: "gpt-4o-mini",
		GenAIModel:  "gemini-2.0-flash",
	}
}

// NewClient creates a generation client based on configuration.
func NewClient(cfg Config) (Client, error) {
	logging.Get(logging.CategoryGeneration).Info("Creating generation client with provider=%s", cfg.Provider)

	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	case "genai":
		return NewGenAIClient(cfg.GenAIAPIKey, cfg.GenAIModel)
	default:
		return nil, fmt.Errorf("unsupported generation provider: %s (use 'openai' or 'genai')", cfg.Provider)
	}
}
