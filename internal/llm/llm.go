package llm

import (
	"context"
	"fmt"
	"strings"

	"gospeldiary/internal/config"
)

const (
	// DefaultModel is the default Gemini model for reflections.
	DefaultModel = "gemini-2.5-flash"
	// DefaultOpenAIModel is used when the OpenAI provider is selected without a model.
	DefaultOpenAIModel = "gpt-4o-mini"
)

// FinishReason is the provider-neutral reason a generation stopped.
type FinishReason string

const (
	FinishStop    FinishReason = "stop"    // Natural end of output
	FinishLength  FinishReason = "length"  // Output token budget exhausted
	FinishBlocked FinishReason = "blocked" // Safety or policy filter
	FinishOther   FinishReason = "other"
)

// Request is a single text generation call.
type Request struct {
	Prompt          string
	Model           string // Optional, defaults to the backend's model
	MaxOutputTokens int
	Temperature     float64
}

// Response is the outcome of a generation call that reached the provider.
type Response struct {
	Text         string
	FinishReason FinishReason
	Model        string
	PromptTokens int
	OutputTokens int
}

// Backend generates text from a prompt. Implementations must not retry on
// their own; callers own the retry policy.
type Backend interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Name() string
}

// NewBackend creates the backend selected by cfg.Provider.
func NewBackend(ctx context.Context, cfg config.AI) (Backend, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini":
		return NewGeminiBackend(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.BaseURL)
	case "openai":
		return NewOpenAIBackend(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}
