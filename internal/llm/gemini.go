package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiBackend calls the Gemini API through the genai SDK.
type GeminiBackend struct {
	modelName string
	gClient   *genai.Client
}

// NewGeminiBackend creates a Gemini backend. baseURL is only set in tests
// and for proxies.
func NewGeminiBackend(ctx context.Context, apiKey, modelName, baseURL string) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or ai.gemini.api_key in config file")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	gClient, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiBackend{modelName: modelName, gClient: gClient}, nil
}

// Name returns the provider name.
func (g *GeminiBackend) Name() string { return "gemini" }

// Generate performs one GenerateContent call.
func (g *GeminiBackend) Generate(ctx context.Context, req Request) (Response, error) {
	if req.Prompt == "" {
		return Response{}, fmt.Errorf("prompt cannot be empty")
	}

	modelName := g.modelName
	if req.Model != "" {
		modelName = req.Model
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxOutputTokens)
	}

	resp, err := g.gClient.Models.GenerateContent(ctx, modelName, genai.Text(req.Prompt), config)
	if err != nil {
		return Response{}, fmt.Errorf("failed to generate content: %w", err)
	}

	out := Response{
		Text:  strings.TrimSpace(resp.Text()),
		Model: modelName,
	}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			out.FinishReason = FinishBlocked
			return out, nil
		}
		out.FinishReason = FinishOther
		return out, nil
	}
	out.FinishReason = geminiFinishReason(resp.Candidates[0].FinishReason)

	return out, nil
}

func geminiFinishReason(reason genai.FinishReason) FinishReason {
	switch reason {
	case genai.FinishReasonStop:
		return FinishStop
	case genai.FinishReasonMaxTokens:
		return FinishLength
	case genai.FinishReasonSafety, genai.FinishReasonRecitation, genai.FinishReasonBlocklist,
		genai.FinishReasonProhibitedContent, genai.FinishReasonSPII:
		return FinishBlocked
	default:
		return FinishOther
	}
}

// ModelInfo describes a model available to the configured key.
type ModelInfo struct {
	Name             string
	DisplayName      string
	InputTokenLimit  int
	OutputTokenLimit int
	Actions          []string
}

// ListModels returns every model visible to the API key with its token limits.
func (g *GeminiBackend) ListModels(ctx context.Context) ([]ModelInfo, error) {
	page, err := g.gClient.Models.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	var models []ModelInfo
	for {
		for _, m := range page.Items {
			models = append(models, ModelInfo{
				Name:             strings.TrimPrefix(m.Name, "models/"),
				DisplayName:      m.DisplayName,
				InputTokenLimit:  int(m.InputTokenLimit),
				OutputTokenLimit: int(m.OutputTokenLimit),
				Actions:          m.SupportedActions,
			})
		}

		page, err = page.Next(ctx)
		if errors.Is(err, genai.ErrPageDone) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list models: %w", err)
		}
	}

	return models, nil
}
