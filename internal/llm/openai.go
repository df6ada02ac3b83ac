package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIBackend calls an OpenAI-compatible chat completions endpoint.
type OpenAIBackend struct {
	modelName string
	client    openai.Client
}

// NewOpenAIBackend creates an OpenAI backend. The SDK's own retries are
// disabled.
func NewOpenAIBackend(apiKey, modelName, baseURL string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required. Set OPENAI_API_KEY environment variable")
	}
	if modelName == "" {
		modelName = DefaultOpenAIModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIBackend{
		modelName: modelName,
		client:    openai.NewClient(opts...),
	}, nil
}

// Name returns the provider name.
func (o *OpenAIBackend) Name() string { return "openai" }

// Generate performs one chat completion.
func (o *OpenAIBackend) Generate(ctx context.Context, req Request) (Response, error) {
	if req.Prompt == "" {
		return Response{}, fmt.Errorf("prompt cannot be empty")
	}

	modelName := o.modelName
	if req.Model != "" {
		modelName = req.Model
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(modelName),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(req.Prompt)},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxOutputTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create chat completion: %w", err)
	}

	out := Response{
		Model:        modelName,
		PromptTokens: int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}
	if len(resp.Choices) == 0 {
		out.FinishReason = FinishOther
		return out, nil
	}

	choice := resp.Choices[0]
	out.Text = strings.TrimSpace(choice.Message.Content)
	out.FinishReason = openAIFinishReason(choice.FinishReason)
	return out, nil
}

func openAIFinishReason(reason string) FinishReason {
	switch reason {
	case "stop":
		return FinishStop
	case "length":
		return FinishLength
	case "content_filter":
		return FinishBlocked
	default:
		return FinishOther
	}
}
