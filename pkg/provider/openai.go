package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI is the native client for OpenAI models. It also serves embedding
// requests when configured as the engine's embedder.
type OpenAI struct {
	client openai.Client
}

// NewOpenAI creates a native OpenAI client.
func NewOpenAI(apiKey string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{client: client}, nil
}

// Name returns the client identifier.
func (o *OpenAI) Name() string {
	return "openai"
}

// Complete sends a prompt to OpenAI and returns the response text.
func (o *OpenAI) Complete(ctx context.Context, model string, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(4096),
	})
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns one vector per input, in input order.
func (o *OpenAI) Embed(ctx context.Context, model string, inputs []string) ([][]float64, error) {
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: inputs,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding error: %w", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(inputs))
	}

	vectors := make([][]float64, len(inputs))
	for _, item := range resp.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", idx)
		}
		vectors[idx] = item.Embedding
	}
	return vectors, nil
}
