package provider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic is the native client for Claude models.
type Anthropic struct {
	client anthropic.Client
}

// NewAnthropic creates a native Anthropic client.
func NewAnthropic(apiKey string) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Anthropic{client: client}, nil
}

// Name returns the client identifier.
func (a *Anthropic) Name() string {
	return "anthropic"
}

// Complete sends a prompt to Claude and returns the response text.
func (a *Anthropic) Complete(ctx context.Context, model string, prompt string) (string, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	return content, nil
}
