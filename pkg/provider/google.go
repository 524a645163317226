package provider

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Google is the native client for Gemini models.
type Google struct {
	client *genai.Client
}

// NewGoogle creates a native Google Gemini client.
func NewGoogle(apiKey string) (*Google, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}
	return &Google{client: client}, nil
}

// Name returns the client identifier.
func (g *Google) Name() string {
	return "google"
}

// Complete sends a prompt to Gemini and returns the response text.
func (g *Google) Complete(ctx context.Context, model string, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("google API error: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("google returned no candidates")
	}

	var content string
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				content += part.Text
			}
		}
	}
	return content, nil
}
