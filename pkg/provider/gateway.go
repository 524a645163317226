package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const gatewayBaseURL = "https://openrouter.ai/api/v1"

// Gateway talks to an OpenAI-compatible multi-model gateway. It accepts
// any catalog model ID, which makes it the default path for council
// members without a native SDK client, and it serves embedding requests
// for semantic clustering.
type Gateway struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithGatewayBaseURL points the gateway at a different endpoint.
func WithGatewayBaseURL(url string) GatewayOption {
	return func(g *Gateway) {
		g.baseURL = strings.TrimRight(url, "/")
	}
}

// WithGatewayHTTPClient replaces the underlying HTTP client.
func WithGatewayHTTPClient(hc *http.Client) GatewayOption {
	return func(g *Gateway) {
		g.httpClient = hc
	}
}

// NewGateway creates a gateway client.
func NewGateway(apiKey string, opts ...GatewayOption) (*Gateway, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gateway API key is required")
	}
	g := &Gateway{
		apiKey:  apiKey,
		baseURL: gatewayBaseURL,
		// The race engine enforces its own deadline; this is a backstop.
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Name returns the client identifier.
func (g *Gateway) Name() string {
	return "gateway"
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Complete sends a chat completion request for the given model ID.
func (g *Gateway) Complete(ctx context.Context, model string, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:     model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: 4096,
	}

	var parsed chatResponse
	if err := g.post(ctx, "/chat/completions", reqBody, &parsed); err != nil {
		return "", err
	}
	if parsed.Error != nil {
		return "", &Error{Status: parsed.Error.Code, Err: fmt.Errorf("gateway error: %s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("gateway returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

// Embed returns one vector per input, in input order.
func (g *Gateway) Embed(ctx context.Context, model string, inputs []string) ([][]float64, error) {
	var parsed embeddingResponse
	if err := g.post(ctx, "/embeddings", embeddingRequest{Model: model, Input: inputs}, &parsed); err != nil {
		return nil, err
	}
	if parsed.Error != nil {
		return nil, &Error{Status: parsed.Error.Code, Err: fmt.Errorf("embedding error: %s", parsed.Error.Message)}
	}
	if len(parsed.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(parsed.Data), len(inputs))
	}

	vectors := make([][]float64, len(inputs))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

func (g *Gateway) post(ctx context.Context, path string, payload any, out any) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &Error{
			Status:    resp.StatusCode,
			Temporary: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			Err:       fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
