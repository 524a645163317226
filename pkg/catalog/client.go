package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Client fetches the live model catalog from an OpenRouter-compatible
// endpoint. The upstream reports per-token prices as decimal strings; the
// client normalizes them to USD per million tokens.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different catalog endpoint.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a catalog client. The API key may be empty; the model
// listing endpoint is public on most gateways.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type catalogResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		ContextLength int    `json:"context_length"`
		Pricing       struct {
			Prompt     string `json:"prompt"`
			Completion string `json:"completion"`
		} `json:"pricing"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// Fetch retrieves the live catalog and converts it into Model descriptors.
func (c *Client) Fetch(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed catalogResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse catalog response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("catalog error: %s (code %d)", parsed.Error.Message, parsed.Error.Code)
	}

	models := make([]Model, 0, len(parsed.Data))
	for _, raw := range parsed.Data {
		in := perMillion(raw.Pricing.Prompt)
		out := perMillion(raw.Pricing.Completion)
		models = append(models, Model{
			ID:            raw.ID,
			Name:          raw.Name,
			Provider:      ProviderOf(raw.ID),
			InputPerMTok:  in,
			OutputPerMTok: out,
			AvgPerMTok:    (in + out) / 2,
			Free:          isFree(raw.ID, in, out),
			ContextLength: raw.ContextLength,
		})
	}
	return models, nil
}

// perMillion converts an upstream per-token decimal string to USD per
// million tokens. Unparseable prices count as zero.
func perMillion(perToken string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(perToken), 64)
	if err != nil {
		return 0
	}
	return v * 1e6
}

func isFree(id string, in, out float64) bool {
	return strings.HasSuffix(id, ":free") || (in == 0 && out == 0)
}
