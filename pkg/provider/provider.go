// Package provider holds the clients for upstream inference and embedding
// services. The engine treats them as black-box RPCs that may error, time
// out, or return empty text.
package provider

import "context"

// Client sends chat-style completion requests to one provider.
type Client interface {
	// Complete sends a prompt to the model and returns the response text.
	Complete(ctx context.Context, model string, prompt string) (string, error)

	// Name returns the client's identifier.
	Name() string
}

// Embedder turns texts into dense vectors for semantic clustering.
type Embedder interface {
	// Embed returns one vector per input, in input order.
	Embed(ctx context.Context, model string, inputs []string) ([][]float64, error)
}
