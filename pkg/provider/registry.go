package provider

import (
	"context"
	"fmt"
	"strings"
)

// Registry routes completion calls for catalog model IDs to the right
// client: a native SDK client when one is registered for the ID's provider
// segment, otherwise the multi-model gateway.
type Registry struct {
	native  map[string]Client
	gateway Client
}

// NewRegistry creates a registry. gateway may be nil when every provider
// of interest has a native client.
func NewRegistry(gateway Client) *Registry {
	return &Registry{
		native:  make(map[string]Client),
		gateway: gateway,
	}
}

// RegisterNative installs a native client for a provider segment, e.g.
// "openai" for "openai/gpt-4o-mini".
func (r *Registry) RegisterNative(providerName string, client Client) {
	r.native[providerName] = client
}

// Complete resolves the model ID to a client and sends the completion.
// Native clients receive the bare model name; the gateway receives the
// full catalog ID.
func (r *Registry) Complete(ctx context.Context, modelID string, prompt string) (string, error) {
	providerName, bare := splitModelID(modelID)
	if client, ok := r.native[providerName]; ok {
		return client.Complete(ctx, bare, prompt)
	}
	if r.gateway == nil {
		return "", fmt.Errorf("no client for model %s", modelID)
	}
	return r.gateway.Complete(ctx, modelID, prompt)
}

// Name returns the registry identifier.
func (r *Registry) Name() string {
	return "registry"
}

func splitModelID(id string) (providerName, bare string) {
	if idx := strings.IndexByte(id, '/'); idx > 0 {
		return id[:idx], id[idx+1:]
	}
	return "", id
}
