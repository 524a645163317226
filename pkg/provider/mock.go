package provider

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Mock returns scripted responses for local runs and tests. Responses are
// keyed by model ID; unknown models get the default response. Optional
// per-model delays and errors exercise the race engine's timing paths.
type Mock struct {
	mu              sync.Mutex
	responses       map[string]string
	errors          map[string]error
	delays          map[string]time.Duration
	defaultResponse string
	calls           []string
}

// NewMock creates a mock client with a default response.
func NewMock() *Mock {
	return &Mock{
		responses:       make(map[string]string),
		errors:          make(map[string]error),
		delays:          make(map[string]time.Duration),
		defaultResponse: "mock response",
	}
}

// Respond scripts a response for a model.
func (m *Mock) Respond(model, answer string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[model] = answer
	return m
}

// Fail scripts an error for a model.
func (m *Mock) Fail(model string, err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[model] = err
	return m
}

// Delay makes a model's response wait before returning.
func (m *Mock) Delay(model string, d time.Duration) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[model] = d
	return m
}

// Name returns the client identifier.
func (m *Mock) Name() string {
	return "mock"
}

// Calls returns the model IDs called so far, in call order.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// Complete returns the scripted answer, honoring delays and cancellation.
func (m *Mock) Complete(ctx context.Context, model string, _ string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, model)
	delay := m.delays[model]
	scriptedErr := m.errors[model]
	answer, ok := m.responses[model]
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	if scriptedErr != nil {
		return "", scriptedErr
	}
	if !ok {
		return fmt.Sprintf("%s for %s", m.defaultResponse, model), nil
	}
	return answer, nil
}

// MockEmbedder returns deterministic vectors for tests; identical inputs
// get identical vectors.
type MockEmbedder struct {
	Vectors map[string][]float64
	Err     error
}

// Embed returns scripted vectors, one per input.
func (m *MockEmbedder) Embed(_ context.Context, _ string, inputs []string) ([][]float64, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([][]float64, len(inputs))
	for i, input := range inputs {
		vec, ok := m.Vectors[input]
		if !ok {
			return nil, fmt.Errorf("no scripted vector for %q", input)
		}
		out[i] = vec
	}
	return out, nil
}
