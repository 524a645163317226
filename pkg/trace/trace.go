// Package trace captures the per-request execution record: which models
// raced, in which waves, how the race resolved, and what it cost.
package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/zen-systems/quorum/pkg/race"
)

// Record is one request's full trace.
type Record struct {
	RequestID  string         `json:"request_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Tier       string         `json:"tier"`
	BudgetTier string         `json:"budget_tier"`
	Similarity string         `json:"similarity"`
	Council    []string       `json:"council"`
	Backups    []string       `json:"backups,omitempty"`
	Outcomes   []race.Outcome `json:"outcomes,omitempty"`
	Resolution string         `json:"resolution"`
	Wave2Fired bool           `json:"wave2_fired"`
	Elapsed    int64          `json:"elapsed_ms"`
	Confidence float64        `json:"confidence"`
	Escalated  bool           `json:"escalated"`
	Cached     bool           `json:"cached"`
	Cost       Cost           `json:"cost"`
}

// Cost is the per-request spend breakdown in USD.
type Cost struct {
	Models     float64 `json:"model_cost_usd"`
	Embedding  float64 `json:"embedding_cost_usd"`
	Escalation float64 `json:"escalation_cost_usd"`
	Total      float64 `json:"total_cost_usd"`
}

// NewID returns a fresh request identifier.
func NewID() string {
	return uuid.NewString()
}

// Writer persists trace records as one JSON file per request.
type Writer struct {
	baseDir string
}

// NewWriter creates a writer rooted at baseDir, creating it if needed.
func NewWriter(baseDir string) (*Writer, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, err
	}
	return &Writer{baseDir: baseDir}, nil
}

// Write stores a record at <baseDir>/<request_id>.json.
func (w *Writer) Write(record Record) error {
	if record.RequestID == "" {
		return fmt.Errorf("record has no request ID")
	}
	path := filepath.Join(w.baseDir, record.RequestID+".json")
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Read loads a previously written record.
func (w *Writer) Read(requestID string) (Record, error) {
	var record Record
	data, err := os.ReadFile(filepath.Join(w.baseDir, requestID+".json"))
	if err != nil {
		return record, err
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, fmt.Errorf("decode trace %s: %w", requestID, err)
	}
	return record, nil
}
