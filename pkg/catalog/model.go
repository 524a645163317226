// Package catalog maintains the set of inference-capable models the engine
// can draw a council from: a live catalog client, a TTL-cached registry,
// and a static fallback set for catalog outages.
package catalog

import (
	"sort"
	"strings"
	"time"
)

// Model describes one inference-capable model. Prices are USD per million
// tokens. Models are immutable once constructed; a registry refresh
// replaces the whole snapshot rather than mutating fields.
type Model struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Provider      string        `json:"provider"`
	InputPerMTok  float64       `json:"input_per_mtok"`
	OutputPerMTok float64       `json:"output_per_mtok"`
	AvgPerMTok    float64       `json:"avg_per_mtok"`
	Free          bool          `json:"free"`
	ContextLength int           `json:"context_length"`
	LatencyP50    time.Duration `json:"latency_p50,omitempty"`
}

// Bucket is a non-overlapping price band.
type Bucket int

const (
	BucketFree Bucket = iota
	BucketCheap
	BucketSmart
	BucketPremium
)

// Price band boundaries in USD per million tokens (average of input and
// output price).
const (
	cheapCeiling   = 1.0
	premiumFloor   = 10.0
	simpleBandCeil = 0.20
)

func (b Bucket) String() string {
	switch b {
	case BucketFree:
		return "free"
	case BucketCheap:
		return "cheap"
	case BucketSmart:
		return "smart"
	case BucketPremium:
		return "premium"
	default:
		return "unknown"
	}
}

// BucketOf returns the price band m falls in.
func BucketOf(m Model) Bucket {
	switch {
	case m.Free:
		return BucketFree
	case m.AvgPerMTok < cheapCeiling:
		return BucketCheap
	case m.AvgPerMTok < premiumFloor:
		return BucketSmart
	default:
		return BucketPremium
	}
}

// InSimpleBand reports whether m is cheap enough for the SIMPLE-tier draw.
func InSimpleBand(m Model) bool {
	return m.Free || m.AvgPerMTok < simpleBandCeil
}

// SortByAvgPrice orders models cheapest first, ID as tie-break so the
// order is stable across runs.
func SortByAvgPrice(models []Model) {
	sort.SliceStable(models, func(i, j int) bool {
		if models[i].AvgPerMTok == models[j].AvgPerMTok {
			return models[i].ID < models[j].ID
		}
		return models[i].AvgPerMTok < models[j].AvgPerMTok
	})
}

// Merge combines a live snapshot with the fallback set, deduplicating by
// ID with live models winning on collision.
func Merge(live, fallback []Model) []Model {
	seen := make(map[string]bool, len(live))
	merged := make([]Model, 0, len(live)+len(fallback))
	for _, m := range live {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		merged = append(merged, m)
	}
	for _, m := range fallback {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		merged = append(merged, m)
	}
	return merged
}

// ProviderOf extracts the provider segment from a catalog model ID such as
// "openai/gpt-4o-mini". IDs without a slash map to an empty provider.
func ProviderOf(id string) string {
	if idx := strings.IndexByte(id, '/'); idx > 0 {
		return id[:idx]
	}
	return ""
}
