package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/zen-systems/quorum/pkg/cache"
)

const (
	snapshotKey = "catalog:models"

	// DefaultTTL is how long a catalog snapshot stays fresh.
	DefaultTTL = time.Hour
)

// Fetcher retrieves the live model catalog.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Model, error)
}

// Registry serves model snapshots from a TTL cache, refreshing from the
// live catalog on expiry. The cache store is injected and process-wide;
// snapshots are replaced wholesale, never mutated.
type Registry struct {
	fetcher Fetcher
	store   cache.Store
	ttl     time.Duration
}

// NewRegistry creates a registry over the given fetcher and store.
// A non-positive ttl falls back to DefaultTTL.
func NewRegistry(fetcher Fetcher, store cache.Store, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{fetcher: fetcher, store: store, ttl: ttl}
}

// Models returns the cached snapshot if present, otherwise refreshes.
// A refresh failure propagates; callers fall back to the static set.
func (r *Registry) Models(ctx context.Context) ([]Model, error) {
	if data, ok, err := r.store.Get(ctx, snapshotKey); err == nil && ok {
		var models []Model
		if err := json.Unmarshal(data, &models); err == nil {
			return models, nil
		}
		slog.Warn("catalog: discarding undecodable snapshot")
	}
	return r.Refresh(ctx)
}

// Refresh fetches the live catalog and replaces the cached snapshot.
func (r *Registry) Refresh(ctx context.Context) ([]Model, error) {
	models, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog refresh: %w", err)
	}

	if data, err := json.Marshal(models); err == nil {
		if err := r.store.Set(ctx, snapshotKey, data, r.ttl); err != nil {
			slog.Warn("catalog: snapshot write failed", "error", err)
		}
	}

	slog.Info("catalog refreshed", "models", len(models))
	return models, nil
}
