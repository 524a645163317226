package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Ristretto implements Store on a dgraph-io/ristretto in-process cache.
type Ristretto struct {
	c *ristretto.Cache[string, []byte]
}

// NewRistretto creates a ristretto-backed store. maxCostBytes caps the total
// size of cached values in bytes.
func NewRistretto(maxCostBytes int64) (*Ristretto, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 100 * 10, // ~10x expected items
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Ristretto{c: c}, nil
}

// Get retrieves a value from the cache.
func (r *Ristretto) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, found := r.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a value in the cache with the given TTL.
func (r *Ristretto) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	r.c.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

// Wait blocks until buffered writes are applied. Tests use it; servers
// should not need to.
func (r *Ristretto) Wait() {
	r.c.Wait()
}

// Close shuts down the cache and releases resources.
func (r *Ristretto) Close() {
	r.c.Close()
}
