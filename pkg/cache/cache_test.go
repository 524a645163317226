package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRoundTrip(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if _, ok, _ := store.Get(ctx, "missing"); ok {
		t.Fatalf("empty store reported a hit")
	}

	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, ok, err := store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(val) != "v" {
		t.Fatalf("value = %q", val)
	}
}

func TestMemoryExpiry(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatalf("expired entry still served")
	}
}

func TestRistrettoRoundTrip(t *testing.T) {
	store, err := NewRistretto(1 << 20)
	if err != nil {
		t.Fatalf("new ristretto: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	store.Wait()

	val, ok, err := store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("get after wait: ok=%v err=%v", ok, err)
	}
	if string(val) != "v" {
		t.Fatalf("value = %q", val)
	}
}
