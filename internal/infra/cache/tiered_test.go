package cache

import (
	"context"
	"testing"
	"time"
)

func TestTieredStoreBackfillsLocalTier(t *testing.T) {
	local := NewMemoryStore()
	shared := NewMemoryStore()
	store := NewTieredStore(local, shared)
	ctx := context.Background()

	// Entry only in the shared tier, as after a restart.
	shared.Set(ctx, "feed:user1:x", []byte("page"), time.Minute)

	value, found := store.Get(ctx, "feed:user1:x")
	if !found || string(value) != "page" {
		t.Fatalf("expected shared-tier hit, got %q / %v", value, found)
	}

	if _, found := local.Get(ctx, "feed:user1:x"); !found {
		t.Fatalf("expected local tier to be backfilled")
	}
}

func TestTieredStoreWritesBothTiers(t *testing.T) {
	local := NewMemoryStore()
	shared := NewMemoryStore()
	store := NewTieredStore(local, shared)
	ctx := context.Background()

	store.Set(ctx, "feed:user1:x", []byte("page"), time.Minute)

	if _, found := local.Get(ctx, "feed:user1:x"); !found {
		t.Fatalf("expected local write")
	}
	if _, found := shared.Get(ctx, "feed:user1:x"); !found {
		t.Fatalf("expected shared write")
	}
}

func TestTieredStoreDeletePatternClearsBothTiers(t *testing.T) {
	local := NewMemoryStore()
	shared := NewMemoryStore()
	store := NewTieredStore(local, shared)
	ctx := context.Background()

	store.Set(ctx, "feed:user1:x", []byte("page"), time.Minute)
	store.DeletePattern(ctx, "*:user1:*")

	if _, found := local.Get(ctx, "feed:user1:x"); found {
		t.Fatalf("expected local delete")
	}
	if _, found := shared.Get(ctx, "feed:user1:x"); found {
		t.Fatalf("expected shared delete")
	}
}
