package cache

import (
	"context"
	"time"
)

// l1TTLCap bounds how long an entry can live in the in-process tier.
// Cross-node invalidation only reaches Redis, so the local copy must
// age out quickly on its own.
const l1TTLCap = 60 * time.Second

// TieredStore layers an in-process store over a shared one. Reads hit
// the local tier first and backfill it on a shared-tier hit; writes and
// pattern deletes go to both.
type TieredStore struct {
	local  Store
	shared Store
}

func NewTieredStore(local, shared Store) *TieredStore {
	return &TieredStore{
		local:  local,
		shared: shared,
	}
}

func (s *TieredStore) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, found := s.local.Get(ctx, key); found {
		return value, true
	}
	value, found := s.shared.Get(ctx, key)
	if !found {
		return nil, false
	}
	s.local.Set(ctx, key, value, l1TTLCap)
	return value, true
}

func (s *TieredStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	localTTL := ttl
	if localTTL > l1TTLCap {
		localTTL = l1TTLCap
	}
	s.local.Set(ctx, key, value, localTTL)
	s.shared.Set(ctx, key, value, ttl)
}

func (s *TieredStore) DeletePattern(ctx context.Context, pattern string) {
	s.local.DeletePattern(ctx, pattern)
	s.shared.DeletePattern(ctx, pattern)
}
