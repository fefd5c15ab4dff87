// Package cache provides the key-value collaborators behind the
// aggregation read path: interchangeable in-memory and Redis stores
// plus a memcached-backed rate-limit cooldown tracker.
package cache

import (
	"context"
	"time"
)

// Store is the memoization collaborator for aggregated views. A miss
// returns found=false, never an error the caller must branch on.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	DeletePattern(ctx context.Context, pattern string)
}

// TTL tiers per view kind. Trending tolerates staleness because it
// aggregates over a wide window; personalized needs freshness after
// new ingestion.
const (
	TTLFeed         = 300 * time.Second
	TTLTrending     = 900 * time.Second
	TTLPersonalized = 180 * time.Second
)
