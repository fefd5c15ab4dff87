package cache

import (
	"context"
	"path"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is the in-process Store backend, interchangeable with
// RedisStore for single-node deployments and tests.
type MemoryStore struct {
	inner *gocache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		inner: gocache.New(5*time.Minute, 10*time.Minute),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool) {
	value, found := s.inner.Get(key)
	if !found {
		return nil, false
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil, false
	}
	return bytes, true
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	s.inner.Set(key, value, ttl)
}

func (s *MemoryStore) DeletePattern(ctx context.Context, pattern string) {
	for key := range s.inner.Items() {
		matched, err := path.Match(pattern, key)
		if err != nil {
			return
		}
		if matched {
			s.inner.Delete(key)
		}
	}
}
