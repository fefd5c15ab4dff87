package cache

import (
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// CooldownStore tracks per-source rate-limit cooldowns in memcached.
// A key expires on its own when the platform's reported reset time
// passes, so the orchestrator only has to check for presence.
type CooldownStore struct {
	mc *memcache.Client
}

func NewCooldownStore(mc *memcache.Client) *CooldownStore {
	return &CooldownStore{mc: mc}
}

func (s *CooldownStore) Set(sourceID string, until time.Time) {
	if s.mc == nil {
		return
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return
	}
	_ = s.mc.Set(&memcache.Item{
		Key:        cooldownKey(sourceID),
		Value:      []byte(until.UTC().Format(time.RFC3339)),
		Expiration: int32(ttl.Seconds()) + 1,
	})
}

// Active reports whether the source is still inside a cooldown window.
// Memcached errors degrade to "not cooling down" so a cache outage
// never stalls syncing.
func (s *CooldownStore) Active(sourceID string) bool {
	if s.mc == nil {
		return false
	}
	_, err := s.mc.Get(cooldownKey(sourceID))
	return err == nil
}

func cooldownKey(sourceID string) string {
	return "cooldown:" + sourceID
}
