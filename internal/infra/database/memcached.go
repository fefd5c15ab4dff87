package database

import (
	"github.com/bradfitz/gomemcache/memcache"
)

// NewMemcached returns nil when no address is configured; callers
// treat a nil client as "no cooldown tracking".
func NewMemcached(addr string) *memcache.Client {
	if addr == "" {
		return nil
	}
	return memcache.New(addr)
}
