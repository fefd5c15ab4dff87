package connector

import (
	"errors"
	"testing"

	"github.com/kinokawa/feedsync/internal/domain"
)

func TestRegistryResolvesByPlatform(t *testing.T) {
	registry := NewRegistry(
		NewTwitterConnector(""),
		NewInstagramConnector(""),
		NewRSSConnector(),
	)

	for _, platform := range []string{"twitter", "instagram", "rss"} {
		conn, err := registry.Get(platform)
		if err != nil {
			t.Fatalf("get %s failed: %v", platform, err)
		}
		if conn.PlatformID() != platform {
			t.Fatalf("expected %s, got %s", platform, conn.PlatformID())
		}
	}

	if got := len(registry.List()); got != 3 {
		t.Fatalf("expected 3 connectors, got %d", got)
	}
}

func TestRegistryUnknownPlatform(t *testing.T) {
	registry := NewRegistry(NewRSSConnector())

	_, err := registry.Get("myspace")
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
