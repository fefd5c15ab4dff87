// Package connector holds the per-platform adapters that translate
// platform API calls into canonical items, plus the registry that
// resolves them by platform id.
package connector

import (
	"net/http"
	"time"

	"github.com/kinokawa/feedsync"
	"github.com/kinokawa/feedsync/internal/domain"
)

const defaultTimeout = 10 * time.Second

var (
	_ domain.Connector = (*TwitterConnector)(nil)
	_ domain.Connector = (*InstagramConnector)(nil)
	_ domain.Connector = (*RSSConnector)(nil)
)

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: defaultTimeout,
	}
}

func clampItems(items []feedsync.Item, max int) []feedsync.Item {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}
