package domain

import (
	"time"

	"github.com/kinokawa/feedsync"
)

type SourceStatus string

const (
	SourceStatusActive      SourceStatus = "active"
	SourceStatusInactive    SourceStatus = "inactive"
	SourceStatusError       SourceStatus = "error"
	SourceStatusRateLimited SourceStatus = "rate_limited"
)

// SyncSettings are the per-source defaults for incremental fetches.
type SyncSettings struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"intervalMinutes"`
	MaxItemsPerSync int  `json:"maxItemsPerSync"`
	IncludeReplies  bool `json:"includeReplies"`
	IncludeRetweets bool `json:"includeRetweets"`
}

// SyncOverrides are per-run option overrides. A nil field leaves the
// source's own sync setting in effect for that run.
type SyncOverrides struct {
	MaxItems        *int  `json:"maxItems,omitempty"`
	IncludeReplies  *bool `json:"includeReplies,omitempty"`
	IncludeRetweets *bool `json:"includeRetweets,omitempty"`
}

// Source is a user's subscription to one account on one platform.
// It is the sole owner of its credential bundle and sync cursor state.
type Source struct {
	ID            string               `json:"id"`
	UserID        string               `json:"userId"`
	PlatformID    string               `json:"platformId"`
	AccountHandle string               `json:"accountHandle"`
	AccountID     string               `json:"accountId"`
	Name          string               `json:"name"`
	Credentials   feedsync.Credentials `json:"-"`
	Status        SourceStatus         `json:"status"`
	LastSyncAt    *time.Time           `json:"lastSyncAt,omitempty"`
	LastError     string               `json:"lastErrorMessage,omitempty"`
	TotalItems    int64                `json:"totalItemsCount"`
	SyncSettings  SyncSettings         `json:"syncSettings"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// SyncResult is the transient outcome of one sync attempt. It is
// reported, never persisted.
type SyncResult struct {
	SourceID       string `json:"sourceId"`
	Success        bool   `json:"success"`
	ItemsProcessed int    `json:"itemsProcessed"`
	NewItems       int    `json:"newItems"`
	Error          string `json:"error,omitempty"`
	RateLimitHit   bool   `json:"rateLimitHit"`
}
