package domain

import (
	"time"

	"github.com/kinokawa/feedsync"
)

type SortField string

const (
	SortByPublishedAt SortField = "publishedAt"
	SortByLikes       SortField = "likesCount"
	SortByShares      SortField = "sharesCount"
	SortByCreatedAt   SortField = "createdAt"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ItemFilters are applied conjunctively: every supplied predicate must
// hold. Keywords form an OR-group, ExcludeKeywords an AND-none group.
type ItemFilters struct {
	SourceIDs       []string            `json:"sourceIds,omitempty"`
	ItemTypes       []feedsync.ItemType `json:"itemTypes,omitempty"`
	Status          feedsync.ItemStatus `json:"status,omitempty"`
	Keywords        []string            `json:"keywords,omitempty"`
	ExcludeKeywords []string            `json:"excludeKeywords,omitempty"`
	FromDate        *time.Time          `json:"fromDate,omitempty"`
	ToDate          *time.Time          `json:"toDate,omitempty"`
	MinLikes        *int64              `json:"minLikes,omitempty"`
	MinShares       *int64              `json:"minShares,omitempty"`
}

type SortSettings struct {
	Field SortField `json:"sortBy"`
	Order SortOrder `json:"sortOrder"`
}

// FeedQuery is one Item Store read: conjunctive filters, a single sort
// key, and offset pagination.
type FeedQuery struct {
	Filters ItemFilters  `json:"filters"`
	Sort    SortSettings `json:"sort"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
}

// SourceSummary is the per-source annotation attached to a feed page.
type SourceSummary struct {
	SourceID   string     `json:"sourceId"`
	Name       string     `json:"name"`
	PlatformID string     `json:"platformId"`
	ItemCount  int64      `json:"itemCount"`
	LastSyncAt *time.Time `json:"lastSyncAt,omitempty"`
}

// FeedPage is one page of aggregated items.
type FeedPage struct {
	Items      []feedsync.Item `json:"items"`
	TotalCount int64           `json:"totalCount"`
	HasMore    bool            `json:"hasMore"`
	NextOffset int             `json:"nextOffset"`
	Sources    []SourceSummary `json:"sources,omitempty"`
}

// FeedMetrics summarizes the considered item set.
type FeedMetrics struct {
	TotalItems        int64            `json:"totalItems"`
	ActiveSources     int              `json:"activeSources"`
	ItemsByType       map[string]int64 `json:"itemsByType"`
	ItemsByPlatform   map[string]int64 `json:"itemsByPlatform"`
	AverageEngagement float64          `json:"averageEngagement"`
	TopItem           *feedsync.Item   `json:"topItem,omitempty"`
	OldestItem        *time.Time       `json:"oldestItem,omitempty"`
	NewestItem        *time.Time       `json:"newestItem,omitempty"`
}

// UnifiedFeed is a saved aggregation preset. SourceIDs are weak
// references into Source and are validated on every mutation.
type UnifiedFeed struct {
	ID             string       `json:"id"`
	UserID         string       `json:"userId"`
	Name           string       `json:"name"`
	Description    string       `json:"description,omitempty"`
	SourceIDs      []string     `json:"sourceIds"`
	FilterSettings ItemFilters  `json:"filterSettings"`
	SortSettings   SortSettings `json:"sortSettings"`
	IsDefault      bool         `json:"isDefault"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}
