package feedsync

import (
	"time"
)

type ItemType string

const (
	ItemTypePost    ItemType = "post"
	ItemTypeRetweet ItemType = "retweet"
	ItemTypeReply   ItemType = "reply"
	ItemTypeStory   ItemType = "story"
	ItemTypeVideo   ItemType = "video"
	ItemTypeImage   ItemType = "image"
	ItemTypeArticle ItemType = "article"
)

type ItemStatus string

const (
	ItemStatusActive  ItemStatus = "active"
	ItemStatusHidden  ItemStatus = "hidden"
	ItemStatusDeleted ItemStatus = "deleted"
	ItemStatusFlagged ItemStatus = "flagged"
)

// Media is one attachment (image, video, thumbnail) carried by an item.
type Media struct {
	URL      string `json:"url"`
	Type     string `json:"type"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	AltText  string `json:"altText,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

// Link is an external link referenced by an item.
type Link struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Item is the canonical, platform-agnostic representation of one piece
// of content. (SourceID, PlatformItemID) is unique and acts as the
// idempotency key for upserts.
type Item struct {
	ID             string `json:"id"`
	SourceID       string `json:"sourceId"`
	PlatformItemID string `json:"platformItemId"`

	Type         ItemType `json:"type"`
	Title        string   `json:"title,omitempty"`
	Text         string   `json:"text"`
	Excerpt      string   `json:"excerpt,omitempty"`
	AuthorHandle string   `json:"authorHandle"`
	AuthorName   string   `json:"authorName,omitempty"`
	AuthorAvatar string   `json:"authorAvatar,omitempty"`
	Media        []Media  `json:"media,omitempty"`
	Links        []Link   `json:"links,omitempty"`
	Hashtags     []string `json:"hashtags,omitempty"`
	Mentions     []string `json:"mentions,omitempty"`
	OriginalURL  string   `json:"originalUrl,omitempty"`

	// Engagement counters are the only fields mutated on re-sync.
	Likes    int64 `json:"likes"`
	Shares   int64 `json:"shares"`
	Comments int64 `json:"comments"`
	Views    int64 `json:"views"`

	Status ItemStatus `json:"status"`

	PublishedAt time.Time `json:"publishedAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// EngagementTotal is the score used to pick the top-performing item.
func (i Item) EngagementTotal() int64 {
	return i.Likes + i.Shares + i.Comments
}

// Credentials is the bundle a Source owns for talking to its platform.
// It is never copied into items.
type Credentials struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	ClientID     string     `json:"clientId,omitempty"`
	ClientSecret string     `json:"clientSecret,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the access token is past its expiry.
func (c Credentials) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// SyncOptions bounds one incremental fetch.
type SyncOptions struct {
	MaxItems        int
	SinceID         string
	SinceDate       *time.Time
	IncludeReplies  bool
	IncludeRetweets bool
}

// FetchResult is what a connector returns from one SyncFeed call.
// Rate-limit state is surfaced here instead of being swallowed so the
// orchestrator can decide how to mark the source.
type FetchResult struct {
	Items              []Item
	NextPageToken      string
	HasMore            bool
	RateLimitRemaining *int
	RateLimitResetAt   *time.Time
}

// RateLimitStatus reports the remaining quota for a credential bundle.
type RateLimitStatus struct {
	Remaining int        `json:"remaining"`
	Limit     int        `json:"limit"`
	ResetAt   *time.Time `json:"resetAt,omitempty"`
}

// UserInfo describes the platform account behind a source.
type UserInfo struct {
	AccountID   string `json:"accountId"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Followers   int64  `json:"followers,omitempty"`
}

type EventType string

const (
	EventNewItems      EventType = "new_items"
	EventSourceUpdated EventType = "source_updated"
	EventSyncCompleted EventType = "sync_completed"
	EventSyncFailed    EventType = "sync_failed"
)

// Event is handed to the notification collaborator. Delivery beyond
// publishing is out of scope for this engine.
type Event struct {
	Type     EventType      `json:"type"`
	UserID   string         `json:"userId"`
	SourceID string         `json:"sourceId,omitempty"`
	Items    []Item         `json:"items,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
