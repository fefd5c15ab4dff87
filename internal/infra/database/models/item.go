package models

import (
	"encoding/json"
	"time"

	"github.com/kinokawa/feedsync"
)

type Item struct {
	ID             string `json:"id" gorm:"primaryKey;type:text"`
	SourceID       string `json:"sourceId" gorm:"type:text;not null;index;uniqueIndex:uniq_source_platform_item"`
	Source         Source `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	PlatformItemID string `json:"platformItemId" gorm:"type:text;not null;uniqueIndex:uniq_source_platform_item"`

	Type         string `json:"type" gorm:"type:text;not null;index"`
	Title        string `json:"title" gorm:"type:text"`
	Text         string `json:"text" gorm:"type:text"`
	Excerpt      string `json:"excerpt" gorm:"type:text"`
	AuthorHandle string `json:"authorHandle" gorm:"type:text"`
	AuthorName   string `json:"authorName" gorm:"type:text"`
	AuthorAvatar string `json:"authorAvatar" gorm:"type:text"`
	Media        string `json:"-" gorm:"type:text"`
	Links        string `json:"-" gorm:"type:text"`
	Hashtags     string `json:"-" gorm:"type:text"`
	Mentions     string `json:"-" gorm:"type:text"`
	OriginalURL  string `json:"originalUrl" gorm:"type:text"`

	LikesCount    int64 `json:"likesCount" gorm:"not null;default:0;index"`
	SharesCount   int64 `json:"sharesCount" gorm:"not null;default:0"`
	CommentsCount int64 `json:"commentsCount" gorm:"not null;default:0"`
	ViewsCount    int64 `json:"viewsCount" gorm:"not null;default:0"`

	Status string `json:"status" gorm:"type:text;not null;default:'active';index"`

	PublishedAt time.Time `json:"publishedAt" gorm:"type:timestamp with time zone;not null;index"`
	CreatedAt   time.Time `json:"createdAt" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}

func ItemFromDomain(item feedsync.Item) Item {
	return Item{
		ID:             item.ID,
		SourceID:       item.SourceID,
		PlatformItemID: item.PlatformItemID,
		Type:           string(item.Type),
		Title:          item.Title,
		Text:           item.Text,
		Excerpt:        item.Excerpt,
		AuthorHandle:   item.AuthorHandle,
		AuthorName:     item.AuthorName,
		AuthorAvatar:   item.AuthorAvatar,
		Media:          marshalList(item.Media),
		Links:          marshalList(item.Links),
		Hashtags:       marshalList(item.Hashtags),
		Mentions:       marshalList(item.Mentions),
		OriginalURL:    item.OriginalURL,
		LikesCount:     item.Likes,
		SharesCount:    item.Shares,
		CommentsCount:  item.Comments,
		ViewsCount:     item.Views,
		Status:         string(item.Status),
		PublishedAt:    item.PublishedAt,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
	}
}

func (m Item) ToDomain() feedsync.Item {
	item := feedsync.Item{
		ID:             m.ID,
		SourceID:       m.SourceID,
		PlatformItemID: m.PlatformItemID,
		Type:           feedsync.ItemType(m.Type),
		Title:          m.Title,
		Text:           m.Text,
		Excerpt:        m.Excerpt,
		AuthorHandle:   m.AuthorHandle,
		AuthorName:     m.AuthorName,
		AuthorAvatar:   m.AuthorAvatar,
		OriginalURL:    m.OriginalURL,
		Likes:          m.LikesCount,
		Shares:         m.SharesCount,
		Comments:       m.CommentsCount,
		Views:          m.ViewsCount,
		Status:         feedsync.ItemStatus(m.Status),
		PublishedAt:    m.PublishedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	unmarshalList(m.Media, &item.Media)
	unmarshalList(m.Links, &item.Links)
	unmarshalList(m.Hashtags, &item.Hashtags)
	unmarshalList(m.Mentions, &item.Mentions)
	return item
}

func marshalList(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func unmarshalList(s string, out any) {
	if s == "" {
		return
	}
	_ = json.Unmarshal([]byte(s), out)
}
