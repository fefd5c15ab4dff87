package models

import (
	"encoding/json"
	"time"

	"github.com/kinokawa/feedsync/internal/domain"
)

type UnifiedFeed struct {
	ID          string `json:"id" gorm:"primaryKey;type:text"`
	UserID      string `json:"userId" gorm:"type:text;not null;index"`
	Name        string `json:"name" gorm:"type:text;not null"`
	Description string `json:"description" gorm:"type:text"`

	// Weak references into sources, serialized as JSON arrays. The
	// usecase validates them on every mutation.
	SourceIDs      string `json:"-" gorm:"type:text"`
	FilterSettings string `json:"-" gorm:"type:text"`
	SortSettings   string `json:"-" gorm:"type:text"`

	IsDefault bool `json:"isDefault" gorm:"not null;default:false;index"`

	CreatedAt time.Time `json:"createdAt" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}

func UnifiedFeedFromDomain(f domain.UnifiedFeed) UnifiedFeed {
	sourceIDs, _ := json.Marshal(f.SourceIDs)
	filters, _ := json.Marshal(f.FilterSettings)
	sort, _ := json.Marshal(f.SortSettings)
	return UnifiedFeed{
		ID:             f.ID,
		UserID:         f.UserID,
		Name:           f.Name,
		Description:    f.Description,
		SourceIDs:      string(sourceIDs),
		FilterSettings: string(filters),
		SortSettings:   string(sort),
		IsDefault:      f.IsDefault,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

func (m UnifiedFeed) ToDomain() domain.UnifiedFeed {
	f := domain.UnifiedFeed{
		ID:          m.ID,
		UserID:      m.UserID,
		Name:        m.Name,
		Description: m.Description,
		IsDefault:   m.IsDefault,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.SourceIDs != "" {
		_ = json.Unmarshal([]byte(m.SourceIDs), &f.SourceIDs)
	}
	if m.FilterSettings != "" {
		_ = json.Unmarshal([]byte(m.FilterSettings), &f.FilterSettings)
	}
	if m.SortSettings != "" {
		_ = json.Unmarshal([]byte(m.SortSettings), &f.SortSettings)
	}
	return f
}
