package models

import (
	"time"

	"github.com/kinokawa/feedsync"
	"github.com/kinokawa/feedsync/internal/domain"
)

type Source struct {
	ID            string `json:"id" gorm:"primaryKey;type:text"`
	UserID        string `json:"userId" gorm:"type:text;not null;index"`
	PlatformID    string `json:"platformId" gorm:"type:text;not null;index"`
	AccountHandle string `json:"accountHandle" gorm:"type:text;not null"`
	AccountID     string `json:"accountId" gorm:"type:text"`
	Name          string `json:"name" gorm:"type:text"`

	AccessToken  string     `json:"-" gorm:"type:text"`
	RefreshToken string     `json:"-" gorm:"type:text"`
	ClientID     string     `json:"-" gorm:"type:text"`
	ClientSecret string     `json:"-" gorm:"type:text"`
	TokenExpiry  *time.Time `json:"-" gorm:"type:timestamp with time zone"`

	Status     string     `json:"status" gorm:"type:text;not null;default:'active';index"`
	LastSyncAt *time.Time `json:"lastSyncAt" gorm:"type:timestamp with time zone"`
	LastError  string     `json:"lastErrorMessage" gorm:"type:text"`
	TotalItems int64      `json:"totalItemsCount" gorm:"not null;default:0"`

	SyncEnabled     bool `json:"syncEnabled" gorm:"not null;default:true"`
	IntervalMinutes int  `json:"intervalMinutes" gorm:"not null;default:30"`
	MaxItemsPerSync int  `json:"maxItemsPerSync" gorm:"not null;default:50"`
	IncludeReplies  bool `json:"includeReplies" gorm:"not null;default:false"`
	IncludeRetweets bool `json:"includeRetweets" gorm:"not null;default:true"`

	CreatedAt time.Time `json:"createdAt" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}

func SourceFromDomain(s domain.Source) Source {
	return Source{
		ID:              s.ID,
		UserID:          s.UserID,
		PlatformID:      s.PlatformID,
		AccountHandle:   s.AccountHandle,
		AccountID:       s.AccountID,
		Name:            s.Name,
		AccessToken:     s.Credentials.AccessToken,
		RefreshToken:    s.Credentials.RefreshToken,
		ClientID:        s.Credentials.ClientID,
		ClientSecret:    s.Credentials.ClientSecret,
		TokenExpiry:     s.Credentials.ExpiresAt,
		Status:          string(s.Status),
		LastSyncAt:      s.LastSyncAt,
		LastError:       s.LastError,
		TotalItems:      s.TotalItems,
		SyncEnabled:     s.SyncSettings.Enabled,
		IntervalMinutes: s.SyncSettings.IntervalMinutes,
		MaxItemsPerSync: s.SyncSettings.MaxItemsPerSync,
		IncludeReplies:  s.SyncSettings.IncludeReplies,
		IncludeRetweets: s.SyncSettings.IncludeRetweets,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func (m Source) ToDomain() domain.Source {
	return domain.Source{
		ID:            m.ID,
		UserID:        m.UserID,
		PlatformID:    m.PlatformID,
		AccountHandle: m.AccountHandle,
		AccountID:     m.AccountID,
		Name:          m.Name,
		Credentials: feedsync.Credentials{
			AccessToken:  m.AccessToken,
			RefreshToken: m.RefreshToken,
			ClientID:     m.ClientID,
			ClientSecret: m.ClientSecret,
			ExpiresAt:    m.TokenExpiry,
		},
		Status:     domain.SourceStatus(m.Status),
		LastSyncAt: m.LastSyncAt,
		LastError:  m.LastError,
		TotalItems: m.TotalItems,
		SyncSettings: domain.SyncSettings{
			Enabled:         m.SyncEnabled,
			IntervalMinutes: m.IntervalMinutes,
			MaxItemsPerSync: m.MaxItemsPerSync,
			IncludeReplies:  m.IncludeReplies,
			IncludeRetweets: m.IncludeRetweets,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
