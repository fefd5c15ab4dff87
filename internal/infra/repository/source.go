package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kinokawa/feedsync"
	"github.com/kinokawa/feedsync/internal/domain"
	"github.com/kinokawa/feedsync/internal/infra/database/models"
)

type SourceRepository struct {
	db *gorm.DB
}

func NewSourceRepository(db *gorm.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

func (r *SourceRepository) Create(ctx context.Context, source domain.Source) error {
	m := models.SourceFromDomain(source)
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *SourceRepository) Get(ctx context.Context, id string) (domain.Source, error) {
	var m models.Source
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Source{}, domain.NotFoundError{Resource: "source"}
	}
	if err != nil {
		return domain.Source{}, err
	}
	return m.ToDomain(), nil
}

func (r *SourceRepository) ListByUser(ctx context.Context, userID string) ([]domain.Source, error) {
	var rows []models.Source
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainSources(rows), nil
}

// ListSyncable returns the active, sync-enabled sources, optionally
// scoped to one user.
func (r *SourceRepository) ListSyncable(ctx context.Context, userID string) ([]domain.Source, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND sync_enabled = ?", string(domain.SourceStatusActive), true)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	var rows []models.Source
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainSources(rows), nil
}

// ListActiveIDs returns the ids of a user's active sources.
func (r *SourceRepository) ListActiveIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Source{}).
		Where("user_id = ? AND status = ?", userID, string(domain.SourceStatusActive)).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *SourceRepository) Update(ctx context.Context, source domain.Source) error {
	m := models.SourceFromDomain(source)
	m.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).Model(&models.Source{}).
		Where("id = ?", source.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "source"}
	}
	return nil
}

// UpdateStatus records a sync outcome. Only the owning sync task calls
// this for a given source.
func (r *SourceRepository) UpdateStatus(ctx context.Context, id string, status domain.SourceStatus, lastError string) error {
	return r.db.WithContext(ctx).Model(&models.Source{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     string(status),
			"last_error": lastError,
			"updated_at": time.Now(),
		}).Error
}

// TouchSynced records a completed sync: timestamp plus the running
// total of items ever processed for the source.
func (r *SourceRepository) TouchSynced(ctx context.Context, id string, syncedAt time.Time, newItems int) error {
	return r.db.WithContext(ctx).Model(&models.Source{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_sync_at": syncedAt,
			"total_items":  gorm.Expr("total_items + ?", newItems),
			"updated_at":   time.Now(),
		}).Error
}

// UpdateCredentials propagates a refreshed token bundle.
func (r *SourceRepository) UpdateCredentials(ctx context.Context, id string, creds feedsync.Credentials) error {
	return r.db.WithContext(ctx).Model(&models.Source{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"access_token":  creds.AccessToken,
			"refresh_token": creds.RefreshToken,
			"token_expiry":  creds.ExpiresAt,
			"updated_at":    time.Now(),
		}).Error
}

func (r *SourceRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Source{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "source"}
	}
	return nil
}

func toDomainSources(rows []models.Source) []domain.Source {
	sources := make([]domain.Source, 0, len(rows))
	for _, row := range rows {
		sources = append(sources, row.ToDomain())
	}
	return sources
}
