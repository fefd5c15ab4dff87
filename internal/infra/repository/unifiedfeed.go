package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kinokawa/feedsync/internal/domain"
	"github.com/kinokawa/feedsync/internal/infra/database/models"
)

type UnifiedFeedRepository struct {
	db *gorm.DB
}

func NewUnifiedFeedRepository(db *gorm.DB) *UnifiedFeedRepository {
	return &UnifiedFeedRepository{db: db}
}

// Save creates or replaces the preset. When it is marked default, any
// other default of the same user is cleared in the same transaction so
// at most one default exists.
func (r *UnifiedFeedRepository) Save(ctx context.Context, feed domain.UnifiedFeed) error {
	m := models.UnifiedFeedFromDomain(feed)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if feed.IsDefault {
			err := tx.Model(&models.UnifiedFeed{}).
				Where("user_id = ? AND id <> ?", feed.UserID, feed.ID).
				Update("is_default", false).Error
			if err != nil {
				return err
			}
		}
		return tx.Save(&m).Error
	})
}

func (r *UnifiedFeedRepository) Get(ctx context.Context, id string) (domain.UnifiedFeed, error) {
	var m models.UnifiedFeed
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return domain.UnifiedFeed{}, domain.NotFoundError{Resource: "unified feed"}
	}
	if err != nil {
		return domain.UnifiedFeed{}, err
	}
	return m.ToDomain(), nil
}

func (r *UnifiedFeedRepository) GetDefault(ctx context.Context, userID string) (domain.UnifiedFeed, error) {
	var m models.UnifiedFeed
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_default = ?", userID, true).
		Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return domain.UnifiedFeed{}, domain.NotFoundError{Resource: "default feed"}
	}
	if err != nil {
		return domain.UnifiedFeed{}, err
	}
	return m.ToDomain(), nil
}

func (r *UnifiedFeedRepository) ListByUser(ctx context.Context, userID string) ([]domain.UnifiedFeed, error) {
	var rows []models.UnifiedFeed
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	feeds := make([]domain.UnifiedFeed, 0, len(rows))
	for _, row := range rows {
		feeds = append(feeds, row.ToDomain())
	}
	return feeds, nil
}

func (r *UnifiedFeedRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.UnifiedFeed{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "unified feed"}
	}
	return nil
}

// Touch updates the preset timestamp after indirect mutations.
func (r *UnifiedFeedRepository) Touch(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.UnifiedFeed{}).
		Where("id = ?", id).
		Update("updated_at", time.Now()).Error
}
