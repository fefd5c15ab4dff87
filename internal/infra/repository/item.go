package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kinokawa/feedsync"
	"github.com/kinokawa/feedsync/internal/domain"
	"github.com/kinokawa/feedsync/internal/infra/database/models"
)

type ItemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Upsert inserts the item or, when (source_id, platform_item_id)
// already exists, updates only the mutable engagement counters.
// Returns whether a new row was created.
func (r *ItemRepository) Upsert(ctx context.Context, item feedsync.Item) (bool, error) {

	m := models.ItemFromDomain(item)

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_id"}, {Name: "platform_item_id"}},
		DoNothing: true,
	}).Create(&m)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	err := r.db.WithContext(ctx).Model(&models.Item{}).
		Where("source_id = ? AND platform_item_id = ?", item.SourceID, item.PlatformItemID).
		Updates(map[string]any{
			"likes_count":    item.Likes,
			"shares_count":   item.Shares,
			"comments_count": item.Comments,
			"views_count":    item.Views,
			"updated_at":     time.Now(),
		}).Error
	return false, err
}

// FindWithFilters applies the conjunctive filter set and returns one
// page plus the total match count. Ordering always tie-breaks on id so
// pagination is stable for equal sort keys.
func (r *ItemRepository) FindWithFilters(ctx context.Context, q domain.FeedQuery) ([]feedsync.Item, int64, error) {

	query := applyFilters(r.db.WithContext(ctx).Model(&models.Item{}), q.Filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Item
	err := query.
		Order(sortClause(q.Sort)).
		Order("id ASC").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	items := make([]feedsync.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.ToDomain())
	}
	return items, total, nil
}

// Latest returns the most recently published item of a source, the
// high-water mark for the incremental sync cursor.
func (r *ItemRepository) Latest(ctx context.Context, sourceID string) (*feedsync.Item, error) {
	var row models.Item
	err := r.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		Order("published_at DESC").
		Order("id DESC").
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.NotFoundError{Resource: "item"}
	}
	if err != nil {
		return nil, err
	}
	item := row.ToDomain()
	return &item, nil
}

// CountBySources returns item counts grouped by source id.
func (r *ItemRepository) CountBySources(ctx context.Context, sourceIDs []string) (map[string]int64, error) {
	type bucket struct {
		SourceID string
		Count    int64
	}
	var buckets []bucket
	err := r.db.WithContext(ctx).Model(&models.Item{}).
		Select("source_id, COUNT(*) as count").
		Where("source_id IN ? AND status = ?", sourceIDs, string(feedsync.ItemStatusActive)).
		Group("source_id").
		Scan(&buckets).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		counts[b.SourceID] = b.Count
	}
	return counts, nil
}

// MarkStatusBySource cascades a status transition to every item of a
// source. The pipeline never hard-deletes items.
func (r *ItemRepository) MarkStatusBySource(ctx context.Context, sourceID string, status feedsync.ItemStatus) error {
	return r.db.WithContext(ctx).Model(&models.Item{}).
		Where("source_id = ?", sourceID).
		Updates(map[string]any{"status": string(status), "updated_at": time.Now()}).Error
}

// Metrics aggregates over the active items of the given sources.
func (r *ItemRepository) Metrics(ctx context.Context, sourceIDs []string) (domain.FeedMetrics, error) {
	metrics := domain.FeedMetrics{
		ItemsByType:     map[string]int64{},
		ItemsByPlatform: map[string]int64{},
	}

	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Item{}).
			Where("items.source_id IN ? AND items.status = ?", sourceIDs, string(feedsync.ItemStatusActive))
	}

	if err := base().Count(&metrics.TotalItems).Error; err != nil {
		return metrics, err
	}
	if metrics.TotalItems == 0 {
		return metrics, nil
	}

	type bucket struct {
		Key   string
		Count int64
	}

	var byType []bucket
	if err := base().
		Select("type as key, COUNT(*) as count").
		Group("type").
		Scan(&byType).Error; err != nil {
		return metrics, err
	}
	for _, b := range byType {
		metrics.ItemsByType[b.Key] = b.Count
	}

	var byPlatform []bucket
	if err := base().
		Joins("JOIN sources ON sources.id = items.source_id").
		Select("sources.platform_id as key, COUNT(*) as count").
		Group("sources.platform_id").
		Scan(&byPlatform).Error; err != nil {
		return metrics, err
	}
	for _, b := range byPlatform {
		metrics.ItemsByPlatform[b.Key] = b.Count
	}

	var avg struct{ Avg float64 }
	if err := base().
		Select("AVG(likes_count + shares_count + comments_count) as avg").
		Scan(&avg).Error; err != nil {
		return metrics, err
	}
	metrics.AverageEngagement = avg.Avg

	var top models.Item
	err := base().
		Order("(likes_count + shares_count + comments_count) DESC").
		Order("id ASC").
		Take(&top).Error
	if err == nil {
		topItem := top.ToDomain()
		metrics.TopItem = &topItem
	} else if err != gorm.ErrRecordNotFound {
		return metrics, err
	}

	var bounds struct {
		Oldest *time.Time
		Newest *time.Time
	}
	if err := base().
		Select("MIN(published_at) as oldest, MAX(published_at) as newest").
		Scan(&bounds).Error; err != nil {
		return metrics, err
	}
	metrics.OldestItem = bounds.Oldest
	metrics.NewestItem = bounds.Newest

	return metrics, nil
}

func applyFilters(query *gorm.DB, f domain.ItemFilters) *gorm.DB {

	if len(f.SourceIDs) > 0 {
		query = query.Where("source_id IN ?", f.SourceIDs)
	}
	if len(f.ItemTypes) > 0 {
		types := make([]string, 0, len(f.ItemTypes))
		for _, t := range f.ItemTypes {
			types = append(types, string(t))
		}
		query = query.Where("type IN ?", types)
	}
	if f.Status != "" {
		query = query.Where("status = ?", string(f.Status))
	}
	if len(f.Keywords) > 0 {
		or := query.Session(&gorm.Session{NewDB: true})
		grouped := or.Where("text ILIKE ?", like(f.Keywords[0])).
			Or("title ILIKE ?", like(f.Keywords[0]))
		for _, kw := range f.Keywords[1:] {
			grouped = grouped.Or("text ILIKE ?", like(kw)).Or("title ILIKE ?", like(kw))
		}
		query = query.Where(grouped)
	}
	for _, kw := range f.ExcludeKeywords {
		query = query.Where("text NOT ILIKE ? AND title NOT ILIKE ?", like(kw), like(kw))
	}
	if f.FromDate != nil {
		query = query.Where("published_at >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		query = query.Where("published_at <= ?", *f.ToDate)
	}
	if f.MinLikes != nil {
		query = query.Where("likes_count >= ?", *f.MinLikes)
	}
	if f.MinShares != nil {
		query = query.Where("shares_count >= ?", *f.MinShares)
	}
	return query
}

func like(keyword string) string {
	return "%" + keyword + "%"
}

func sortClause(s domain.SortSettings) string {
	column := "published_at"
	switch s.Field {
	case domain.SortByLikes:
		column = "likes_count"
	case domain.SortByShares:
		column = "shares_count"
	case domain.SortByCreatedAt:
		column = "created_at"
	}
	direction := "DESC"
	if s.Order == domain.SortAsc {
		direction = "ASC"
	}
	return column + " " + direction
}
