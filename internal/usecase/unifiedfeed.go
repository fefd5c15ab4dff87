package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/kinokawa/feedsync/internal/domain"
	"github.com/kinokawa/feedsync/internal/infra/cache"
)

var unifiedTracer = otel.Tracer("unifiedfeed")

// UnifiedFeedUsecase manages saved aggregation presets and executes
// them through the aggregation engine.
type UnifiedFeedUsecase struct {
	feeds     UnifiedFeedRepository
	sources   SourceRepository
	aggregate *AggregateUsecase
	cache     CacheStore
	now       func() time.Time
}

func NewUnifiedFeedUsecase(
	feeds UnifiedFeedRepository,
	sources SourceRepository,
	aggregate *AggregateUsecase,
	cacheStore CacheStore,
) *UnifiedFeedUsecase {
	return &UnifiedFeedUsecase{
		feeds:     feeds,
		sources:   sources,
		aggregate: aggregate,
		cache:     cacheStore,
		now:       time.Now,
	}
}

// Create validates the preset's source references against the user's
// own sources and persists it. Saving a new default demotes the old one.
func (uc *UnifiedFeedUsecase) Create(ctx context.Context, feed domain.UnifiedFeed) (domain.UnifiedFeed, error) {
	ctx, span := unifiedTracer.Start(ctx, "UnifiedFeed.Usecase.Create")
	defer span.End()

	if err := uc.validate(ctx, &feed); err != nil {
		span.RecordError(err)
		return domain.UnifiedFeed{}, err
	}

	now := uc.now()
	feed.ID = uuid.NewString()
	feed.CreatedAt = now
	feed.UpdatedAt = now

	if err := uc.feeds.Save(ctx, feed); err != nil {
		span.RecordError(err)
		return domain.UnifiedFeed{}, errors.Wrap(err, "failed to save feed")
	}
	return feed, nil
}

func (uc *UnifiedFeedUsecase) Get(ctx context.Context, userID, feedID string) (domain.UnifiedFeed, error) {
	ctx, span := unifiedTracer.Start(ctx, "UnifiedFeed.Usecase.Get")
	defer span.End()

	feed, err := uc.feeds.Get(ctx, feedID)
	if err != nil {
		span.RecordError(err)
		return domain.UnifiedFeed{}, err
	}
	if feed.UserID != userID {
		return domain.UnifiedFeed{}, domain.NotFoundError{Resource: "feed " + feedID}
	}
	return feed, nil
}

// Default returns the user's default preset, if one is saved.
func (uc *UnifiedFeedUsecase) Default(ctx context.Context, userID string) (domain.UnifiedFeed, error) {
	ctx, span := unifiedTracer.Start(ctx, "UnifiedFeed.Usecase.Default")
	defer span.End()

	feed, err := uc.feeds.GetDefault(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return domain.UnifiedFeed{}, err
	}
	return feed, nil
}

func (uc *UnifiedFeedUsecase) List(ctx context.Context, userID string) ([]domain.UnifiedFeed, error) {
	ctx, span := unifiedTracer.Start(ctx, "UnifiedFeed.Usecase.List")
	defer span.End()

	feeds, err := uc.feeds.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to list feeds")
	}
	return feeds, nil
}

// Update replaces the preset's mutable fields, re-validating source
// references on every mutation.
func (uc *UnifiedFeedUsecase) Update(ctx context.Context, userID string, updated domain.UnifiedFeed) (domain.UnifiedFeed, error) {
	ctx, span := unifiedTracer.Start(ctx, "UnifiedFeed.Usecase.Update")
	defer span.End()

	current, err := uc.Get(ctx, userID, updated.ID)
	if err != nil {
		return domain.UnifiedFeed{}, err
	}

	updated.UserID = current.UserID
	updated.CreatedAt = current.CreatedAt
	if err := uc.validate(ctx, &updated); err != nil {
		span.RecordError(err)
		return domain.UnifiedFeed{}, err
	}
	updated.UpdatedAt = uc.now()

	if err := uc.feeds.Save(ctx, updated); err != nil {
		span.RecordError(err)
		return domain.UnifiedFeed{}, errors.Wrap(err, "failed to save feed")
	}

	uc.invalidate(ctx, userID, updated.ID)
	return updated, nil
}

func (uc *UnifiedFeedUsecase) Delete(ctx context.Context, userID, feedID string) error {
	ctx, span := unifiedTracer.Start(ctx, "UnifiedFeed.Usecase.Delete")
	defer span.End()

	if _, err := uc.Get(ctx, userID, feedID); err != nil {
		return err
	}
	if err := uc.feeds.Delete(ctx, feedID); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to delete feed")
	}
	uc.invalidate(ctx, userID, feedID)
	return nil
}

// Items executes a saved preset as an aggregated feed query. Sources
// deleted since the preset was saved are dropped at execution time, not
// treated as errors.
func (uc *UnifiedFeedUsecase) Items(ctx context.Context, userID, feedID string, limit, offset int) (*domain.FeedPage, error) {
	ctx, span := unifiedTracer.Start(ctx, "UnifiedFeed.Usecase.Items")
	defer span.End()

	feed, err := uc.Get(ctx, userID, feedID)
	if err != nil {
		return nil, err
	}

	// Record the use regardless of where the page comes from.
	if err := uc.feeds.Touch(ctx, feed.ID); err != nil {
		span.RecordError(err)
	}

	if limit <= 0 {
		limit = domain.DefaultLimit
	}
	if limit > domain.MaxLimit {
		limit = domain.MaxLimit
	}
	if offset < 0 {
		return nil, domain.ValidationError{Detail: "offset must not be negative"}
	}

	key := unifiedCacheKey(userID, feedID, limit, offset)
	if uc.cache != nil {
		if raw, found := uc.cache.Get(ctx, key); found {
			var page domain.FeedPage
			if err := json.Unmarshal(raw, &page); err == nil {
				return &page, nil
			}
		}
	}

	liveIDs, err := uc.liveSourceIDs(ctx, userID, feed.SourceIDs)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(liveIDs) == 0 {
		return &domain.FeedPage{Items: nil}, nil
	}

	q := domain.FeedQuery{
		Filters: feed.FilterSettings,
		Sort:    feed.SortSettings,
		Limit:   limit,
		Offset:  offset,
	}
	q.Filters.SourceIDs = liveIDs
	q, err = uc.aggregate.prepareQuery(ctx, userID, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	page, err := uc.aggregate.fetchPage(ctx, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if uc.cache != nil {
		if encoded, err := json.Marshal(page); err == nil {
			uc.cache.Set(ctx, key, encoded, cache.TTLFeed)
		}
	}
	return page, nil
}

// validate enforces name presence and that every referenced source
// belongs to the requesting user.
func (uc *UnifiedFeedUsecase) validate(ctx context.Context, feed *domain.UnifiedFeed) error {
	if feed.UserID == "" {
		return domain.ValidationError{Detail: "userId is required"}
	}
	if strings.TrimSpace(feed.Name) == "" {
		return domain.ValidationError{Detail: "name is required"}
	}

	if len(feed.SourceIDs) == 0 {
		return nil
	}
	owned, err := uc.sources.ListByUser(ctx, feed.UserID)
	if err != nil {
		return errors.Wrap(err, "failed to load sources")
	}
	ownedSet := make(map[string]struct{}, len(owned))
	for _, s := range owned {
		ownedSet[s.ID] = struct{}{}
	}
	for _, id := range feed.SourceIDs {
		if _, ok := ownedSet[id]; !ok {
			return domain.ValidationError{Detail: "unknown source " + id}
		}
	}
	return nil
}

// liveSourceIDs intersects the preset's saved references with the
// sources that still exist.
func (uc *UnifiedFeedUsecase) liveSourceIDs(ctx context.Context, userID string, sourceIDs []string) ([]string, error) {
	owned, err := uc.sources.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load sources")
	}
	ownedSet := make(map[string]struct{}, len(owned))
	for _, s := range owned {
		ownedSet[s.ID] = struct{}{}
	}
	live := make([]string, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		if _, ok := ownedSet[id]; ok {
			live = append(live, id)
		}
	}
	return live, nil
}

func (uc *UnifiedFeedUsecase) invalidate(ctx context.Context, userID, feedID string) {
	if uc.cache == nil {
		return
	}
	uc.cache.DeletePattern(ctx, "unified:"+userID+":"+feedID+":*")
}
