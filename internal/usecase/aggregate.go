package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/kinokawa/feedsync"
	"github.com/kinokawa/feedsync/internal/domain"
	"github.com/kinokawa/feedsync/internal/infra/cache"
)

var aggregateTracer = otel.Tracer("aggregate")

// Personalization weights. Heuristic policy constants, not derived
// from ground truth; tune freely.
const (
	recencyBonusMax       = 100.0
	likeWeight            = 0.1
	shareWeight           = 0.2
	commentWeight         = 0.15
	preferredTypeBonus    = 50.0
	preferredKeywordBonus = 25.0

	// How many candidates the personalized re-ranker considers.
	personalizedCandidates = 200
)

// AggregateUsecase composes Item Store queries into the read-side
// views: plain feed, search, trending, personalized, and metrics.
type AggregateUsecase struct {
	items   ItemRepository
	sources SourceRepository
	cache   CacheStore
	prefs   PreferencePolicy
	now     func() time.Time
}

func NewAggregateUsecase(
	items ItemRepository,
	sources SourceRepository,
	cacheStore CacheStore,
	prefs PreferencePolicy,
) *AggregateUsecase {
	if prefs == nil {
		prefs = StaticPreferences{}
	}
	return &AggregateUsecase{
		items:   items,
		sources: sources,
		cache:   cacheStore,
		prefs:   prefs,
		now:     time.Now,
	}
}

// GetFeed returns one page of the user's aggregated feed. The source
// set defaults to all of the user's active sources; item status is
// always forced to active.
func (uc *AggregateUsecase) GetFeed(ctx context.Context, userID string, q domain.FeedQuery) (*domain.FeedPage, error) {
	ctx, span := aggregateTracer.Start(ctx, "Aggregate.Usecase.GetFeed")
	defer span.End()

	q, err := uc.prepareQuery(ctx, userID, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(q.Filters.SourceIDs) == 0 {
		return &domain.FeedPage{Items: []feedsync.Item{}}, nil
	}

	key := feedCacheKey(userID, q)
	if page, ok := uc.cachedPage(ctx, key); ok {
		return page, nil
	}

	page, err := uc.fetchPage(ctx, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	summaries, err := uc.sourceSummaries(ctx, userID, q.Filters.SourceIDs)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	page.Sources = summaries

	uc.storePage(ctx, key, page, cache.TTLFeed)
	return page, nil
}

// SearchFeed is the aggregated feed restricted to one keyword. An
// empty or whitespace query is a caller error.
func (uc *AggregateUsecase) SearchFeed(ctx context.Context, userID, query string, q domain.FeedQuery) (*domain.FeedPage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ValidationError{Detail: "search query must not be empty"}
	}
	q.Filters.Keywords = []string{query}
	return uc.GetFeed(ctx, userID, q)
}

// GetTrending restricts the feed to a fixed recent window and ranks
// by likes. Timeframes map to fixed hour counts; anything else is
// rejected.
func (uc *AggregateUsecase) GetTrending(ctx context.Context, userID, timeframe string, limit, offset int) (*domain.FeedPage, error) {
	ctx, span := aggregateTracer.Start(ctx, "Aggregate.Usecase.GetTrending")
	defer span.End()

	hours, ok := domain.TrendingTimeframes[timeframe]
	if !ok {
		return nil, domain.ValidationError{Detail: "timeframe must be one of 1h, 6h, 24h, 7d"}
	}

	key := trendingCacheKey(userID, timeframe, limit, offset)
	if page, found := uc.cachedPage(ctx, key); found {
		return page, nil
	}

	now := uc.now()
	from := now.Add(-time.Duration(hours) * time.Hour)
	minLikes := int64(1)

	q := domain.FeedQuery{
		Filters: domain.ItemFilters{
			FromDate: &from,
			ToDate:   &now,
			MinLikes: &minLikes,
		},
		Sort:   domain.SortSettings{Field: domain.SortByLikes, Order: domain.SortDesc},
		Limit:  limit,
		Offset: offset,
	}
	q, err := uc.prepareQuery(ctx, userID, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(q.Filters.SourceIDs) == 0 {
		return &domain.FeedPage{Items: []feedsync.Item{}}, nil
	}

	page, err := uc.fetchPage(ctx, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	uc.storePage(ctx, key, page, cache.TTLTrending)
	return page, nil
}

// GetPersonalized re-ranks recent items with the user's preference
// weights. Scoring happens in the engine, not the store: it is
// per-user and not expressible as a single sort key.
func (uc *AggregateUsecase) GetPersonalized(ctx context.Context, userID string, limit, offset int) (*domain.FeedPage, error) {
	ctx, span := aggregateTracer.Start(ctx, "Aggregate.Usecase.GetPersonalized")
	defer span.End()

	key := personalizedCacheKey(userID, limit, offset)
	if page, found := uc.cachedPage(ctx, key); found {
		return page, nil
	}

	prefs, err := uc.prefs.PreferencesFor(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to load preferences")
	}

	q := domain.FeedQuery{
		Sort:  domain.SortSettings{Field: domain.SortByPublishedAt, Order: domain.SortDesc},
		Limit: personalizedCandidates,
	}
	q, err = uc.prepareQuery(ctx, userID, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(q.Filters.SourceIDs) == 0 {
		return &domain.FeedPage{Items: []feedsync.Item{}}, nil
	}

	candidates, total, err := uc.items.FindWithFilters(ctx, q)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to fetch candidates")
	}

	ranked := uc.rank(candidates, prefs)

	if offset > len(ranked) {
		offset = len(ranked)
	}
	end := offset + limit
	if end > len(ranked) {
		end = len(ranked)
	}

	page := &domain.FeedPage{
		Items:      ranked[offset:end],
		TotalCount: total,
		HasMore:    end < len(ranked),
	}
	if page.HasMore {
		page.NextOffset = end
	}

	uc.storePage(ctx, key, page, cache.TTLPersonalized)
	return page, nil
}

// GetMetrics summarizes the user's active item set.
func (uc *AggregateUsecase) GetMetrics(ctx context.Context, userID string) (*domain.FeedMetrics, error) {
	ctx, span := aggregateTracer.Start(ctx, "Aggregate.Usecase.GetMetrics")
	defer span.End()

	sourceIDs, err := uc.sources.ListActiveIDs(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to list sources")
	}

	metrics := domain.FeedMetrics{
		ItemsByType:     map[string]int64{},
		ItemsByPlatform: map[string]int64{},
	}
	if len(sourceIDs) > 0 {
		metrics, err = uc.items.Metrics(ctx, sourceIDs)
		if err != nil {
			span.RecordError(err)
			return nil, errors.Wrap(err, "failed to aggregate metrics")
		}
	}
	metrics.ActiveSources = len(sourceIDs)
	return &metrics, nil
}

// score is the deterministic personalization formula: a recency bonus
// decaying linearly to zero over ~100h plus weighted engagement and
// preference bonuses.
func (uc *AggregateUsecase) score(item feedsync.Item, prefs domain.Preferences) float64 {

	hoursSince := uc.now().Sub(item.PublishedAt).Hours()
	recency := recencyBonusMax - hoursSince
	if recency < 0 {
		recency = 0
	}

	score := recency +
		float64(item.Likes)*likeWeight +
		float64(item.Shares)*shareWeight +
		float64(item.Comments)*commentWeight

	for _, preferred := range prefs.PreferredTypes {
		if item.Type == preferred {
			score += preferredTypeBonus
			break
		}
	}

	lowered := strings.ToLower(item.Text + " " + item.Title)
	for _, keyword := range prefs.PreferredKeywords {
		if keyword != "" && strings.Contains(lowered, strings.ToLower(keyword)) {
			score += preferredKeywordBonus
			break
		}
	}

	return score
}

func (uc *AggregateUsecase) rank(items []feedsync.Item, prefs domain.Preferences) []feedsync.Item {
	type scored struct {
		item  feedsync.Item
		score float64
	}
	ranked := make([]scored, 0, len(items))
	for _, item := range items {
		ranked = append(ranked, scored{item: item, score: uc.score(item, prefs)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].item.ID < ranked[j].item.ID
	})
	out := make([]feedsync.Item, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.item)
	}
	return out
}

// prepareQuery validates pagination, forces active status, and
// resolves the effective source set.
func (uc *AggregateUsecase) prepareQuery(ctx context.Context, userID string, q domain.FeedQuery) (domain.FeedQuery, error) {

	if q.Limit <= 0 {
		q.Limit = domain.DefaultLimit
	}
	if q.Limit > domain.MaxLimit {
		q.Limit = domain.MaxLimit
	}
	if q.Offset < 0 {
		return q, domain.ValidationError{Detail: "offset must not be negative"}
	}
	if q.Sort.Field == "" {
		q.Sort.Field = domain.SortByPublishedAt
	}
	if q.Sort.Order == "" {
		q.Sort.Order = domain.SortDesc
	}

	q.Filters.Status = feedsync.ItemStatusActive

	if len(q.Filters.SourceIDs) == 0 {
		ids, err := uc.sources.ListActiveIDs(ctx, userID)
		if err != nil {
			return q, errors.Wrap(err, "failed to resolve source set")
		}
		q.Filters.SourceIDs = ids
	}

	return q, nil
}

func (uc *AggregateUsecase) fetchPage(ctx context.Context, q domain.FeedQuery) (*domain.FeedPage, error) {

	items, total, err := uc.items.FindWithFilters(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query items")
	}

	page := &domain.FeedPage{
		Items:      items,
		TotalCount: total,
		HasMore:    int64(q.Offset+len(items)) < total,
	}
	if page.HasMore {
		page.NextOffset = q.Offset + len(items)
	}
	return page, nil
}

func (uc *AggregateUsecase) sourceSummaries(ctx context.Context, userID string, sourceIDs []string) ([]domain.SourceSummary, error) {

	sources, err := uc.sources.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load sources")
	}

	counts, err := uc.items.CountBySources(ctx, sourceIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count items")
	}

	wanted := make(map[string]struct{}, len(sourceIDs))
	for _, id := range sourceIDs {
		wanted[id] = struct{}{}
	}

	summaries := make([]domain.SourceSummary, 0, len(sourceIDs))
	for _, source := range sources {
		if _, ok := wanted[source.ID]; !ok {
			continue
		}
		summaries = append(summaries, domain.SourceSummary{
			SourceID:   source.ID,
			Name:       source.Name,
			PlatformID: source.PlatformID,
			ItemCount:  counts[source.ID],
			LastSyncAt: source.LastSyncAt,
		})
	}
	return summaries, nil
}

func (uc *AggregateUsecase) cachedPage(ctx context.Context, key string) (*domain.FeedPage, bool) {
	if uc.cache == nil {
		return nil, false
	}
	raw, found := uc.cache.Get(ctx, key)
	if !found {
		return nil, false
	}
	var page domain.FeedPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, false
	}
	return &page, true
}

func (uc *AggregateUsecase) storePage(ctx context.Context, key string, page *domain.FeedPage, ttl time.Duration) {
	if uc.cache == nil {
		return
	}
	encoded, err := json.Marshal(page)
	if err != nil {
		slog.WarnContext(ctx, "failed to encode page for cache",
			slog.String("key", key),
			slog.String("error", err.Error()),
			slog.String("module", "aggregate"),
		)
		return
	}
	uc.cache.Set(ctx, key, encoded, ttl)
}
