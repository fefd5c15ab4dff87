package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/kinokawa/feedsync"
	"github.com/kinokawa/feedsync/internal/domain"
)

var syncTracer = otel.Tracer("sync")

// SyncUsecase drives connectors against sources: incremental fetch,
// idempotent upsert, source health transitions, and concurrent fan-out
// with per-source failure isolation.
type SyncUsecase struct {
	sources     SourceRepository
	items       ItemRepository
	registry    ConnectorRegistry
	cache       CacheStore
	cooldown    CooldownStore
	notifier    Notifier
	concurrency int
	now         func() time.Time
}

func NewSyncUsecase(
	sources SourceRepository,
	items ItemRepository,
	registry ConnectorRegistry,
	cache CacheStore,
	cooldown CooldownStore,
	notifier Notifier,
	concurrency int,
) *SyncUsecase {
	if concurrency <= 0 {
		concurrency = domain.DefaultSyncConcurrency
	}
	return &SyncUsecase{
		sources:     sources,
		items:       items,
		registry:    registry,
		cache:       cache,
		cooldown:    cooldown,
		notifier:    notifier,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// SyncOne runs one sync attempt for a source and reports a structured
// result. Failures are reported in the result, not returned; only the
// attempt's own source status is mutated.
func (uc *SyncUsecase) SyncOne(ctx context.Context, sourceID string, overrides *domain.SyncOverrides) domain.SyncResult {
	ctx, span := syncTracer.Start(ctx, "Sync.Usecase.SyncOne")
	defer span.End()

	result := domain.SyncResult{SourceID: sourceID}

	source, err := uc.sources.Get(ctx, sourceID)
	if err != nil {
		span.RecordError(err)
		result.Error = err.Error()
		return result
	}

	// Guard, not a failure path: inactive sources are skipped without
	// touching the connector.
	if source.Status != domain.SourceStatusActive && source.Status != domain.SourceStatusRateLimited {
		result.Error = "source is not active"
		return result
	}

	if uc.cooldown != nil && uc.cooldown.Active(sourceID) {
		result.Error = "rate limit cooldown in effect"
		result.RateLimitHit = true
		return result
	}

	conn, err := uc.registry.Get(source.PlatformID)
	if err != nil {
		span.RecordError(err)
		result.Error = err.Error()
		return result
	}

	creds, err := uc.freshCredentials(ctx, conn, source)
	if err != nil {
		span.RecordError(errors.Wrap(err, "credential refresh failed"))
		uc.markFailed(ctx, source, err.Error())
		result.Error = err.Error()
		return result
	}

	opts := uc.effectiveOptions(ctx, source, overrides)

	fetched, err := conn.SyncFeed(ctx, source, creds, opts)
	if err != nil {
		span.RecordError(err)
		var rateErr domain.RateLimitError
		if errors.As(err, &rateErr) {
			uc.markRateLimited(ctx, source, rateErr)
			result.Error = err.Error()
			result.RateLimitHit = true
			return result
		}
		uc.markFailed(ctx, source, err.Error())
		result.Error = err.Error()
		return result
	}

	now := uc.now()
	var freshItems []feedsync.Item
	for _, item := range fetched.Items {
		item.ID = uuid.NewString()
		if item.Status == "" {
			item.Status = feedsync.ItemStatusActive
		}
		item.SourceID = source.ID
		item.CreatedAt = now
		item.UpdatedAt = now

		created, err := uc.items.Upsert(ctx, item)
		if err != nil {
			// One malformed item never aborts the batch.
			slog.WarnContext(ctx, "item upsert failed",
				slog.String("sourceId", source.ID),
				slog.String("platformItemId", item.PlatformItemID),
				slog.String("error", err.Error()),
				slog.String("module", "sync"),
			)
			continue
		}
		result.ItemsProcessed++
		if created {
			result.NewItems++
			freshItems = append(freshItems, item)
		}
	}

	status := domain.SourceStatusActive
	if fetched.RateLimitRemaining != nil && *fetched.RateLimitRemaining == 0 {
		status = domain.SourceStatusRateLimited
		result.RateLimitHit = true
		if uc.cooldown != nil && fetched.RateLimitResetAt != nil {
			uc.cooldown.Set(source.ID, *fetched.RateLimitResetAt)
		}
	}

	if err := uc.sources.UpdateStatus(ctx, source.ID, status, ""); err != nil {
		span.RecordError(err)
	}
	if err := uc.sources.TouchSynced(ctx, source.ID, now, result.NewItems); err != nil {
		span.RecordError(err)
	}

	uc.invalidate(ctx, source)

	result.Success = true

	if len(freshItems) > 0 {
		uc.publish(ctx, feedsync.Event{
			Type:     feedsync.EventNewItems,
			UserID:   source.UserID,
			SourceID: source.ID,
			Items:    freshItems,
		})
	}
	uc.publish(ctx, feedsync.Event{
		Type:     feedsync.EventSyncCompleted,
		UserID:   source.UserID,
		SourceID: source.ID,
		Metadata: map[string]any{
			"itemsProcessed": result.ItemsProcessed,
			"newItems":       result.NewItems,
		},
	})

	return result
}

// SyncAll fans out one task per syncable source with bounded
// concurrency. It always returns one result per source; a panicking
// task yields a synthesized failure instead of taking down the batch.
func (uc *SyncUsecase) SyncAll(ctx context.Context, userID string) ([]domain.SyncResult, error) {
	ctx, span := syncTracer.Start(ctx, "Sync.Usecase.SyncAll")
	defer span.End()

	sources, err := uc.sources.ListSyncable(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to list syncable sources")
	}

	results := make([]domain.SyncResult, len(sources))
	sem := make(chan struct{}, uc.concurrency)
	var wg sync.WaitGroup

	for i, source := range sources {
		wg.Add(1)
		go func(i int, sourceID string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = domain.SyncResult{
						SourceID: sourceID,
						Error:    fmt.Sprintf("sync panicked: %v", r),
					}
				}
			}()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = uc.SyncOne(ctx, sourceID, nil)
		}(i, source.ID)
	}
	wg.Wait()

	return results, nil
}

// effectiveOptions merges caller overrides over the source's sync
// settings and fills the incremental cursor from the most recently
// stored item.
func (uc *SyncUsecase) effectiveOptions(ctx context.Context, source domain.Source, overrides *domain.SyncOverrides) feedsync.SyncOptions {

	opts := feedsync.SyncOptions{
		MaxItems:        source.SyncSettings.MaxItemsPerSync,
		IncludeReplies:  source.SyncSettings.IncludeReplies,
		IncludeRetweets: source.SyncSettings.IncludeRetweets,
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = domain.DefaultMaxItemsPerSync
	}
	if overrides != nil {
		if overrides.MaxItems != nil && *overrides.MaxItems > 0 {
			opts.MaxItems = *overrides.MaxItems
		}
		if overrides.IncludeReplies != nil {
			opts.IncludeReplies = *overrides.IncludeReplies
		}
		if overrides.IncludeRetweets != nil {
			opts.IncludeRetweets = *overrides.IncludeRetweets
		}
	}

	latest, err := uc.items.Latest(ctx, source.ID)
	if err == nil && latest != nil {
		opts.SinceID = latest.PlatformItemID
		published := latest.PublishedAt
		opts.SinceDate = &published
	}

	return opts
}

func (uc *SyncUsecase) freshCredentials(ctx context.Context, conn domain.Connector, source domain.Source) (feedsync.Credentials, error) {
	creds := source.Credentials
	if !creds.Expired(uc.now()) || creds.RefreshToken == "" {
		return creds, nil
	}

	refreshed, err := conn.RefreshToken(ctx, creds)
	if err != nil {
		return creds, err
	}
	if err := uc.sources.UpdateCredentials(ctx, source.ID, refreshed); err != nil {
		slog.WarnContext(ctx, "failed to persist refreshed credentials",
			slog.String("sourceId", source.ID),
			slog.String("error", err.Error()),
			slog.String("module", "sync"),
		)
	}
	return refreshed, nil
}

func (uc *SyncUsecase) markFailed(ctx context.Context, source domain.Source, message string) {
	if err := uc.sources.UpdateStatus(ctx, source.ID, domain.SourceStatusError, message); err != nil {
		slog.ErrorContext(ctx, "failed to record source error",
			slog.String("sourceId", source.ID),
			slog.String("error", err.Error()),
			slog.String("module", "sync"),
		)
	}
	// Status changes feed the cached per-source summaries too.
	uc.invalidate(ctx, source)
	uc.publish(ctx, feedsync.Event{
		Type:     feedsync.EventSyncFailed,
		UserID:   source.UserID,
		SourceID: source.ID,
		Metadata: map[string]any{"error": message},
	})
}

func (uc *SyncUsecase) markRateLimited(ctx context.Context, source domain.Source, rateErr domain.RateLimitError) {
	if err := uc.sources.UpdateStatus(ctx, source.ID, domain.SourceStatusRateLimited, rateErr.Error()); err != nil {
		slog.ErrorContext(ctx, "failed to record rate limit",
			slog.String("sourceId", source.ID),
			slog.String("error", err.Error()),
			slog.String("module", "sync"),
		)
	}
	if uc.cooldown != nil && rateErr.ResetAt != nil {
		uc.cooldown.Set(source.ID, *rateErr.ResetAt)
	}
	uc.invalidate(ctx, source)
}

func (uc *SyncUsecase) invalidate(ctx context.Context, source domain.Source) {
	if uc.cache == nil {
		return
	}
	uc.cache.DeletePattern(ctx, userCachePattern(source.UserID))
	uc.cache.DeletePattern(ctx, sourceCachePattern(source.ID))
}

func (uc *SyncUsecase) publish(ctx context.Context, event feedsync.Event) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "failed to publish event",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
			slog.String("module", "sync"),
		)
	}
}
