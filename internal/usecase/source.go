package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/kinokawa/feedsync"
	"github.com/kinokawa/feedsync/internal/domain"
)

var sourceTracer = otel.Tracer("source")

// SourceUsecase manages source lifecycle: registration against a live
// connector, updates, and teardown with item soft-deletion.
type SourceUsecase struct {
	sources  SourceRepository
	items    ItemRepository
	registry ConnectorRegistry
	cache    CacheStore
	notifier Notifier
	now      func() time.Time
}

func NewSourceUsecase(
	sources SourceRepository,
	items ItemRepository,
	registry ConnectorRegistry,
	cacheStore CacheStore,
	notifier Notifier,
) *SourceUsecase {
	return &SourceUsecase{
		sources:  sources,
		items:    items,
		registry: registry,
		cache:    cacheStore,
		notifier: notifier,
		now:      time.Now,
	}
}

// Create registers a new source after validating its credentials
// against the live platform. Account identity fields left blank by the
// caller are filled from the platform's own answer.
func (uc *SourceUsecase) Create(ctx context.Context, source domain.Source) (domain.Source, error) {
	ctx, span := sourceTracer.Start(ctx, "Source.Usecase.Create")
	defer span.End()

	if source.UserID == "" {
		return domain.Source{}, domain.ValidationError{Detail: "userId is required"}
	}
	if strings.TrimSpace(source.AccountHandle) == "" {
		return domain.Source{}, domain.ValidationError{Detail: "accountHandle is required"}
	}

	conn, err := uc.registry.Get(source.PlatformID)
	if err != nil {
		span.RecordError(err)
		return domain.Source{}, err
	}

	if err := conn.ValidateCredentials(ctx, source.Credentials); err != nil {
		span.RecordError(err)
		return domain.Source{}, err
	}

	if info, err := conn.GetUserInfo(ctx, source.Credentials, source.AccountHandle); err == nil {
		if source.AccountID == "" {
			source.AccountID = info.AccountID
		}
		if source.Name == "" {
			source.Name = info.DisplayName
		}
	} else {
		slog.WarnContext(ctx, "could not resolve account info",
			slog.String("platformId", source.PlatformID),
			slog.String("handle", source.AccountHandle),
			slog.String("error", err.Error()),
			slog.String("module", "source"),
		)
	}
	if source.Name == "" {
		source.Name = source.AccountHandle
	}

	now := uc.now()
	source.ID = uuid.NewString()
	source.Status = domain.SourceStatusActive
	source.CreatedAt = now
	source.UpdatedAt = now
	if source.SyncSettings.IntervalMinutes <= 0 {
		source.SyncSettings.IntervalMinutes = domain.DefaultIntervalMinutes
	}
	if source.SyncSettings.MaxItemsPerSync <= 0 {
		source.SyncSettings.MaxItemsPerSync = domain.DefaultMaxItemsPerSync
	}

	if err := uc.sources.Create(ctx, source); err != nil {
		span.RecordError(err)
		return domain.Source{}, errors.Wrap(err, "failed to persist source")
	}

	uc.notify(ctx, source, "created")
	return source, nil
}

// Get returns a source only to its owner.
func (uc *SourceUsecase) Get(ctx context.Context, userID, sourceID string) (domain.Source, error) {
	ctx, span := sourceTracer.Start(ctx, "Source.Usecase.Get")
	defer span.End()

	source, err := uc.sources.Get(ctx, sourceID)
	if err != nil {
		span.RecordError(err)
		return domain.Source{}, err
	}
	if source.UserID != userID {
		return domain.Source{}, domain.NotFoundError{Resource: "source " + sourceID}
	}
	return source, nil
}

func (uc *SourceUsecase) List(ctx context.Context, userID string) ([]domain.Source, error) {
	ctx, span := sourceTracer.Start(ctx, "Source.Usecase.List")
	defer span.End()

	sources, err := uc.sources.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to list sources")
	}
	return sources, nil
}

// Update applies mutable fields. Platform and account identity are
// immutable after creation; replacing the account means a new source.
func (uc *SourceUsecase) Update(ctx context.Context, userID string, updated domain.Source) (domain.Source, error) {
	ctx, span := sourceTracer.Start(ctx, "Source.Usecase.Update")
	defer span.End()

	current, err := uc.Get(ctx, userID, updated.ID)
	if err != nil {
		return domain.Source{}, err
	}

	if updated.Name != "" {
		current.Name = updated.Name
	}
	if updated.Status != "" {
		switch updated.Status {
		case domain.SourceStatusActive, domain.SourceStatusInactive:
			current.Status = updated.Status
		default:
			return domain.Source{}, domain.ValidationError{Detail: "status must be active or inactive"}
		}
	}
	current.SyncSettings = updated.SyncSettings
	if current.SyncSettings.IntervalMinutes <= 0 {
		current.SyncSettings.IntervalMinutes = domain.DefaultIntervalMinutes
	}
	if current.SyncSettings.MaxItemsPerSync <= 0 {
		current.SyncSettings.MaxItemsPerSync = domain.DefaultMaxItemsPerSync
	}
	current.UpdatedAt = uc.now()

	if err := uc.sources.Update(ctx, current); err != nil {
		span.RecordError(err)
		return domain.Source{}, errors.Wrap(err, "failed to update source")
	}

	uc.invalidate(ctx, current)
	uc.notify(ctx, current, "updated")
	return current, nil
}

// UpdateCredentials swaps a source's credential bundle after the
// connector accepts it.
func (uc *SourceUsecase) UpdateCredentials(ctx context.Context, userID, sourceID string, creds feedsync.Credentials) error {
	ctx, span := sourceTracer.Start(ctx, "Source.Usecase.UpdateCredentials")
	defer span.End()

	source, err := uc.Get(ctx, userID, sourceID)
	if err != nil {
		return err
	}

	conn, err := uc.registry.Get(source.PlatformID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := conn.ValidateCredentials(ctx, creds); err != nil {
		span.RecordError(err)
		return err
	}

	if err := uc.sources.UpdateCredentials(ctx, sourceID, creds); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to persist credentials")
	}

	// A credential swap clears a stuck error or rate-limit state.
	if source.Status == domain.SourceStatusError || source.Status == domain.SourceStatusRateLimited {
		if err := uc.sources.UpdateStatus(ctx, sourceID, domain.SourceStatusActive, ""); err != nil {
			span.RecordError(err)
		}
	}
	return nil
}

// Delete removes a source and soft-deletes its items so they drop out
// of every aggregated view immediately.
func (uc *SourceUsecase) Delete(ctx context.Context, userID, sourceID string) error {
	ctx, span := sourceTracer.Start(ctx, "Source.Usecase.Delete")
	defer span.End()

	source, err := uc.Get(ctx, userID, sourceID)
	if err != nil {
		return err
	}

	if err := uc.items.MarkStatusBySource(ctx, sourceID, feedsync.ItemStatusDeleted); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to mark items deleted")
	}
	if err := uc.sources.Delete(ctx, sourceID); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to delete source")
	}

	uc.invalidate(ctx, source)
	uc.notify(ctx, source, "deleted")
	return nil
}

// RateLimit reports the platform quota left for a source's credentials.
func (uc *SourceUsecase) RateLimit(ctx context.Context, userID, sourceID string) (feedsync.RateLimitStatus, error) {
	ctx, span := sourceTracer.Start(ctx, "Source.Usecase.RateLimit")
	defer span.End()

	source, err := uc.Get(ctx, userID, sourceID)
	if err != nil {
		return feedsync.RateLimitStatus{}, err
	}
	conn, err := uc.registry.Get(source.PlatformID)
	if err != nil {
		span.RecordError(err)
		return feedsync.RateLimitStatus{}, err
	}
	status, err := conn.GetRateLimitStatus(ctx, source.Credentials)
	if err != nil {
		span.RecordError(err)
		return feedsync.RateLimitStatus{}, errors.Wrap(err, "failed to query rate limit")
	}
	return status, nil
}

func (uc *SourceUsecase) invalidate(ctx context.Context, source domain.Source) {
	if uc.cache == nil {
		return
	}
	uc.cache.DeletePattern(ctx, userCachePattern(source.UserID))
	uc.cache.DeletePattern(ctx, sourceCachePattern(source.ID))
}

func (uc *SourceUsecase) notify(ctx context.Context, source domain.Source, action string) {
	if uc.notifier == nil {
		return
	}
	err := uc.notifier.Publish(ctx, feedsync.Event{
		Type:     feedsync.EventSourceUpdated,
		UserID:   source.UserID,
		SourceID: source.ID,
		Metadata: map[string]any{"action": action},
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to publish source event",
			slog.String("sourceId", source.ID),
			slog.String("error", err.Error()),
			slog.String("module", "source"),
		)
	}
}
