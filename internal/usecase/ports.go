package usecase

import (
	"context"
	"time"

	"github.com/kinokawa/feedsync"
	"github.com/kinokawa/feedsync/internal/domain"
)

// ItemRepository defines storage operations for canonical items.
type ItemRepository interface {
	Upsert(ctx context.Context, item feedsync.Item) (created bool, err error)
	FindWithFilters(ctx context.Context, q domain.FeedQuery) ([]feedsync.Item, int64, error)
	Latest(ctx context.Context, sourceID string) (*feedsync.Item, error)
	CountBySources(ctx context.Context, sourceIDs []string) (map[string]int64, error)
	MarkStatusBySource(ctx context.Context, sourceID string, status feedsync.ItemStatus) error
	Metrics(ctx context.Context, sourceIDs []string) (domain.FeedMetrics, error)
}

// SourceRepository defines persistence/lookup for sources.
type SourceRepository interface {
	Create(ctx context.Context, source domain.Source) error
	Get(ctx context.Context, id string) (domain.Source, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Source, error)
	ListSyncable(ctx context.Context, userID string) ([]domain.Source, error)
	ListActiveIDs(ctx context.Context, userID string) ([]string, error)
	Update(ctx context.Context, source domain.Source) error
	UpdateStatus(ctx context.Context, id string, status domain.SourceStatus, lastError string) error
	TouchSynced(ctx context.Context, id string, syncedAt time.Time, newItems int) error
	UpdateCredentials(ctx context.Context, id string, creds feedsync.Credentials) error
	Delete(ctx context.Context, id string) error
}

// UnifiedFeedRepository defines persistence for saved feed presets.
type UnifiedFeedRepository interface {
	Save(ctx context.Context, feed domain.UnifiedFeed) error
	Get(ctx context.Context, id string) (domain.UnifiedFeed, error)
	GetDefault(ctx context.Context, userID string) (domain.UnifiedFeed, error)
	ListByUser(ctx context.Context, userID string) ([]domain.UnifiedFeed, error)
	Delete(ctx context.Context, id string) error
	Touch(ctx context.Context, id string) error
}

// ConnectorRegistry resolves a connector for a platform id.
type ConnectorRegistry interface {
	Get(platformID string) (domain.Connector, error)
	List() []domain.Connector
}

// CacheStore memoizes aggregated views. Misses and backend failures
// both surface as found=false; the read path never blocks on them.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	DeletePattern(ctx context.Context, pattern string)
}

// CooldownStore tracks rate-limit cooldowns per source.
type CooldownStore interface {
	Set(sourceID string, until time.Time)
	Active(sourceID string) bool
}

// Notifier hands events to the notification collaborator. Delivery is
// out of scope; publish failures are logged, never propagated.
type Notifier interface {
	Publish(ctx context.Context, event feedsync.Event) error
}

// PreferencePolicy supplies per-user ranking preferences. The default
// implementation returns static defaults; learned preferences can be
// injected without touching the engine.
type PreferencePolicy interface {
	PreferencesFor(ctx context.Context, userID string) (domain.Preferences, error)
}

// StaticPreferences is the default PreferencePolicy.
type StaticPreferences struct {
	Preferences domain.Preferences
}

func (p StaticPreferences) PreferencesFor(ctx context.Context, userID string) (domain.Preferences, error) {
	return p.Preferences, nil
}
