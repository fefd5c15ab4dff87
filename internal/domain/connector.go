package domain

import (
	"context"

	"github.com/kinokawa/feedsync"
)

// Connector adapts one external platform to the canonical item model.
// SyncFeed must request at most opts.MaxItems, honor the since cursor,
// and surface rate-limit state as RateLimitError instead of silently
// truncating. Implementations live in internal/infra/connector.
type Connector interface {
	PlatformID() string
	ValidateCredentials(ctx context.Context, creds feedsync.Credentials) error
	RefreshToken(ctx context.Context, creds feedsync.Credentials) (feedsync.Credentials, error)
	GetUserInfo(ctx context.Context, creds feedsync.Credentials, handle string) (feedsync.UserInfo, error)
	SyncFeed(ctx context.Context, source Source, creds feedsync.Credentials, opts feedsync.SyncOptions) (feedsync.FetchResult, error)
	GetRateLimitStatus(ctx context.Context, creds feedsync.Credentials) (feedsync.RateLimitStatus, error)
}
