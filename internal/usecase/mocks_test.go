package usecase

import (
	"context"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/kinokawa/feedsync"
	"github.com/kinokawa/feedsync/internal/domain"
)

type mockItemRepo struct {
	items     map[string]feedsync.Item
	findCalls int
	upsertErr map[string]error
}

func newMockItemRepo() *mockItemRepo {
	return &mockItemRepo{
		items:     make(map[string]feedsync.Item),
		upsertErr: make(map[string]error),
	}
}

func itemKey(sourceID, platformItemID string) string {
	return sourceID + "/" + platformItemID
}

func (m *mockItemRepo) Upsert(ctx context.Context, item feedsync.Item) (bool, error) {
	if err := m.upsertErr[item.PlatformItemID]; err != nil {
		return false, err
	}
	key := itemKey(item.SourceID, item.PlatformItemID)
	if existing, ok := m.items[key]; ok {
		existing.Likes = item.Likes
		existing.Shares = item.Shares
		existing.Comments = item.Comments
		existing.Views = item.Views
		m.items[key] = existing
		return false, nil
	}
	m.items[key] = item
	return true, nil
}

func (m *mockItemRepo) FindWithFilters(ctx context.Context, q domain.FeedQuery) ([]feedsync.Item, int64, error) {
	m.findCalls++

	var matched []feedsync.Item
	for _, item := range m.items {
		if !matchesFilters(item, q.Filters) {
			continue
		}
		matched = append(matched, item)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		var less bool
		switch q.Sort.Field {
		case domain.SortByLikes:
			less = matched[i].Likes < matched[j].Likes
		default:
			less = matched[i].PublishedAt.Before(matched[j].PublishedAt)
		}
		if q.Sort.Order == domain.SortAsc {
			return less
		}
		return !less
	})

	total := int64(len(matched))
	if q.Offset >= len(matched) {
		return nil, total, nil
	}
	end := q.Offset + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[q.Offset:end], total, nil
}

func matchesFilters(item feedsync.Item, f domain.ItemFilters) bool {
	if len(f.SourceIDs) > 0 {
		found := false
		for _, id := range f.SourceIDs {
			if item.SourceID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Status != "" && item.Status != f.Status {
		return false
	}
	if len(f.ItemTypes) > 0 {
		found := false
		for _, t := range f.ItemTypes {
			if item.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	text := strings.ToLower(item.Text + " " + item.Title)
	if len(f.Keywords) > 0 {
		found := false
		for _, kw := range f.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, kw := range f.ExcludeKeywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return false
		}
	}
	if f.FromDate != nil && item.PublishedAt.Before(*f.FromDate) {
		return false
	}
	if f.ToDate != nil && item.PublishedAt.After(*f.ToDate) {
		return false
	}
	if f.MinLikes != nil && item.Likes < *f.MinLikes {
		return false
	}
	if f.MinShares != nil && item.Shares < *f.MinShares {
		return false
	}
	return true
}

func (m *mockItemRepo) Latest(ctx context.Context, sourceID string) (*feedsync.Item, error) {
	var latest *feedsync.Item
	for key := range m.items {
		item := m.items[key]
		if item.SourceID != sourceID {
			continue
		}
		if latest == nil || item.PublishedAt.After(latest.PublishedAt) {
			latest = &item
		}
	}
	if latest == nil {
		return nil, domain.NotFoundError{Resource: "item"}
	}
	return latest, nil
}

func (m *mockItemRepo) CountBySources(ctx context.Context, sourceIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, item := range m.items {
		counts[item.SourceID]++
	}
	return counts, nil
}

func (m *mockItemRepo) MarkStatusBySource(ctx context.Context, sourceID string, status feedsync.ItemStatus) error {
	for key, item := range m.items {
		if item.SourceID == sourceID {
			item.Status = status
			m.items[key] = item
		}
	}
	return nil
}

func (m *mockItemRepo) Metrics(ctx context.Context, sourceIDs []string) (domain.FeedMetrics, error) {
	metrics := domain.FeedMetrics{
		ItemsByType:     make(map[string]int64),
		ItemsByPlatform: make(map[string]int64),
	}
	for _, item := range m.items {
		metrics.TotalItems++
		metrics.ItemsByType[string(item.Type)]++
	}
	return metrics, nil
}

type mockSourceRepo struct {
	sources map[string]domain.Source
	updated map[string]domain.SourceStatus
	creds   map[string]feedsync.Credentials
}

func newMockSourceRepo(sources ...domain.Source) *mockSourceRepo {
	m := &mockSourceRepo{
		sources: make(map[string]domain.Source),
		updated: make(map[string]domain.SourceStatus),
		creds:   make(map[string]feedsync.Credentials),
	}
	for _, s := range sources {
		m.sources[s.ID] = s
	}
	return m
}

func (m *mockSourceRepo) Create(ctx context.Context, source domain.Source) error {
	m.sources[source.ID] = source
	return nil
}

func (m *mockSourceRepo) Get(ctx context.Context, id string) (domain.Source, error) {
	source, ok := m.sources[id]
	if !ok {
		return domain.Source{}, domain.NotFoundError{Resource: "source"}
	}
	return source, nil
}

func (m *mockSourceRepo) ListByUser(ctx context.Context, userID string) ([]domain.Source, error) {
	return m.list(func(s domain.Source) bool { return s.UserID == userID }), nil
}

func (m *mockSourceRepo) ListSyncable(ctx context.Context, userID string) ([]domain.Source, error) {
	return m.list(func(s domain.Source) bool {
		if userID != "" && s.UserID != userID {
			return false
		}
		return s.Status == domain.SourceStatusActive && s.SyncSettings.Enabled
	}), nil
}

func (m *mockSourceRepo) ListActiveIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	for _, s := range m.list(func(s domain.Source) bool {
		return s.UserID == userID && s.Status == domain.SourceStatusActive
	}) {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

func (m *mockSourceRepo) list(keep func(domain.Source) bool) []domain.Source {
	var out []domain.Source
	for _, s := range m.sources {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *mockSourceRepo) Update(ctx context.Context, source domain.Source) error {
	if _, ok := m.sources[source.ID]; !ok {
		return domain.NotFoundError{Resource: "source"}
	}
	m.sources[source.ID] = source
	return nil
}

func (m *mockSourceRepo) UpdateStatus(ctx context.Context, id string, status domain.SourceStatus, lastError string) error {
	source := m.sources[id]
	source.Status = status
	source.LastError = lastError
	m.sources[id] = source
	m.updated[id] = status
	return nil
}

func (m *mockSourceRepo) TouchSynced(ctx context.Context, id string, syncedAt time.Time, newItems int) error {
	source := m.sources[id]
	source.LastSyncAt = &syncedAt
	source.TotalItems += int64(newItems)
	m.sources[id] = source
	return nil
}

func (m *mockSourceRepo) UpdateCredentials(ctx context.Context, id string, creds feedsync.Credentials) error {
	source := m.sources[id]
	source.Credentials = creds
	m.sources[id] = source
	m.creds[id] = creds
	return nil
}

func (m *mockSourceRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.sources[id]; !ok {
		return domain.NotFoundError{Resource: "source"}
	}
	delete(m.sources, id)
	return nil
}

type mockFeedRepo struct {
	feeds   map[string]domain.UnifiedFeed
	touched []string
}

func newMockFeedRepo() *mockFeedRepo {
	return &mockFeedRepo{feeds: make(map[string]domain.UnifiedFeed)}
}

func (m *mockFeedRepo) Save(ctx context.Context, feed domain.UnifiedFeed) error {
	if feed.IsDefault {
		for id, other := range m.feeds {
			if other.UserID == feed.UserID && id != feed.ID {
				other.IsDefault = false
				m.feeds[id] = other
			}
		}
	}
	m.feeds[feed.ID] = feed
	return nil
}

func (m *mockFeedRepo) Get(ctx context.Context, id string) (domain.UnifiedFeed, error) {
	feed, ok := m.feeds[id]
	if !ok {
		return domain.UnifiedFeed{}, domain.NotFoundError{Resource: "feed"}
	}
	return feed, nil
}

func (m *mockFeedRepo) GetDefault(ctx context.Context, userID string) (domain.UnifiedFeed, error) {
	for _, feed := range m.feeds {
		if feed.UserID == userID && feed.IsDefault {
			return feed, nil
		}
	}
	return domain.UnifiedFeed{}, domain.NotFoundError{Resource: "feed"}
}

func (m *mockFeedRepo) ListByUser(ctx context.Context, userID string) ([]domain.UnifiedFeed, error) {
	var out []domain.UnifiedFeed
	for _, feed := range m.feeds {
		if feed.UserID == userID {
			out = append(out, feed)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockFeedRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.feeds[id]; !ok {
		return domain.NotFoundError{Resource: "feed"}
	}
	delete(m.feeds, id)
	return nil
}

func (m *mockFeedRepo) Touch(ctx context.Context, id string) error {
	m.touched = append(m.touched, id)
	return nil
}

type mockConnector struct {
	platformID  string
	result      feedsync.FetchResult
	syncErr     error
	lastOptions feedsync.SyncOptions
	validateErr error
	userInfo    feedsync.UserInfo
	refreshed   feedsync.Credentials
	refreshErr  error
}

func (m *mockConnector) PlatformID() string { return m.platformID }

func (m *mockConnector) ValidateCredentials(ctx context.Context, creds feedsync.Credentials) error {
	return m.validateErr
}

func (m *mockConnector) RefreshToken(ctx context.Context, creds feedsync.Credentials) (feedsync.Credentials, error) {
	if m.refreshErr != nil {
		return feedsync.Credentials{}, m.refreshErr
	}
	return m.refreshed, nil
}

func (m *mockConnector) GetUserInfo(ctx context.Context, creds feedsync.Credentials, handle string) (feedsync.UserInfo, error) {
	return m.userInfo, nil
}

func (m *mockConnector) SyncFeed(ctx context.Context, source domain.Source, creds feedsync.Credentials, opts feedsync.SyncOptions) (feedsync.FetchResult, error) {
	m.lastOptions = opts
	if m.syncErr != nil {
		return feedsync.FetchResult{}, m.syncErr
	}
	return m.result, nil
}

func (m *mockConnector) GetRateLimitStatus(ctx context.Context, creds feedsync.Credentials) (feedsync.RateLimitStatus, error) {
	return feedsync.RateLimitStatus{Remaining: 100, Limit: 100}, nil
}

type mockRegistry struct {
	connectors map[string]domain.Connector
}

func newMockRegistry(connectors ...domain.Connector) *mockRegistry {
	m := &mockRegistry{connectors: make(map[string]domain.Connector)}
	for _, c := range connectors {
		m.connectors[c.PlatformID()] = c
	}
	return m
}

func (m *mockRegistry) Get(platformID string) (domain.Connector, error) {
	c, ok := m.connectors[platformID]
	if !ok {
		return nil, domain.ConfigurationError{Detail: "no connector registered for platform " + platformID}
	}
	return c, nil
}

func (m *mockRegistry) List() []domain.Connector {
	var out []domain.Connector
	for _, c := range m.connectors {
		out = append(out, c)
	}
	return out
}

type mockCache struct {
	entries  map[string][]byte
	deleted  []string
	setCalls int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, ok := m.entries[key]
	return value, ok
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	m.entries[key] = value
	m.setCalls++
}

func (m *mockCache) DeletePattern(ctx context.Context, pattern string) {
	m.deleted = append(m.deleted, pattern)
	for key := range m.entries {
		if matched, _ := path.Match(pattern, key); matched {
			delete(m.entries, key)
		}
	}
}

type mockCooldown struct {
	until map[string]time.Time
	now   time.Time
}

func newMockCooldown(now time.Time) *mockCooldown {
	return &mockCooldown{until: make(map[string]time.Time), now: now}
}

func (m *mockCooldown) Set(sourceID string, until time.Time) {
	m.until[sourceID] = until
}

func (m *mockCooldown) Active(sourceID string) bool {
	until, ok := m.until[sourceID]
	return ok && m.now.Before(until)
}

type mockNotifier struct {
	events []feedsync.Event
}

func (m *mockNotifier) Publish(ctx context.Context, event feedsync.Event) error {
	m.events = append(m.events, event)
	return nil
}

func (m *mockNotifier) eventsOfType(t feedsync.EventType) []feedsync.Event {
	var out []feedsync.Event
	for _, e := range m.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
