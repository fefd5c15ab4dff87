package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kinokawa/feedsync"
	"github.com/kinokawa/feedsync/internal/domain"
	"github.com/kinokawa/feedsync/internal/present/rest/middleware"
	"github.com/kinokawa/feedsync/internal/usecase"
)

// --- mocks ---

type stubItemRepo struct {
	items []feedsync.Item
}

func (m *stubItemRepo) Upsert(ctx context.Context, item feedsync.Item) (bool, error) {
	return true, nil
}

func (m *stubItemRepo) FindWithFilters(ctx context.Context, q domain.FeedQuery) ([]feedsync.Item, int64, error) {
	return m.items, int64(len(m.items)), nil
}

func (m *stubItemRepo) Latest(ctx context.Context, sourceID string) (*feedsync.Item, error) {
	return nil, domain.NotFoundError{Resource: "item"}
}

func (m *stubItemRepo) CountBySources(ctx context.Context, sourceIDs []string) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (m *stubItemRepo) MarkStatusBySource(ctx context.Context, sourceID string, status feedsync.ItemStatus) error {
	return nil
}

func (m *stubItemRepo) Metrics(ctx context.Context, sourceIDs []string) (domain.FeedMetrics, error) {
	return domain.FeedMetrics{TotalItems: int64(len(m.items))}, nil
}

type stubSourceRepo struct {
	sources map[string]domain.Source
}

func (m *stubSourceRepo) Create(ctx context.Context, source domain.Source) error { return nil }

func (m *stubSourceRepo) Get(ctx context.Context, id string) (domain.Source, error) {
	source, ok := m.sources[id]
	if !ok {
		return domain.Source{}, domain.NotFoundError{Resource: "source"}
	}
	return source, nil
}

func (m *stubSourceRepo) ListByUser(ctx context.Context, userID string) ([]domain.Source, error) {
	var out []domain.Source
	for _, s := range m.sources {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *stubSourceRepo) ListSyncable(ctx context.Context, userID string) ([]domain.Source, error) {
	return nil, nil
}

func (m *stubSourceRepo) ListActiveIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	for _, s := range m.sources {
		if s.UserID == userID && s.Status == domain.SourceStatusActive {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

func (m *stubSourceRepo) Update(ctx context.Context, source domain.Source) error { return nil }

func (m *stubSourceRepo) UpdateStatus(ctx context.Context, id string, status domain.SourceStatus, lastError string) error {
	return nil
}

func (m *stubSourceRepo) TouchSynced(ctx context.Context, id string, syncedAt time.Time, newItems int) error {
	return nil
}

func (m *stubSourceRepo) UpdateCredentials(ctx context.Context, id string, creds feedsync.Credentials) error {
	return nil
}

func (m *stubSourceRepo) Delete(ctx context.Context, id string) error { return nil }

// --- tests ---

func newTestServer(items *stubItemRepo, sources *stubSourceRepo) *echo.Echo {
	aggregateUC := usecase.NewAggregateUsecase(items, sources, nil, nil)
	sourceUC := usecase.NewSourceUsecase(sources, items, nil, nil, nil)

	h := NewHandler(sourceUC, nil, aggregateUC, nil, nil)

	e := echo.New()
	e.Use(middleware.NewRequesterMiddleware().IdentifyRequester)
	h.RegisterRoutes(e)
	return e
}

func TestHandleFeedRequiresUserHeader(t *testing.T) {
	e := newTestServer(&stubItemRepo{}, &stubSourceRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/feed", nil)
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", res.Code)
	}
}

func TestHandleFeedReturnsPage(t *testing.T) {
	items := &stubItemRepo{items: []feedsync.Item{{
		ID:       "item1",
		SourceID: "src1",
		Text:     "hello",
		Status:   feedsync.ItemStatusActive,
	}}}
	sources := &stubSourceRepo{sources: map[string]domain.Source{
		"src1": {ID: "src1", UserID: "user1", Status: domain.SourceStatusActive},
	}}
	e := newTestServer(items, sources)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/feed", nil)
	req.Header.Set(domain.RequesterIdHeader, "user1")
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}

	var page domain.FeedPage
	if err := json.Unmarshal(res.Body.Bytes(), &page); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "item1" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestHandleFeedRejectsBadLimit(t *testing.T) {
	e := newTestServer(&stubItemRepo{}, &stubSourceRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/feed?limit=abc", nil)
	req.Header.Set(domain.RequesterIdHeader, "user1")
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.Code)
	}
}

func TestHandleTrendingRejectsUnknownTimeframe(t *testing.T) {
	e := newTestServer(&stubItemRepo{}, &stubSourceRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/feed/trending?timeframe=3h", nil)
	req.Header.Set(domain.RequesterIdHeader, "user1")
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.Code)
	}
}

func TestHandleSourceGetNotFound(t *testing.T) {
	e := newTestServer(&stubItemRepo{}, &stubSourceRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sources/nope", nil)
	req.Header.Set(domain.RequesterIdHeader, "user1")
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", res.Code)
	}
}

func TestHandleSearchRejectsEmptyQuery(t *testing.T) {
	e := newTestServer(&stubItemRepo{}, &stubSourceRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/feed/search?q=", nil)
	req.Header.Set(domain.RequesterIdHeader, "user1")
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.Code)
	}
}
