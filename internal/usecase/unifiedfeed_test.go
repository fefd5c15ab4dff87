package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kinokawa/feedsync/internal/domain"
)

func newUnifiedFixture(items *mockItemRepo, sources *mockSourceRepo) (*UnifiedFeedUsecase, *mockFeedRepo) {
	feeds := newMockFeedRepo()
	aggregate := NewAggregateUsecase(items, sources, nil, nil)
	aggregate.now = func() time.Time { return testTime }
	uc := NewUnifiedFeedUsecase(feeds, sources, aggregate, nil)
	uc.now = func() time.Time { return testTime }
	return uc, feeds
}

func TestUnifiedFeedCreateRejectsForeignSource(t *testing.T) {
	sources := newMockSourceRepo(activeSource("src1", "user2", "twitter"))
	uc, _ := newUnifiedFixture(newMockItemRepo(), sources)

	_, err := uc.Create(context.Background(), domain.UnifiedFeed{
		UserID:    "user1",
		Name:      "mine",
		SourceIDs: []string{"src1"},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUnifiedFeedCreateRequiresName(t *testing.T) {
	uc, _ := newUnifiedFixture(newMockItemRepo(), newMockSourceRepo())

	_, err := uc.Create(context.Background(), domain.UnifiedFeed{UserID: "user1", Name: "  "})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUnifiedFeedDefaultUniqueness(t *testing.T) {
	sources := newMockSourceRepo(activeSource("src1", "user1", "twitter"))
	uc, feeds := newUnifiedFixture(newMockItemRepo(), sources)

	first, err := uc.Create(context.Background(), domain.UnifiedFeed{
		UserID:    "user1",
		Name:      "first",
		IsDefault: true,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	second, err := uc.Create(context.Background(), domain.UnifiedFeed{
		UserID:    "user1",
		Name:      "second",
		IsDefault: true,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	def, err := feeds.GetDefault(context.Background(), "user1")
	if err != nil {
		t.Fatalf("get default failed: %v", err)
	}
	if def.ID != second.ID {
		t.Fatalf("expected %s to be default, got %s", second.ID, def.ID)
	}
	if demoted, _ := feeds.Get(context.Background(), first.ID); demoted.IsDefault {
		t.Fatalf("expected first feed to be demoted")
	}
}

func TestUnifiedFeedDefaultLookup(t *testing.T) {
	sources := newMockSourceRepo()
	uc, feeds := newUnifiedFixture(newMockItemRepo(), sources)

	_, err := uc.Default(context.Background(), "user1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found without a default, got %v", err)
	}

	feeds.feeds["feed1"] = domain.UnifiedFeed{ID: "feed1", UserID: "user1", Name: "home", IsDefault: true}
	feeds.feeds["feed2"] = domain.UnifiedFeed{ID: "feed2", UserID: "user2", Name: "theirs", IsDefault: true}

	def, err := uc.Default(context.Background(), "user1")
	if err != nil {
		t.Fatalf("default lookup failed: %v", err)
	}
	if def.ID != "feed1" {
		t.Fatalf("expected feed1, got %s", def.ID)
	}
}

func TestUnifiedFeedItemsTouchesPreset(t *testing.T) {
	sources := newMockSourceRepo(activeSource("src1", "user1", "twitter"))
	uc, feeds := newUnifiedFixture(newMockItemRepo(), sources)
	feeds.feeds["feed1"] = domain.UnifiedFeed{
		ID:        "feed1",
		UserID:    "user1",
		Name:      "preset",
		SourceIDs: []string{"src1"},
	}

	if _, err := uc.Items(context.Background(), "user1", "feed1", 10, 0); err != nil {
		t.Fatalf("items failed: %v", err)
	}
	if len(feeds.touched) != 1 || feeds.touched[0] != "feed1" {
		t.Fatalf("expected preset to be touched once, got %v", feeds.touched)
	}
}

func TestUnifiedFeedGetScopedToOwner(t *testing.T) {
	sources := newMockSourceRepo()
	uc, feeds := newUnifiedFixture(newMockItemRepo(), sources)
	feeds.feeds["feed1"] = domain.UnifiedFeed{ID: "feed1", UserID: "user2", Name: "theirs"}

	_, err := uc.Get(context.Background(), "user1", "feed1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUnifiedFeedItemsDropsDeadSources(t *testing.T) {
	items := newMockItemRepo()
	seedItems(items,
		storedItem("live", "src1", testTime, 0),
		storedItem("dead", "src2", testTime, 0),
	)
	sources := newMockSourceRepo(activeSource("src1", "user1", "twitter"))
	uc, feeds := newUnifiedFixture(items, sources)

	// Preset still references src2, deleted since it was saved.
	feeds.feeds["feed1"] = domain.UnifiedFeed{
		ID:        "feed1",
		UserID:    "user1",
		Name:      "preset",
		SourceIDs: []string{"src1", "src2"},
	}

	page, err := uc.Items(context.Background(), "user1", "feed1", 10, 0)
	if err != nil {
		t.Fatalf("items failed: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "live" {
		t.Fatalf("expected only live source items, got %v", page.Items)
	}
}

func TestUnifiedFeedItemsAppliesPresetFilters(t *testing.T) {
	items := newMockItemRepo()
	liked := storedItem("liked", "src1", testTime, 50)
	quiet := storedItem("quiet", "src1", testTime, 0)
	seedItems(items, liked, quiet)
	sources := newMockSourceRepo(activeSource("src1", "user1", "twitter"))
	uc, feeds := newUnifiedFixture(items, sources)

	minLikes := int64(10)
	feeds.feeds["feed1"] = domain.UnifiedFeed{
		ID:             "feed1",
		UserID:         "user1",
		Name:           "engaged",
		SourceIDs:      []string{"src1"},
		FilterSettings: domain.ItemFilters{MinLikes: &minLikes},
	}

	page, err := uc.Items(context.Background(), "user1", "feed1", 10, 0)
	if err != nil {
		t.Fatalf("items failed: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "liked" {
		t.Fatalf("expected filtered preset result, got %v", page.Items)
	}
}

func TestUnifiedFeedItemsEmptyWhenAllSourcesGone(t *testing.T) {
	sources := newMockSourceRepo()
	uc, feeds := newUnifiedFixture(newMockItemRepo(), sources)
	feeds.feeds["feed1"] = domain.UnifiedFeed{
		ID:        "feed1",
		UserID:    "user1",
		Name:      "orphan",
		SourceIDs: []string{"gone"},
	}

	page, err := uc.Items(context.Background(), "user1", "feed1", 10, 0)
	if err != nil {
		t.Fatalf("items failed: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("expected empty page, got %v", page.Items)
	}
}

func TestUnifiedFeedUpdatePreservesOwnership(t *testing.T) {
	sources := newMockSourceRepo(activeSource("src1", "user1", "twitter"))
	uc, feeds := newUnifiedFixture(newMockItemRepo(), sources)
	feeds.feeds["feed1"] = domain.UnifiedFeed{
		ID:        "feed1",
		UserID:    "user1",
		Name:      "before",
		CreatedAt: testTime.Add(-time.Hour),
	}

	updated, err := uc.Update(context.Background(), "user1", domain.UnifiedFeed{
		ID:   "feed1",
		Name: "after",
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.UserID != "user1" || updated.Name != "after" {
		t.Fatalf("unexpected feed after update: %+v", updated)
	}
	if !updated.CreatedAt.Equal(testTime.Add(-time.Hour)) {
		t.Fatalf("expected creation time to be preserved")
	}
}
