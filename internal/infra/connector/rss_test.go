package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/kinokawa/feedsync"
	"github.com/kinokawa/feedsync/internal/domain"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Blog</title>
    <link>https://blog.example.com</link>
    <item>
      <title>First Post</title>
      <link>https://blog.example.com/first</link>
      <guid>post-1</guid>
      <description>A short description</description>
      <pubDate>Thu, 05 Feb 2026 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Older Post</title>
      <link>https://blog.example.com/older</link>
      <guid>post-0</guid>
      <description>Older content</description>
      <pubDate>Tue, 20 Jan 2026 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func TestRSSSyncFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFixture)
	}))
	defer server.Close()

	c := NewRSSConnector()
	source := domain.Source{ID: "src1", AccountHandle: server.URL}

	result, err := c.SyncFeed(context.Background(), source, feedsync.Credentials{}, feedsync.SyncOptions{})
	if err != nil {
		t.Fatalf("sync feed failed: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}
	first := result.Items[0]
	if first.PlatformItemID != "post-1" || first.Type != feedsync.ItemTypeArticle {
		t.Fatalf("unexpected item: %+v", first)
	}
	if first.Title != "First Post" || first.OriginalURL != "https://blog.example.com/first" {
		t.Fatalf("unexpected item: %+v", first)
	}
}

func TestRSSSyncFeedFiltersBySinceDate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFixture)
	}))
	defer server.Close()

	c := NewRSSConnector()
	source := domain.Source{ID: "src1", AccountHandle: server.URL}
	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	result, err := c.SyncFeed(context.Background(), source, feedsync.Credentials{}, feedsync.SyncOptions{SinceDate: &cutoff})
	if err != nil {
		t.Fatalf("sync feed failed: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].PlatformItemID != "post-1" {
		t.Fatalf("expected only the newer entry, got %v", result.Items)
	}
}

func TestRSSGetUserInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFixture)
	}))
	defer server.Close()

	c := NewRSSConnector()
	info, err := c.GetUserInfo(context.Background(), feedsync.Credentials{}, server.URL)
	if err != nil {
		t.Fatalf("get user info failed: %v", err)
	}
	if info.DisplayName != "Example Blog" {
		t.Fatalf("unexpected display name: %q", info.DisplayName)
	}
}

func TestTransformEntryFallbacks(t *testing.T) {
	c := NewRSSConnector()
	source := domain.Source{ID: "src1", AccountHandle: "https://blog.example.com/feed"}
	published := time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)

	feed := &gofeed.Feed{Title: "Example Blog"}
	entry := &gofeed.Item{
		Title:           "No GUID Post",
		Link:            "https://blog.example.com/no-guid",
		Description:     strings.Repeat("x", 400),
		PublishedParsed: &published,
	}

	item := c.TransformEntry(entry, feed, source)
	if item.PlatformItemID != "https://blog.example.com/no-guid" {
		t.Fatalf("expected link fallback for id, got %q", item.PlatformItemID)
	}
	if len(item.Excerpt) != 280 {
		t.Fatalf("expected excerpt capped at 280, got %d", len(item.Excerpt))
	}
	if item.AuthorName != "Example Blog" {
		t.Fatalf("expected feed title as author, got %q", item.AuthorName)
	}
	if item.Text != entry.Description {
		t.Fatalf("expected description fallback for text")
	}
}
