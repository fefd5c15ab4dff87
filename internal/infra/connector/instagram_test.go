package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kinokawa/feedsync"
	"github.com/kinokawa/feedsync/internal/domain"
)

func TestTransformMediaTypes(t *testing.T) {
	c := NewInstagramConnector("")
	source := domain.Source{ID: "src1", AccountHandle: "someone"}

	cases := []struct {
		mediaType string
		want      feedsync.ItemType
	}{
		{"IMAGE", feedsync.ItemTypeImage},
		{"VIDEO", feedsync.ItemTypeVideo},
		{"CAROUSEL_ALBUM", feedsync.ItemTypePost},
	}
	for _, tc := range cases {
		item := c.TransformMedia(instagramMedia{ID: "1", MediaType: tc.mediaType}, source)
		if item.Type != tc.want {
			t.Fatalf("media type %q: expected %s, got %s", tc.mediaType, tc.want, item.Type)
		}
	}
}

func TestTransformMediaAttachments(t *testing.T) {
	c := NewInstagramConnector("")
	source := domain.Source{ID: "src1", AccountHandle: "someone"}

	item := c.TransformMedia(instagramMedia{
		ID:           "1",
		MediaType:    "VIDEO",
		MediaURL:     "https://cdn.example.com/v.mp4",
		ThumbnailURL: "https://cdn.example.com/t.jpg",
		Caption:      "behind the scenes #studio",
		Permalink:    "https://instagram.com/p/1",
		LikeCount:    7,
	}, source)

	if len(item.Media) != 2 {
		t.Fatalf("expected video plus thumbnail, got %v", item.Media)
	}
	if item.Media[0].Type != "video" || item.Media[1].Type != "thumbnail" {
		t.Fatalf("unexpected media kinds: %v", item.Media)
	}
	if len(item.Hashtags) != 1 || item.Hashtags[0] != "studio" {
		t.Fatalf("unexpected hashtags: %v", item.Hashtags)
	}
	if item.OriginalURL != "https://instagram.com/p/1" || item.Likes != 7 {
		t.Fatalf("unexpected item: %+v", item)
	}
	// Caption author missing: fall back to the source handle.
	if item.AuthorHandle != "someone" {
		t.Fatalf("expected handle fallback, got %q", item.AuthorHandle)
	}
}

func TestInstagramSyncFeedFiltersBySinceDate(t *testing.T) {
	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[
			{"id":"new","media_type":"IMAGE","timestamp":"2026-02-05T00:00:00Z"},
			{"id":"old","media_type":"IMAGE","timestamp":"2026-01-20T00:00:00Z"}
		]}`)
	}))
	defer server.Close()

	c := NewInstagramConnector(server.URL)
	result, err := c.SyncFeed(context.Background(),
		domain.Source{ID: "src1", AccountHandle: "someone"},
		feedsync.Credentials{AccessToken: "t"},
		feedsync.SyncOptions{SinceDate: &cutoff},
	)
	if err != nil {
		t.Fatalf("sync feed failed: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].PlatformItemID != "new" {
		t.Fatalf("expected only the newer media, got %v", result.Items)
	}
}

func TestInstagramSyncFeedClampsToMaxItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[
			{"id":"1","media_type":"IMAGE","timestamp":"2026-02-05T00:00:00Z"},
			{"id":"2","media_type":"IMAGE","timestamp":"2026-02-04T00:00:00Z"},
			{"id":"3","media_type":"IMAGE","timestamp":"2026-02-03T00:00:00Z"}
		]}`)
	}))
	defer server.Close()

	c := NewInstagramConnector(server.URL)
	result, err := c.SyncFeed(context.Background(),
		domain.Source{ID: "src1", AccountHandle: "someone"},
		feedsync.Credentials{AccessToken: "t"},
		feedsync.SyncOptions{MaxItems: 2},
	)
	if err != nil {
		t.Fatalf("sync feed failed: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}
}
