package connector

import (
	"context"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/pkg/errors"

	"github.com/kinokawa/feedsync"
	"github.com/kinokawa/feedsync/internal/domain"
)

// RSSConnector treats an RSS/Atom feed as a platform. The source's
// account handle is the feed URL; no credentials are involved.
type RSSConnector struct {
	parser *gofeed.Parser
}

func NewRSSConnector() *RSSConnector {
	return &RSSConnector{
		parser: gofeed.NewParser(),
	}
}

func (c *RSSConnector) PlatformID() string { return "rss" }

func (c *RSSConnector) ValidateCredentials(ctx context.Context, creds feedsync.Credentials) error {
	return nil
}

func (c *RSSConnector) RefreshToken(ctx context.Context, creds feedsync.Credentials) (feedsync.Credentials, error) {
	return creds, nil
}

func (c *RSSConnector) GetUserInfo(ctx context.Context, creds feedsync.Credentials, handle string) (feedsync.UserInfo, error) {
	feed, err := c.parser.ParseURLWithContext(handle, ctx)
	if err != nil {
		return feedsync.UserInfo{}, errors.Wrap(err, "failed to parse feed")
	}
	info := feedsync.UserInfo{
		AccountID:   handle,
		Handle:      handle,
		DisplayName: feed.Title,
	}
	if feed.Image != nil {
		info.AvatarURL = feed.Image.URL
	}
	return info, nil
}

func (c *RSSConnector) SyncFeed(ctx context.Context, source domain.Source, creds feedsync.Credentials, opts feedsync.SyncOptions) (feedsync.FetchResult, error) {

	feed, err := c.parser.ParseURLWithContext(source.AccountHandle, ctx)
	if err != nil {
		return feedsync.FetchResult{}, errors.Wrap(err, "failed to fetch feed")
	}

	items := make([]feedsync.Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		published := entryTime(entry)
		if opts.SinceDate != nil && !published.After(*opts.SinceDate) {
			continue
		}
		items = append(items, c.TransformEntry(entry, feed, source))
	}
	items = clampItems(items, opts.MaxItems)

	return feedsync.FetchResult{
		Items:   items,
		HasMore: false,
	}, nil
}

// TransformEntry maps one feed entry to the canonical shape.
// Pure: no I/O, deterministic given its input.
func (c *RSSConnector) TransformEntry(entry *gofeed.Item, feed *gofeed.Feed, source domain.Source) feedsync.Item {

	id := entry.GUID
	if id == "" {
		id = entry.Link
	}

	text := entry.Content
	if text == "" {
		text = entry.Description
	}

	author := feed.Title
	if entry.Author != nil && entry.Author.Name != "" {
		author = entry.Author.Name
	}

	var media []feedsync.Media
	if entry.Image != nil {
		media = append(media, feedsync.Media{URL: entry.Image.URL, Type: "image"})
	}

	var links []feedsync.Link
	if entry.Link != "" {
		links = append(links, feedsync.Link{URL: entry.Link, Title: entry.Title})
	}

	return feedsync.Item{
		SourceID:       source.ID,
		PlatformItemID: id,
		Type:           feedsync.ItemTypeArticle,
		Title:          entry.Title,
		Text:           text,
		Excerpt:        excerpt(entry.Description, 280),
		AuthorHandle:   source.AccountHandle,
		AuthorName:     author,
		Media:          media,
		Links:          links,
		Hashtags:       feedsync.ExtractHashtags(text),
		Mentions:       nil,
		OriginalURL:    entry.Link,
		Status:         feedsync.ItemStatusActive,
		PublishedAt:    entryTime(entry),
	}
}

func (c *RSSConnector) GetRateLimitStatus(ctx context.Context, creds feedsync.Credentials) (feedsync.RateLimitStatus, error) {
	return feedsync.RateLimitStatus{Remaining: 1}, nil
}

func entryTime(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return *entry.PublishedParsed
	}
	if entry.UpdatedParsed != nil {
		return *entry.UpdatedParsed
	}
	return time.Time{}
}

func excerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max]
}
