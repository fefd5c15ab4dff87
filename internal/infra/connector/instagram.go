package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/kinokawa/feedsync"
	"github.com/kinokawa/feedsync/internal/domain"
)

const instagramDefaultBaseURL = "https://graph.instagram.com"

// InstagramConnector speaks the graph-style media API. Incremental
// fetches use SinceDate; the API has no since-id cursor.
type InstagramConnector struct {
	client  *http.Client
	baseURL string
}

func NewInstagramConnector(baseURL string) *InstagramConnector {
	if baseURL == "" {
		baseURL = instagramDefaultBaseURL
	}
	return &InstagramConnector{
		client:  newHTTPClient(),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (c *InstagramConnector) PlatformID() string { return "instagram" }

type instagramMedia struct {
	ID            string    `json:"id"`
	Caption       string    `json:"caption"`
	MediaType     string    `json:"media_type"` // IMAGE, VIDEO, CAROUSEL_ALBUM
	MediaURL      string    `json:"media_url"`
	ThumbnailURL  string    `json:"thumbnail_url"`
	Permalink     string    `json:"permalink"`
	Timestamp     time.Time `json:"timestamp"`
	Username      string    `json:"username"`
	LikeCount     int64     `json:"like_count"`
	CommentsCount int64     `json:"comments_count"`
}

type instagramMediaResponse struct {
	Data   []instagramMedia `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
}

func (c *InstagramConnector) ValidateCredentials(ctx context.Context, creds feedsync.Credentials) error {
	if creds.AccessToken == "" {
		return domain.CredentialError{Detail: "missing access token"}
	}
	var out struct {
		ID string `json:"id"`
	}
	return c.get(ctx, "/me", url.Values{
		"fields":       []string{"id"},
		"access_token": []string{creds.AccessToken},
	}, &out)
}

func (c *InstagramConnector) RefreshToken(ctx context.Context, creds feedsync.Credentials) (feedsync.Credentials, error) {
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	err := c.get(ctx, "/refresh_access_token", url.Values{
		"grant_type":   []string{"ig_refresh_token"},
		"access_token": []string{creds.AccessToken},
	}, &out)
	if err != nil {
		return creds, err
	}

	refreshed := creds
	refreshed.AccessToken = out.AccessToken
	if out.ExpiresIn > 0 {
		expiry := time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
		refreshed.ExpiresAt = &expiry
	}
	return refreshed, nil
}

func (c *InstagramConnector) GetUserInfo(ctx context.Context, creds feedsync.Credentials, handle string) (feedsync.UserInfo, error) {
	var out struct {
		ID         string `json:"id"`
		Username   string `json:"username"`
		Name       string `json:"name"`
		MediaCount int64  `json:"media_count"`
	}
	err := c.get(ctx, "/me", url.Values{
		"fields":       []string{"id,username,name,media_count"},
		"access_token": []string{creds.AccessToken},
	}, &out)
	if err != nil {
		return feedsync.UserInfo{}, err
	}
	return feedsync.UserInfo{
		AccountID:   out.ID,
		Handle:      out.Username,
		DisplayName: out.Name,
	}, nil
}

func (c *InstagramConnector) SyncFeed(ctx context.Context, source domain.Source, creds feedsync.Credentials, opts feedsync.SyncOptions) (feedsync.FetchResult, error) {

	params := url.Values{
		"fields":       []string{"id,caption,media_type,media_url,thumbnail_url,permalink,timestamp,username,like_count,comments_count"},
		"access_token": []string{creds.AccessToken},
	}
	if opts.MaxItems > 0 {
		params.Set("limit", strconv.Itoa(opts.MaxItems))
	}
	if opts.SinceDate != nil {
		params.Set("since", strconv.FormatInt(opts.SinceDate.Unix(), 10))
	}

	var out instagramMediaResponse
	if err := c.get(ctx, "/me/media", params, &out); err != nil {
		return feedsync.FetchResult{}, err
	}

	items := make([]feedsync.Item, 0, len(out.Data))
	for _, media := range out.Data {
		if opts.SinceDate != nil && !media.Timestamp.After(*opts.SinceDate) {
			continue
		}
		items = append(items, c.TransformMedia(media, source))
	}
	items = clampItems(items, opts.MaxItems)

	return feedsync.FetchResult{
		Items:         items,
		NextPageToken: out.Paging.Cursors.After,
		HasMore:       out.Paging.Next != "",
	}, nil
}

// TransformMedia maps one raw media payload to the canonical shape.
// Pure: no I/O, deterministic given its input.
func (c *InstagramConnector) TransformMedia(media instagramMedia, source domain.Source) feedsync.Item {

	itemType := feedsync.ItemTypePost
	switch media.MediaType {
	case "IMAGE":
		itemType = feedsync.ItemTypeImage
	case "VIDEO":
		itemType = feedsync.ItemTypeVideo
	}

	handle := media.Username
	if handle == "" {
		handle = source.AccountHandle
	}

	var attachments []feedsync.Media
	if media.MediaURL != "" {
		mediaKind := "image"
		if media.MediaType == "VIDEO" {
			mediaKind = "video"
		}
		attachments = append(attachments, feedsync.Media{
			URL:  media.MediaURL,
			Type: mediaKind,
		})
	}
	if media.ThumbnailURL != "" {
		attachments = append(attachments, feedsync.Media{
			URL:  media.ThumbnailURL,
			Type: "thumbnail",
		})
	}

	return feedsync.Item{
		SourceID:       source.ID,
		PlatformItemID: media.ID,
		Type:           itemType,
		Text:           media.Caption,
		AuthorHandle:   handle,
		Media:          attachments,
		Hashtags:       feedsync.ExtractHashtags(media.Caption),
		Mentions:       feedsync.ExtractMentions(media.Caption),
		OriginalURL:    media.Permalink,
		Likes:          media.LikeCount,
		Comments:       media.CommentsCount,
		Status:         feedsync.ItemStatusActive,
		PublishedAt:    media.Timestamp,
	}
}

func (c *InstagramConnector) GetRateLimitStatus(ctx context.Context, creds feedsync.Credentials) (feedsync.RateLimitStatus, error) {
	// The graph API reports app-level usage via headers on any call.
	var out struct {
		ID string `json:"id"`
	}
	err := c.get(ctx, "/me", url.Values{
		"fields":       []string{"id"},
		"access_token": []string{creds.AccessToken},
	}, &out)
	if err != nil {
		return feedsync.RateLimitStatus{}, err
	}
	return feedsync.RateLimitStatus{Remaining: 1}, nil
}

func (c *InstagramConnector) get(ctx context.Context, path string, params url.Values, response any) error {

	endpoint := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "instagram request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.RateLimitError{}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.CredentialError{Detail: fmt.Sprintf("instagram returned status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(response)
}
