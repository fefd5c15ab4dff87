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

const twitterDefaultBaseURL = "https://api.twitter.com"

// TwitterConnector speaks the v2-style user timeline API. It honors
// SinceID for incremental fetches.
type TwitterConnector struct {
	client  *http.Client
	baseURL string
}

func NewTwitterConnector(baseURL string) *TwitterConnector {
	if baseURL == "" {
		baseURL = twitterDefaultBaseURL
	}
	return &TwitterConnector{
		client:  newHTTPClient(),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (c *TwitterConnector) PlatformID() string { return "twitter" }

type twitterTweet struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
	AuthorID       string    `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	AuthorName     string    `json:"author_name"`
	AuthorAvatar   string    `json:"profile_image_url"`
	ReferencedType string    `json:"referenced_type"` // retweeted, replied_to
	PublicMetrics  struct {
		LikeCount    int64 `json:"like_count"`
		RetweetCount int64 `json:"retweet_count"`
		ReplyCount   int64 `json:"reply_count"`
		ViewCount    int64 `json:"impression_count"`
	} `json:"public_metrics"`
	Attachments []struct {
		URL    string `json:"url"`
		Type   string `json:"type"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"attachments"`
}

type twitterTimelineResponse struct {
	Data []twitterTweet `json:"data"`
	Meta struct {
		NextToken   string `json:"next_token"`
		ResultCount int    `json:"result_count"`
	} `json:"meta"`
}

type twitterUserResponse struct {
	Data struct {
		ID              string `json:"id"`
		Username        string `json:"username"`
		Name            string `json:"name"`
		ProfileImageURL string `json:"profile_image_url"`
		PublicMetrics   struct {
			FollowersCount int64 `json:"followers_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

func (c *TwitterConnector) ValidateCredentials(ctx context.Context, creds feedsync.Credentials) error {
	if creds.AccessToken == "" {
		return domain.CredentialError{Detail: "missing access token"}
	}
	var out twitterUserResponse
	return c.get(ctx, creds, "/2/users/me", nil, &out, nil)
}

func (c *TwitterConnector) RefreshToken(ctx context.Context, creds feedsync.Credentials) (feedsync.Credentials, error) {
	if creds.RefreshToken == "" {
		return creds, domain.CredentialError{Detail: "no refresh token"}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", creds.RefreshToken)
	form.Set("client_id", creds.ClientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/2/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return creds, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return creds, errors.Wrap(err, "twitter token refresh failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return creds, domain.CredentialError{
			Detail: fmt.Sprintf("token refresh returned status %d", resp.StatusCode),
		}
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return creds, errors.Wrap(err, "failed to decode token response")
	}

	refreshed := creds
	refreshed.AccessToken = body.AccessToken
	if body.RefreshToken != "" {
		refreshed.RefreshToken = body.RefreshToken
	}
	if body.ExpiresIn > 0 {
		expiry := time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
		refreshed.ExpiresAt = &expiry
	}
	return refreshed, nil
}

func (c *TwitterConnector) GetUserInfo(ctx context.Context, creds feedsync.Credentials, handle string) (feedsync.UserInfo, error) {
	var out twitterUserResponse
	path := "/2/users/by/username/" + url.PathEscape(strings.TrimPrefix(handle, "@"))
	err := c.get(ctx, creds, path, url.Values{
		"user.fields": []string{"profile_image_url,public_metrics"},
	}, &out, nil)
	if err != nil {
		return feedsync.UserInfo{}, err
	}
	return feedsync.UserInfo{
		AccountID:   out.Data.ID,
		Handle:      out.Data.Username,
		DisplayName: out.Data.Name,
		AvatarURL:   out.Data.ProfileImageURL,
		Followers:   out.Data.PublicMetrics.FollowersCount,
	}, nil
}

func (c *TwitterConnector) SyncFeed(ctx context.Context, source domain.Source, creds feedsync.Credentials, opts feedsync.SyncOptions) (feedsync.FetchResult, error) {

	params := url.Values{}
	params.Set("tweet.fields", "created_at,public_metrics,referenced_tweets")
	if opts.MaxItems > 0 {
		params.Set("max_results", strconv.Itoa(opts.MaxItems))
	}
	if opts.SinceID != "" {
		params.Set("since_id", opts.SinceID)
	}
	var exclude []string
	if !opts.IncludeReplies {
		exclude = append(exclude, "replies")
	}
	if !opts.IncludeRetweets {
		exclude = append(exclude, "retweets")
	}
	if len(exclude) > 0 {
		params.Set("exclude", strings.Join(exclude, ","))
	}

	var out twitterTimelineResponse
	var rate rateHeaders
	path := "/2/users/" + url.PathEscape(source.AccountID) + "/tweets"
	if err := c.get(ctx, creds, path, params, &out, &rate); err != nil {
		return feedsync.FetchResult{}, err
	}

	items := make([]feedsync.Item, 0, len(out.Data))
	for _, tweet := range out.Data {
		items = append(items, c.TransformTweet(tweet, source))
	}
	items = clampItems(items, opts.MaxItems)

	return feedsync.FetchResult{
		Items:              items,
		NextPageToken:      out.Meta.NextToken,
		HasMore:            out.Meta.NextToken != "",
		RateLimitRemaining: rate.remaining,
		RateLimitResetAt:   rate.resetAt,
	}, nil
}

// TransformTweet maps one raw tweet payload to the canonical shape.
// Pure: no I/O, deterministic given its input.
func (c *TwitterConnector) TransformTweet(tweet twitterTweet, source domain.Source) feedsync.Item {

	itemType := feedsync.ItemTypePost
	switch tweet.ReferencedType {
	case "retweeted":
		itemType = feedsync.ItemTypeRetweet
	case "replied_to":
		itemType = feedsync.ItemTypeReply
	}

	handle := tweet.AuthorUsername
	if handle == "" {
		handle = source.AccountHandle
	}

	var media []feedsync.Media
	for _, a := range tweet.Attachments {
		media = append(media, feedsync.Media{
			URL:    a.URL,
			Type:   a.Type,
			Width:  a.Width,
			Height: a.Height,
		})
	}

	var links []feedsync.Link
	for _, u := range feedsync.ExtractURLs(tweet.Text) {
		links = append(links, feedsync.Link{URL: u})
	}

	return feedsync.Item{
		SourceID:       source.ID,
		PlatformItemID: tweet.ID,
		Type:           itemType,
		Text:           tweet.Text,
		AuthorHandle:   handle,
		AuthorName:     tweet.AuthorName,
		AuthorAvatar:   tweet.AuthorAvatar,
		Media:          media,
		Links:          links,
		Hashtags:       feedsync.ExtractHashtags(tweet.Text),
		Mentions:       feedsync.ExtractMentions(tweet.Text),
		OriginalURL:    fmt.Sprintf("https://twitter.com/%s/status/%s", handle, tweet.ID),
		Likes:          tweet.PublicMetrics.LikeCount,
		Shares:         tweet.PublicMetrics.RetweetCount,
		Comments:       tweet.PublicMetrics.ReplyCount,
		Views:          tweet.PublicMetrics.ViewCount,
		Status:         feedsync.ItemStatusActive,
		PublishedAt:    tweet.CreatedAt,
	}
}

func (c *TwitterConnector) GetRateLimitStatus(ctx context.Context, creds feedsync.Credentials) (feedsync.RateLimitStatus, error) {
	var out twitterUserResponse
	var rate rateHeaders
	if err := c.get(ctx, creds, "/2/users/me", nil, &out, &rate); err != nil {
		return feedsync.RateLimitStatus{}, err
	}
	status := feedsync.RateLimitStatus{ResetAt: rate.resetAt}
	if rate.remaining != nil {
		status.Remaining = *rate.remaining
	}
	if rate.limit != nil {
		status.Limit = *rate.limit
	}
	return status, nil
}

type rateHeaders struct {
	remaining *int
	limit     *int
	resetAt   *time.Time
}

func parseRateHeaders(h http.Header) rateHeaders {
	var out rateHeaders
	if v := h.Get("x-rate-limit-remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			out.remaining = &n
		}
	}
	if v := h.Get("x-rate-limit-limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			out.limit = &n
		}
	}
	if v := h.Get("x-rate-limit-reset"); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			t := time.Unix(unix, 0)
			out.resetAt = &t
		}
	}
	return out
}

func (c *TwitterConnector) get(ctx context.Context, creds feedsync.Credentials, path string, params url.Values, response any, rate *rateHeaders) error {

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "twitter request failed")
	}
	defer resp.Body.Close()

	headers := parseRateHeaders(resp.Header)
	if rate != nil {
		*rate = headers
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.RateLimitError{ResetAt: headers.resetAt}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.CredentialError{Detail: fmt.Sprintf("twitter returned status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(response)
}
