package gbfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/rs/zerolog/log"
)

const defaultUserAgent = "bikeraccoon-tracker/1.0"

// Client fetches and normalises GBFS feeds. Every exported fetch is bounded by Timeout,
// including the feed index lookup and the single rate limit retry.
type Client struct {
	HTTPClient    *http.Client
	Timeout       time.Duration
	RateLimitWait time.Duration
	UserAgent     string

	// IndexCache holds resolved sub-feed URLs keyed by index URL. Nil disables caching.
	IndexCache    *cache.Cache[string]
	IndexCacheTTL time.Duration

	Now func() time.Time
}

func NewClient(timeout time.Duration, rateLimitWait time.Duration) *Client {
	return &Client{
		HTTPClient:    &http.Client{},
		Timeout:       timeout,
		RateLimitWait: rateLimitWait,
		UserAgent:     defaultUserAgent,
		IndexCacheTTL: time.Hour,
		Now:           time.Now,
	}
}

func (c *Client) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}

	return c.Now()
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.Timeout)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	return body, resp.StatusCode, nil
}

// getJSON fetches url and decodes the JSON object into out. Some endpoints answer with a plain
// rate limit string instead of the feed, that case waits RateLimitWait and retries exactly once.
func (c *Client) getJSON(ctx context.Context, feed string, url string, out any) error {
	operation := func() error {
		body, status, err := c.get(ctx, url)
		if err != nil {
			return backoff.Permanent(&FetchError{Feed: feed, URL: url, Err: err})
		}

		if status == http.StatusTooManyRequests {
			return &FetchError{Feed: feed, URL: url, Err: ErrRateLimited}
		}
		if status < 200 || status > 299 {
			return backoff.Permanent(&FetchError{Feed: feed, URL: url, Err: fmt.Errorf("HTTP %d", status)})
		}

		trimmed := bytes.TrimSpace(body)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			log.Debug().Str("feed", feed).Str("url", url).Msg("Non JSON payload, treating as rate limit")
			return &FetchError{Feed: feed, URL: url, Err: ErrRateLimited}
		}

		if err := json.Unmarshal(trimmed, out); err != nil {
			return backoff.Permanent(&FetchError{Feed: feed, URL: url, Err: fmt.Errorf("malformed json: %w", err)})
		}

		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.RateLimitWait), 1), ctx)

	err := backoff.Retry(operation, policy)
	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		return &FetchError{Feed: feed, URL: url, Err: ctx.Err()}
	}

	return err
}

// FeedURLs resolves the sub-feed URLs listed in the feed index
func (c *Client) FeedURLs(ctx context.Context, indexURL string) (map[string]string, error) {
	cacheKey := fmt.Sprintf("gbfs-feeds:%s", indexURL)

	if c.IndexCache != nil {
		if cached, err := c.IndexCache.Get(ctx, cacheKey); err == nil {
			var feeds map[string]string
			if err := json.Unmarshal([]byte(cached), &feeds); err == nil {
				return feeds, nil
			}
		}
	}

	var envelope Envelope
	if err := c.getJSON(ctx, "gbfs", indexURL, &envelope); err != nil {
		return nil, err
	}

	links, err := parseFeedIndex(envelope.Data)
	if err != nil {
		return nil, &ParseError{Feed: "gbfs", Err: err}
	}

	feeds := map[string]string{}
	for _, link := range links {
		if link.Name != "" && link.URL != "" {
			feeds[link.Name] = link.URL
		}
	}

	if c.IndexCache != nil {
		feedsJSON, _ := json.Marshal(feeds)
		if err := c.IndexCache.Set(ctx, cacheKey, string(feedsJSON), store.WithExpiration(c.IndexCacheTTL)); err != nil {
			log.Debug().Err(err).Str("url", indexURL).Msg("Failed to cache feed index")
		}
	}

	return feeds, nil
}

// feedURL returns the first of names present in the index
func (c *Client) feedURL(ctx context.Context, indexURL string, names ...string) (string, string, error) {
	feeds, err := c.FeedURLs(ctx, indexURL)
	if err != nil {
		return "", "", err
	}

	for _, name := range names {
		if url, ok := feeds[name]; ok {
			return name, url, nil
		}
	}

	return "", "", fmt.Errorf("%v: %w", names, ErrFeedNotAvailable)
}

// parseFeedIndex handles both the per language layout of v1/v2 (data.<lang>.feeds) and the flat
// layout of v3 (data.feeds)
func parseFeedIndex(data json.RawMessage) ([]FeedLink, error) {
	if len(data) == 0 {
		return nil, errors.New("feed index has no data")
	}

	var flat struct {
		Feeds []FeedLink `json:"feeds"`
	}
	if err := json.Unmarshal(data, &flat); err == nil && len(flat.Feeds) > 0 {
		return flat.Feeds, nil
	}

	var languages map[string]json.RawMessage
	if err := json.Unmarshal(data, &languages); err != nil {
		return nil, err
	}

	var names []string
	for language := range languages {
		names = append(names, language)
	}
	sort.Strings(names)

	if _, ok := languages["en"]; ok {
		names = append([]string{"en"}, names...)
	}

	for _, language := range names {
		var localised struct {
			Feeds []FeedLink `json:"feeds"`
		}
		if err := json.Unmarshal(languages[language], &localised); err == nil && len(localised.Feeds) > 0 {
			return localised.Feeds, nil
		}
	}

	return nil, errors.New("feed index lists no feeds")
}
