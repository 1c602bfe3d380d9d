// Package twitter fetches a user timeline from the Twitter API v2 and
// normalizes tweets into feed items.
package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"socialrss/provider"
	"socialrss/replay"
)

const (
	DefaultBaseURL  = "https://api.twitter.com"
	DefaultPageSize = 50

	requestTimeout       = 30 * time.Second
	maxRateLimitAttempts = 3
)

// Credentials is the immutable secret bundle for the Twitter API,
// loaded once at startup.
type Credentials struct {
	BearerToken string
	UserID      string
}

// Client fetches timeline pages for a single user. Every call is routed
// through the replay cache before touching the network.
type Client struct {
	creds    *Credentials
	cache    *replay.Cache
	http     *http.Client
	baseURL  string
	pageSize int
}

func New(creds *Credentials, cache *replay.Cache, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Client{
		creds:    creds,
		cache:    cache,
		http:     &http.Client{Timeout: requestTimeout},
		baseURL:  DefaultBaseURL,
		pageSize: pageSize,
	}
}

func (c *Client) Name() string {
	return provider.Twitter
}

// FetchTimeline fetches one page of the user timeline. cursor is the
// pagination token from the previous page, empty for the first one.
func (c *Client) FetchTimeline(ctx context.Context, cursor string) (*provider.Timeline, error) {
	params := map[string]string{
		"endpoint":    "users/" + c.creds.UserID + "/tweets",
		"max_results": strconv.Itoa(c.pageSize),
	}
	if cursor != "" {
		params["pagination_token"] = cursor
	}

	provider.FetchAttempts.WithLabelValues(provider.Twitter).Inc()
	start := time.Now()

	raw, err := c.cache.Do(provider.Twitter, params, func() ([]byte, error) {
		return c.request(ctx, cursor)
	})
	provider.FetchDuration.WithLabelValues(provider.Twitter).Observe(time.Since(start).Seconds())
	if err != nil {
		provider.FetchErrors.WithLabelValues(provider.Twitter, provider.ErrorKind(err)).Inc()
		return nil, err
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		provider.FetchErrors.WithLabelValues(provider.Twitter, "decode").Inc()
		return nil, fmt.Errorf("failed to decode twitter timeline payload: %w", err)
	}

	return &provider.Timeline{
		Items:      Normalize(&payload),
		NextCursor: payload.Meta.NextToken,
	}, nil
}

// request performs the real HTTP call with retries: rate limits back off
// exponentially up to maxRateLimitAttempts, transport failures retry
// once, authentication failures never retry.
func (c *Client) request(ctx context.Context, cursor string) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.Multiplier = 2

	var rateLimitAttempts, transportAttempts int

	for {
		body, err := c.do(ctx, cursor)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, provider.ErrAuthentication) {
			return nil, err
		}

		var rateLimit *provider.RateLimitError
		if errors.As(err, &rateLimit) {
			rateLimitAttempts++
			if rateLimitAttempts >= maxRateLimitAttempts {
				return nil, err
			}
			wait := rateLimit.RetryAfter
			if wait <= 0 {
				wait = bo.NextBackOff()
			}
			log.WithFields(log.Fields{
				"provider": provider.Twitter,
				"attempt":  rateLimitAttempts,
				"wait":     wait,
			}).Warn("Rate limited by Twitter, backing off")
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		transportAttempts++
		if transportAttempts > 1 {
			return nil, err
		}
		log.WithFields(log.Fields{
			"provider": provider.Twitter,
			"error":    err,
		}).Warn("Transient Twitter failure, retrying once")
		if err := sleep(ctx, bo.NextBackOff()); err != nil {
			return nil, err
		}
	}
}

// do performs a single timeline request and classifies the response.
func (c *Client) do(ctx context.Context, cursor string) ([]byte, error) {
	u, err := url.Parse(fmt.Sprintf("%s/2/users/%s/tweets", c.baseURL, c.creds.UserID))
	if err != nil {
		return nil, fmt.Errorf("failed to build timeline URL: %w", err)
	}

	q := u.Query()
	q.Set("max_results", strconv.Itoa(c.pageSize))
	q.Set("tweet.fields", "created_at,entities,referenced_tweets,in_reply_to_user_id,attachments")
	q.Set("expansions", "author_id,attachments.media_keys,referenced_tweets.id,referenced_tweets.id.author_id")
	q.Set("media.fields", "type,url,preview_image_url")
	q.Set("user.fields", "name,username")
	if cursor != "" {
		q.Set("pagination_token", cursor)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create timeline request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.BearerToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read response: %v", provider.ErrUpstreamUnavailable, err)
		}
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: twitter returned status %d", provider.ErrAuthentication, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &provider.RateLimitError{RetryAfter: retryAfterHint(resp)}
	default:
		return nil, fmt.Errorf("%w: twitter returned status %d", provider.ErrUpstreamUnavailable, resp.StatusCode)
	}
}

// retryAfterHint extracts the rate limit reset hint, either the standard
// Retry-After header or Twitter's x-rate-limit-reset epoch timestamp.
func retryAfterHint(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	if v := resp.Header.Get("x-rate-limit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if wait := time.Until(time.Unix(epoch, 0)); wait > 0 {
				return wait
			}
		}
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
