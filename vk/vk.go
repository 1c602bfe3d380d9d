// Package vk fetches the VK newsfeed and normalizes wall posts into
// feed items.
//
// Note: VK HTML-escapes all the data it sends by API.
package vk

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
	"github.com/labstack/gommon/log"

	"socialrss/provider"
	"socialrss/replay"
)

const (
	DefaultBaseURL  = "https://api.vk.com"
	DefaultPageSize = 50

	apiVersion     = "5.131"
	requestTimeout = 30 * time.Second

	maxRateLimitAttempts = 3
)

// VK API error codes we care about. See https://dev.vk.com/reference/errors.
const (
	errCodeAuth            = 5
	errCodeTooManyRequests = 6
	errCodeRateLimit       = 29
)

// Credentials is the immutable VK secret bundle, loaded once at startup.
type Credentials struct {
	AccessToken string
}

// Client fetches newsfeed pages for the token's account. Every call is
// routed through the replay cache before touching the network.
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
	return provider.VK
}

// FetchTimeline fetches one newsfeed page. cursor is VK's next_from
// token from the previous page, empty for the first one.
func (c *Client) FetchTimeline(ctx context.Context, cursor string) (*provider.Timeline, error) {
	params := map[string]string{
		"endpoint": "newsfeed.get",
		"filters":  "post",
		"count":    strconv.Itoa(c.pageSize),
	}
	if cursor != "" {
		params["start_from"] = cursor
	}

	provider.FetchAttempts.WithLabelValues(provider.VK).Inc()
	start := time.Now()

	raw, err := c.cache.Do(provider.VK, params, func() ([]byte, error) {
		return c.request(ctx, cursor)
	})
	provider.FetchDuration.WithLabelValues(provider.VK).Observe(time.Since(start).Seconds())
	if err != nil {
		provider.FetchErrors.WithLabelValues(provider.VK, provider.ErrorKind(err)).Inc()
		return nil, err
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		provider.FetchErrors.WithLabelValues(provider.VK, "decode").Inc()
		return nil, fmt.Errorf("failed to decode vk response: %w", err)
	}

	var payload Payload
	if err := json.Unmarshal(envelope.Response, &payload); err != nil {
		provider.FetchErrors.WithLabelValues(provider.VK, "decode").Inc()
		return nil, fmt.Errorf("failed to decode vk newsfeed payload: %w", err)
	}

	return &provider.Timeline{
		Items:      Normalize(&payload),
		NextCursor: payload.NextFrom,
	}, nil
}

// apiResponse is the VK envelope: either a response object or an error
// object, always delivered with HTTP 200.
type apiResponse struct {
	Response json.RawMessage `json:"response"`
	Error    *apiError       `json:"error"`
}

type apiError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

// request performs the real HTTP call with retries: throttle errors back
// off exponentially up to maxRateLimitAttempts, transport failures retry
// once, authentication failures never retry. Only successful envelopes
// are returned, so error bodies never end up in the replay cache.
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

		if errors.Is(err, provider.ErrRateLimited) {
			rateLimitAttempts++
			if rateLimitAttempts >= maxRateLimitAttempts {
				return nil, err
			}
			wait := bo.NextBackOff()
			log.Warnf("Rate limited by VK (attempt %d), backing off for %s", rateLimitAttempts, wait)
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		transportAttempts++
		if transportAttempts > 1 {
			return nil, err
		}
		log.Warnf("Transient VK failure, retrying once: %s", err)
		if err := sleep(ctx, bo.NextBackOff()); err != nil {
			return nil, err
		}
	}
}

// do performs a single newsfeed.get call and classifies the response.
func (c *Client) do(ctx context.Context, cursor string) ([]byte, error) {
	u, err := url.Parse(c.baseURL + "/method/newsfeed.get")
	if err != nil {
		return nil, fmt.Errorf("failed to build newsfeed URL: %w", err)
	}

	q := u.Query()
	q.Set("access_token", c.creds.AccessToken)
	q.Set("v", apiVersion)
	q.Set("filters", "post")
	q.Set("count", strconv.Itoa(c.pageSize))
	if cursor != "" {
		q.Set("start_from", cursor)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create newsfeed request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &provider.RateLimitError{RetryAfter: 0}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: vk returned status %d", provider.ErrUpstreamUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", provider.ErrUpstreamUnavailable, err)
	}

	// VK delivers API errors inside a 200 response.
	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: undecodable vk response: %v", provider.ErrUpstreamUnavailable, err)
	}
	if envelope.Error != nil {
		return nil, classifyAPIError(envelope.Error)
	}

	return body, nil
}

func classifyAPIError(apiErr *apiError) error {
	switch apiErr.Code {
	case errCodeAuth:
		return fmt.Errorf("%w: vk error %d: %s", provider.ErrAuthentication, apiErr.Code, apiErr.Message)
	case errCodeTooManyRequests, errCodeRateLimit:
		return &provider.RateLimitError{RetryAfter: 0}
	default:
		return fmt.Errorf("%w: vk error %d: %s", provider.ErrUpstreamUnavailable, apiErr.Code, apiErr.Message)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
