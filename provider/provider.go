package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"socialrss/models"
)

// Provider names. The set of providers is closed: adding one means adding
// a new Client implementation, not branching on strings elsewhere.
const (
	Twitter = "twitter"
	VK      = "vk"
)

// Timeline is one page of a provider timeline, already normalized into
// feed items. NextCursor is empty when the provider has no more pages.
type Timeline struct {
	Items      []models.Item
	NextCursor string
}

// Client fetches a timeline page from a social network. Implementations
// own their credentials and route every network call through the replay
// cache before touching the wire.
type Client interface {
	Name() string

	// FetchTimeline fetches a single timeline page. cursor is the
	// provider-native pagination token, empty for the first page.
	FetchTimeline(ctx context.Context, cursor string) (*Timeline, error)
}

var (
	// ErrAuthentication means the provider rejected our credentials.
	// Not retryable.
	ErrAuthentication = errors.New("provider authentication failed")

	// ErrRateLimited is surfaced after backoff retries are exhausted.
	ErrRateLimited = errors.New("provider rate limit exceeded")

	// ErrUpstreamUnavailable covers transport failures (timeouts,
	// connection resets, 5xx) that survived the retry.
	ErrUpstreamUnavailable = errors.New("provider upstream unavailable")
)

// RateLimitError wraps ErrRateLimited and carries the provider's
// retry-after hint when it sent one.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return "provider rate limit exceeded"
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}
