package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/devtrack/github-activity-tracker/internal/cache"
	apperrors "github.com/devtrack/github-activity-tracker/internal/errors"
	"github.com/devtrack/github-activity-tracker/internal/monitoring"
)

// cacheKeyPrefix namespaces event lists in the shared cache.
const cacheKeyPrefix = "events:"

// Client fetches user event lists from the GitHub API, using a shared TTL
// cache as a write-through layer. A cache miss costs exactly one upstream
// round trip; the client never retries on its own.
type Client struct {
	httpClient *http.Client
	cache      *cache.Cache[[]Event]
	metrics    *monitoring.Metrics
	baseURL    string
}

// NewClient creates a GitHub API client. baseURL must not have a trailing
// slash. timeout bounds each upstream request. metrics may be nil.
func NewClient(baseURL string, timeout time.Duration, eventCache *cache.Cache[[]Event], metrics *monitoring.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		cache:      eventCache,
		metrics:    metrics,
		baseURL:    baseURL,
	}
}

// FetchEvents returns the recent public events for username, serving from
// cache when possible. Failures are typed: *errors.AppError with category
// not_found, rate_limit or upstream. Failed fetches are never cached.
func (c *Client) FetchEvents(ctx context.Context, username string) ([]Event, error) {
	key := cacheKeyPrefix + username

	if events, ok := c.cache.Get(key); ok {
		slog.Debug("events cache hit", "username", username)
		if c.metrics != nil {
			c.metrics.IncrementCacheHit()
		}
		return events, nil
	}

	if c.metrics != nil {
		c.metrics.IncrementCacheMiss()
		c.metrics.IncrementGitHubCall()
	}

	events, err := c.fetchFromAPI(ctx, username)
	if err != nil {
		if c.metrics != nil {
			c.metrics.IncrementGitHubError()
		}
		return nil, err
	}

	c.cache.Set(key, events)
	return events, nil
}

// fetchFromAPI performs the actual GET {baseURL}/users/{username}/events.
func (c *Client) fetchFromAPI(ctx context.Context, username string) ([]Event, error) {
	url := fmt.Sprintf("%s/users/%s/events", c.baseURL, username)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewUpstreamError("failed to build github API request", 0, err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "GitHubActivityTracker/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// A caller-cancelled request is abandoned, not translated; the
		// handler layer decides how to report it.
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, apperrors.NewUpstreamError("github API request failed", 0, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.NewUserNotFoundError(username)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperrors.NewRateLimitError(parseRetryAfter(resp.Header.Get("Retry-After")))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, apperrors.NewUpstreamError(
			fmt.Sprintf("github API error: status %d", resp.StatusCode),
			resp.StatusCode, nil)
	}

	var events []Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, apperrors.NewUpstreamError("failed to decode github events response", resp.StatusCode, err)
	}

	return events, nil
}

// parseRetryAfter parses a Retry-After header value in seconds.
// Returns zero if the header is absent or not an integer.
func parseRetryAfter(value string) int {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}
