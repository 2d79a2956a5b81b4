package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultBackoff is used when a provider is configured without one.
var DefaultBackoff = BackoffConfig{
	MaxRetries:      3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

// delay is the wait before retry number attempt (0-based), capped at MaxInterval.
func (b BackoffConfig) delay(attempt int) time.Duration {
	d := b.InitialInterval << uint(attempt)
	if d <= 0 || (b.MaxInterval > 0 && d > b.MaxInterval) {
		return b.MaxInterval
	}
	return d
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errClientError   = errors.New("request rejected")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// consecutiveFailuresToTrip opens the breaker; it half-opens again after breakerTimeout.
const (
	consecutiveFailuresToTrip = 5
	breakerTimeout            = 2 * time.Minute
)

// resilientClient sends GET requests to one upstream through a request
// limiter, a circuit breaker and bounded exponential backoff. Responses
// outside 2xx never reach the caller.
type resilientClient struct {
	http    *http.Client
	backoff BackoffConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// newResilientClient builds a client for the upstream called name. A zero
// requestsPerSecond disables pacing.
func newResilientClient(name string, client *http.Client, backoff BackoffConfig, requestsPerSecond float64) *resilientClient {
	c := &resilientClient{
		http:    client,
		backoff: backoff,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     breakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= consecutiveFailuresToTrip
			},
		}),
	}
	if requestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return c
}

// get fetches rawURL. Rate limiting (429) and server errors are retried up to
// MaxRetries times; any other non-2xx status fails at once. A Retry-After
// header stretches the wait, never beyond MaxInterval.
func (c *resilientClient) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if c.http == nil {
		return nil, errNoHTTPClient
	}
	if c.backoff.MaxRetries < 0 || c.backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, retryAfter, err := c.attempt(ctx, rawURL)
		if err == nil {
			return resp, nil
		}

		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		case errors.Is(err, errClientError), ctx.Err() != nil:
			return nil, err
		case attempt >= c.backoff.MaxRetries:
			return nil, err
		}

		wait := c.backoff.delay(attempt)
		if retryAfter > wait {
			wait = retryAfter
			if c.backoff.MaxInterval > 0 && wait > c.backoff.MaxInterval {
				wait = c.backoff.MaxInterval
			}
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// attempt performs one request inside the breaker.
func (c *resilientClient) attempt(ctx context.Context, rawURL string) (*http.Response, time.Duration, error) {
	var retryAfter time.Duration

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
			drain(resp)
			return nil, errRateLimited
		case resp.StatusCode >= 500:
			drain(resp)
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			drain(resp)
			return nil, fmt.Errorf("%w: %d", errClientError, resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		return nil, retryAfter, err
	}
	return result.(*http.Response), 0, nil
}

// parseRetryAfter reads the delay-seconds form of Retry-After.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// drain discards the rest of a response body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
