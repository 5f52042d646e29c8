// delivery.go implements the HTTP Delivery Client. Every outbound call goes
// through the same resilience path: per-attempt timeout, retries with
// exponential backoff on transient failures, and a circuit breaker that counts
// whole reports.

package sentinel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/sony/gobreaker/v2"
)

// Header names set on every report request.
const (
	HeaderEventID = "X-Sentinel-Event-ID"
)

// Client delivers envelopes to the collection endpoint. It is safe for
// concurrent use; retries for one envelope are always sequential.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[Outcome] // nil when disabled
	sleep   func(ctx context.Context, d time.Duration) error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientHTTP sets the underlying *http.Client.
func WithClientHTTP(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithClientSleep overrides the wait between retries.
// This is intended for testing to avoid real delays.
func WithClientSleep(fn func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// attemptResult is what one HTTP exchange leaves behind once its body has
// been drained.
type attemptResult struct {
	status     int
	retryAfter string
}

// NewClient creates a delivery client for cfg.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:   cfg,
		http:  &http.Client{},
		sleep: sleepContext,
	}

	if cfg.BreakerThreshold > 0 {
		threshold := uint32(cfg.BreakerThreshold)
		c.breaker = gobreaker.NewCircuitBreaker[Outcome](gobreaker.Settings{
			Name:        "sentinel:" + hostOf(cfg.SentinelURL),
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				return err == nil
			},
		})
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send delivers env, retrying transient failures up to MaxRetries times.
//
// Connection errors, timeouts, 429 and 5xx responses are transient. Any other
// 4xx is terminal and is not retried. The circuit breaker sees one result per
// report: once it is open, a report fails with ErrCircuitOpen before its first
// attempt, and a report that has started always runs its full retry budget.
func (c *Client) Send(ctx context.Context, env Envelope) Outcome {
	if c.breaker == nil {
		return c.send(ctx, env)
	}

	var out Outcome
	_, err := c.breaker.Execute(func() (Outcome, error) {
		out = c.send(ctx, env)
		if endpointFailed(ctx, out) {
			return out, out.Err
		}
		return out, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Outcome{
			Status:  StatusFailed,
			EventID: env.EventID,
			Err:     &DeliveryError{Err: fmt.Errorf("%w: %w", ErrCircuitOpen, err)},
		}
	}
	return out
}

// endpointFailed reports whether out counts against the endpoint's health.
// Terminal 4xx rejections and caller cancellation do not.
func endpointFailed(ctx context.Context, out Outcome) bool {
	if out.Status != StatusFailed || ctx.Err() != nil {
		return false
	}
	var de *DeliveryError
	return errors.As(out.Err, &de) && de.Retryable
}

func (c *Client) send(ctx context.Context, env Envelope) Outcome {
	out := Outcome{EventID: env.EventID}

	body, encoding, err := c.encode(env)
	if err != nil {
		out.Status = StatusFailed
		out.Err = &DeliveryError{Err: fmt.Errorf("encode envelope: %w", err)}
		return out
	}

	maxAttempts := 1 + c.cfg.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		res, err := c.attempt(ctx, env.EventID, body, encoding)
		out.Attempts++
		if res.status != 0 {
			out.StatusCode = res.status
		}

		if err == nil {
			if res.status >= 400 {
				out.Status = StatusFailed
				out.Err = &DeliveryError{
					StatusCode: res.status,
					Err:        fmt.Errorf("endpoint rejected report with %d", res.status),
				}
				return out
			}
			out.Status = StatusDelivered
			out.Err = nil
			return out
		}

		out.Status = StatusFailed
		out.Err = err
		if ctx.Err() != nil {
			return out
		}
		if attempt < maxAttempts-1 {
			if err := c.sleep(ctx, c.computeBackoff(attempt, res)); err != nil {
				return out
			}
		}
	}
	return out
}

// attempt issues one request. Connection errors, 5xx and 429 come back as a
// retryable *DeliveryError.
func (c *Client) attempt(ctx context.Context, eventID string, body []byte, encoding string) (attemptResult, error) {
	res, err := c.do(ctx, eventID, body, encoding)
	if err != nil {
		return res, &DeliveryError{StatusCode: res.status, Retryable: true, Err: err}
	}
	if res.status >= 500 || res.status == http.StatusTooManyRequests {
		return res, &DeliveryError{
			StatusCode: res.status,
			Retryable:  true,
			Err:        fmt.Errorf("endpoint returned %d", res.status),
		}
	}
	return res, nil
}

// do performs a single HTTP exchange bounded by the configured timeout.
func (c *Client) do(ctx context.Context, eventID string, body []byte, encoding string) (attemptResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, c.cfg.Method, c.cfg.reportURL(), bytes.NewReader(body))
	if err != nil {
		return attemptResult{}, err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventID, eventID)
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return attemptResult{}, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return attemptResult{
		status:     resp.StatusCode,
		retryAfter: resp.Header.Get("Retry-After"),
	}, nil
}

// Ping issues a GET against the health path. It does not go through the
// circuit breaker and is never retried.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.healthURL(), nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &DeliveryError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 400 {
		return &DeliveryError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("health check returned %d", resp.StatusCode),
		}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", UserAgent)
}

// encode serializes env, gzipping it when compression is enabled.
func (c *Client) encode(env Envelope) ([]byte, string, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, "", err
	}
	if !c.cfg.Compress {
		return raw, "", nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, "", err
	}
	if err := zw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "gzip", nil
}

// computeBackoff determines the wait before the next attempt. It respects a
// Retry-After header, otherwise uses exponential backoff with jitter clamped
// to [RetryMinWait, RetryMaxWait].
func (c *Client) computeBackoff(attempt int, res attemptResult) time.Duration {
	minWait, maxWait := c.cfg.RetryMinWait, c.cfg.RetryMaxWait

	if res.retryAfter != "" {
		if seconds, err := strconv.Atoi(res.retryAfter); err == nil && seconds > 0 {
			return min(time.Duration(seconds)*time.Second, maxWait)
		}
		if t, err := http.ParseTime(res.retryAfter); err == nil {
			wait := time.Until(t)
			if wait <= 0 {
				return minWait
			}
			return min(wait, maxWait)
		}
	}

	base := math.Min(float64(minWait)*math.Pow(2, float64(attempt)), float64(maxWait))
	if base <= float64(minWait) {
		return minWait
	}
	return time.Duration(float64(minWait) + rand.Float64()*(base-float64(minWait)))
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
