package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Common errors. StatusError matches them through errors.Is.
var (
	ErrNotFound         = errors.New("http: resource not found")
	ErrForbidden        = errors.New("http: access forbidden")
	ErrUnauthorized     = errors.New("http: unauthorized")
	ErrServerError      = errors.New("http: server error")
	ErrRetriesExhausted = errors.New("http: retries exhausted")
)

// maxErrorBody bounds how much of a non-2xx body is kept on a StatusError.
const maxErrorBody = 4 * 1024

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	Code   int
	Status string
	// Body holds the first bytes of the response body, for callers that
	// extract an API error message from it.
	Body []byte
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("http: unexpected status %s", e.Status)
	}
	return fmt.Sprintf("http: unexpected status %d", e.Code)
}

// Is maps the status code onto the package sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	case ErrForbidden:
		return e.Code == http.StatusForbidden
	case ErrUnauthorized:
		return e.Code == http.StatusUnauthorized
	case ErrServerError:
		return e.Code >= 500
	}
	return false
}

// RetryError is returned once every attempt failed with a transient error.
// It matches ErrRetriesExhausted and unwraps to the last attempt's error.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Err}
}

// Options configures the HTTP client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 16
	MaxIdleConnsPerHost int

	// Timeout bounds a single attempt, including reading the body.
	// Default: 5m
	Timeout time.Duration

	// RetryAttempts is the number of retries after the first attempt.
	// Default: 2
	RetryAttempts int

	// RetryBackoff is the delay before the first retry.
	// Default: 500ms
	RetryBackoff time.Duration

	// RetryMultiplier grows the delay between consecutive retries.
	// Default: 3
	RetryMultiplier float64

	// RetryMaxBackoff caps the delay between retries.
	// Default: 5s
	RetryMaxBackoff time.Duration

	// UserAgent is sent on every request that does not set one.
	UserAgent string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 16,
		Timeout:             5 * time.Minute,
		RetryAttempts:       2,
		RetryBackoff:        500 * time.Millisecond,
		RetryMultiplier:     3,
		RetryMaxBackoff:     5 * time.Second,
		UserAgent:           "datagov/1.0",
	}
}

// Response is a successful (2xx) response whose body has not been read.
type Response struct {
	StatusCode int
	// ContentLength is -1 when the server did not declare a length.
	ContentLength int64
	ContentType   string
	Body          io.ReadCloser
}

// Client is an HTTP client for streaming downloads and small API calls.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = DefaultOptions().MaxIdleConnsPerHost
	}
	if opts.RetryMultiplier <= 0 {
		opts.RetryMultiplier = 2
	}
	if opts.RetryAttempts < 0 {
		opts.RetryAttempts = 0
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true, // Content-Length must describe the bytes we write
	}

	return &Client{
		client: &http.Client{Transport: transport},
		opts:   opts,
	}
}

// Options returns the options the client was built with.
func (c *Client) Options() Options {
	return c.opts
}

// Get performs a single GET attempt. Non-2xx responses are returned as
// *StatusError with the body already closed.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.Do(req)
}

// Do sends req once. Non-2xx responses are returned as *StatusError.
func (c *Client) Do(req *http.Request) (*Response, error) {
	if c.opts.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: body}
	}

	return &Response{
		StatusCode:    resp.StatusCode,
		ContentLength: resp.ContentLength,
		ContentType:   resp.Header.Get("Content-Type"),
		Body:          resp.Body,
	}, nil
}

// Retry calls fn until it succeeds, fails with a non-transient error, or
// the retry budget is spent. Each call gets its own context bounded by
// Options.Timeout. It returns the number of attempts made.
//
// When ctx ends the context error is returned as is. When every attempt
// failed transiently the result is a *RetryError.
func (c *Client) Retry(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return attempt, err
			}
		}

		err := c.attempt(ctx, attempt, fn)
		if err == nil {
			return attempt + 1, nil
		}
		if ctx.Err() != nil {
			return attempt + 1, ctx.Err()
		}
		if !IsTransient(err) {
			return attempt + 1, err
		}
		lastErr = err
	}

	return c.opts.RetryAttempts + 1, &RetryError{Attempts: c.opts.RetryAttempts + 1, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, attempt int, fn func(ctx context.Context, attempt int) error) error {
	if c.opts.Timeout <= 0 {
		return fn(ctx, attempt)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	err := fn(attemptCtx, attempt)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		// The transport does not always surface the deadline itself.
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}

// Backoff returns the un-jittered delay before retry number attempt (1-based).
func (c *Client) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := float64(c.opts.RetryBackoff) * math.Pow(c.opts.RetryMultiplier, float64(attempt-1))
	if c.opts.RetryMaxBackoff > 0 && d > float64(c.opts.RetryMaxBackoff) {
		return c.opts.RetryMaxBackoff
	}
	return time.Duration(d)
}

// backoff waits for an exponentially increasing duration with jitter.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	backoff := c.Backoff(attempt)

	// Add jitter: 0.5 to 1.5 of backoff
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	timer := time.NewTimer(jitter)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsTransient reports whether err is worth another attempt: 5xx responses,
// network errors, attempt timeouts and connections dropped mid-body.
// Context cancellation of the caller must be checked separately.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	// *url.Error implements net.Error, so this covers every transport failure.
	var ne net.Error
	return errors.As(err, &ne)
}
