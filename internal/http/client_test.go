package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions() Options {
	opts := DefaultOptions()
	opts.RetryBackoff = time.Millisecond
	opts.RetryMaxBackoff = 5 * time.Millisecond
	opts.Timeout = 2 * time.Second
	return opts
}

func TestGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "datagov/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("a,b\n1,2\n"))
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(body))
	assert.Equal(t, int64(8), resp.ContentLength)
	assert.Equal(t, "text/csv", resp.ContentType)
}

func TestGetStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success": false}`))
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	_, err := client.Get(context.Background(), server.URL)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, `{"success": false}`, string(se.Body))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrServerError)
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(fastOptions())
	n, err := client.Retry(context.Background(), func(ctx context.Context, attempt int) error {
		resp, err := client.Get(ctx, server.URL)
		if err != nil {
			return err
		}
		return resp.Body.Close()
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRetryExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(fastOptions())
	n, err := client.Retry(context.Background(), func(ctx context.Context, attempt int) error {
		_, err := client.Get(ctx, server.URL)
		return err
	})
	require.Error(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int32(3), attempts.Load())
	assert.ErrorIs(t, err, ErrRetriesExhausted)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
}

func TestNoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(fastOptions())
	n, err := client.Retry(context.Background(), func(ctx context.Context, attempt int) error {
		_, err := client.Get(ctx, server.URL)
		return err
	})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestRetryAttemptTimeout(t *testing.T) {
	var attempts atomic.Int32
	release := make(chan struct{})
	defer close(release)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()

	opts := fastOptions()
	opts.Timeout = 20 * time.Millisecond
	opts.RetryAttempts = 1
	client := NewClient(opts)

	_, err := client.Retry(context.Background(), func(ctx context.Context, attempt int) error {
		_, err := client.Get(ctx, server.URL)
		return err
	})
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestRetryContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	opts := fastOptions()
	opts.RetryBackoff = time.Second
	opts.RetryMaxBackoff = time.Second
	client := NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Retry(ctx, func(ctx context.Context, attempt int) error {
		_, err := client.Get(ctx, server.URL)
		return err
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBackoff(t *testing.T) {
	client := NewClient(DefaultOptions())

	assert.Equal(t, time.Duration(0), client.Backoff(0))
	assert.Equal(t, 500*time.Millisecond, client.Backoff(1))
	assert.Equal(t, 1500*time.Millisecond, client.Backoff(2))
	assert.Equal(t, 4500*time.Millisecond, client.Backoff(3))
	assert.Equal(t, 5*time.Second, client.Backoff(4))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server error", &StatusError{Code: 503}, true},
		{"not found", &StatusError{Code: 404}, false},
		{"too many requests", &StatusError{Code: 429}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("disk full"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
