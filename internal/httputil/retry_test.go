// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	RetryBaseDelay = time.Millisecond
}

// sequenceServer answers each request with the next status in statuses,
// repeating the last one once the sequence is exhausted.
func sequenceServer(t *testing.T, statuses ...int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := int(atomic.AddInt32(&calls, 1))
		if n > len(statuses) {
			n = len(statuses)
		}
		w.WriteHeader(statuses[n-1])
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestDoWithRetry(t *testing.T) {
	tests := []struct {
		name       string
		statuses   []int
		maxRetries int
		wantStatus int
		wantCalls  int32
	}{
		{"ok first time", []int{200}, 5, 200, 1},
		{"429 then ok", []int{429, 429, 200}, 5, 200, 3},
		{"503 then ok", []int{503, 200}, 2, 200, 2},
		{"budget exhausted returns last response", []int{429}, 3, 429, 4},
		{"zero budget means default", []int{503}, 0, 503, 1 + defaultMaxRetries},
		{"404 is final", []int{404, 200}, 5, 404, 1},
		{"500 is final", []int{500, 200}, 5, 500, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, calls := sequenceServer(t, tc.statuses...)
			req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
			require.NoError(t, err)

			resp, err := DoWithRetry(context.Background(), srv.Client(), req, tc.maxRetries)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, tc.wantStatus, resp.StatusCode)
			assert.Equal(t, tc.wantCalls, atomic.LoadInt32(calls))
		})
	}
}

func TestDoWithRetryReplaysBody(t *testing.T) {
	var bodies []string
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`{"prompt":"hi"}`))
	require.NoError(t, err)

	resp, err := DoWithRetry(context.Background(), srv.Client(), req, 2)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{`{"prompt":"hi"}`, `{"prompt":"hi"}`}, bodies)
}

func TestDoWithRetryStopsOnCancel(t *testing.T) {
	srv, calls := sequenceServer(t, http.StatusServiceUnavailable)

	old := RetryBaseDelay
	RetryBaseDelay = time.Second
	defer func() { RetryBaseDelay = old }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = DoWithRetry(ctx, srv.Client(), req, 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestBackoff(t *testing.T) {
	old := RetryBaseDelay
	RetryBaseDelay = 500 * time.Millisecond
	defer func() { RetryBaseDelay = old }()

	tests := []struct {
		attempt    int
		retryAfter string
		want       time.Duration
	}{
		{0, "", 500 * time.Millisecond},
		{1, "", time.Second},
		{3, "soon", 4 * time.Second},
		{3, "2", 2 * time.Second},
		{0, "0", 0},
		{0, "-5", 500 * time.Millisecond},
		{0, "3600", maxRetryAfter},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, backoff(tc.attempt, tc.retryAfter), "attempt %d retry-after %q", tc.attempt, tc.retryAfter)
	}
}

func TestRateLimiter(t *testing.T) {
	var disabled *RateLimiter
	assert.Nil(t, NewRateLimiter(0, 1))
	assert.Nil(t, NewRateLimiter(-1, 1))
	require.NoError(t, disabled.Wait(context.Background()))

	rl := NewRateLimiter(500, 0)
	require.NotNil(t, rl)
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rl.Wait(ctx), context.Canceled)
}
