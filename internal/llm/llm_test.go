// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-trends/internal/observability"
	"github.com/pdiddy/research-trends/pkg/types"
)

func fastBackoff(t *testing.T) {
	t.Helper()
	orig := backoffBase
	backoffBase = time.Millisecond
	t.Cleanup(func() { backoffBase = orig })
}

func TestClaude_Invoke(t *testing.T) {
	var got claudeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"hello "},{"type":"tool_use"},{"type":"text","text":"world"}]}`))
	}))
	defer srv.Close()

	orig := claudeAPIURL
	claudeAPIURL = srv.URL
	defer func() { claudeAPIURL = orig }()

	c := &Claude{APIKey: "test-key", Model: "claude-test", Client: srv.Client()}
	text, err := c.Invoke(context.Background(), "say hi")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.Equal(t, "claude-test", got.Model)
	assert.Equal(t, 4096, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "say hi", got.Messages[0].Content)
}

func TestClaude_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, `boom`, "returned 500"},
		{"empty content", http.StatusOK, `{"content":[]}`, "empty response"},
		{"bad json", http.StatusOK, `{`, "decoding"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			orig := claudeAPIURL
			claudeAPIURL = srv.URL
			defer func() { claudeAPIURL = orig }()

			_, err := (&Claude{APIKey: "k", Model: "m"}).Invoke(context.Background(), "p")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestOpenAI_Invoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body["model"])
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  1  "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI(types.LLMConfig{APIKey: "sk-test", Model: "gpt-test", BaseURL: srv.URL + "/v1/"})
	text, err := c.Invoke(context.Background(), "decide")
	require.NoError(t, err)
	assert.Equal(t, "1", text)
}

func TestOpenAI_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAI(types.LLMConfig{APIKey: "sk", Model: "m", BaseURL: srv.URL + "/v1"})
	_, err := c.Invoke(context.Background(), "p")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestRetrying(t *testing.T) {
	fastBackoff(t)

	var calls atomic.Int32
	flaky := Func(func(ctx context.Context, prompt string) (string, error) {
		if calls.Add(1) < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})

	r := &Retrying{Next: flaky, MaxRetries: 3, Logger: zerolog.Nop()}
	text, err := r.Invoke(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetrying_Exhausted(t *testing.T) {
	fastBackoff(t)

	var calls atomic.Int32
	failing := Func(func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		return "", errors.New("down")
	})

	r := &Retrying{Next: failing, MaxRetries: 2, Logger: zerolog.Nop()}
	_, err := r.Invoke(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetrying_CancelledContext(t *testing.T) {
	fastBackoff(t)

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	c := Func(func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		cancel()
		return "", ctx.Err()
	})

	r := &Retrying{Next: c, MaxRetries: 5, Logger: zerolog.Nop()}
	_, err := r.Invoke(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTimeout(t *testing.T) {
	slow := Func(func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	_, err := (&Timeout{Next: slow, Limit: 10 * time.Millisecond}).Invoke(context.Background(), "p")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInstrumented(t *testing.T) {
	m := observability.NewMetrics()
	ok := &Instrumented{Next: Func(func(context.Context, string) (string, error) { return "x", nil }), Metrics: m}
	bad := &Instrumented{Next: Func(func(context.Context, string) (string, error) { return "", errors.New("no") }), Metrics: m}

	_, _ = ok.Invoke(context.Background(), "p")
	_, _ = ok.Invoke(context.Background(), "p")
	_, _ = bad.Invoke(context.Background(), "p")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LLMRequests.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequests.WithLabelValues("error")))
}

func TestNew(t *testing.T) {
	_, err := New(types.LLMConfig{Provider: types.ProviderOpenAI, Model: "m"}, nil, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API key")

	_, err = New(types.LLMConfig{Provider: "mystery", APIKey: "k"}, nil, zerolog.Nop())
	require.Error(t, err)

	c, err := New(types.LLMConfig{Provider: types.ProviderClaude, Model: "m", APIKey: "k"}, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Instrumented{}, c)
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1", "1"},
		{"  plain text \n", "plain text"},
		{"```json\n[\"a\", \"b\"]\n```", `["a", "b"]`},
		{"```\n0\n```", "0"},
		{"```python\n['x']\n```", "['x']"},
		{"text with ``` inside", "text with ``` inside"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, StripCodeFence(tc.in), "input %q", tc.in)
	}
}
