// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm invokes large language models behind a single Client
// interface. Vendor clients (OpenAI-compatible, Claude) are wrapped with
// timeout, retry, rate-limit, and metrics decorators by New.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-trends/internal/httputil"
	"github.com/pdiddy/research-trends/internal/observability"
	"github.com/pdiddy/research-trends/pkg/types"
)

// ErrEmptyResponse is returned when a model replies with no text.
var ErrEmptyResponse = errors.New("llm returned empty response")

// Client sends a single-turn prompt and returns the model's text reply.
type Client interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Func adapts a function to the Client interface.
type Func func(ctx context.Context, prompt string) (string, error)

// Invoke implements Client.
func (f Func) Invoke(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// New builds the vendor client named by cfg.Provider and wraps it so that
// each attempt is bounded by cfg.Timeout, failures are retried up to
// cfg.MaxRetries times, and calls are throttled to cfg.RequestsPerSecond.
func New(cfg types.LLMConfig, metrics *observability.Metrics, logger zerolog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key for llm provider %q: add it to .secrets/ or set RESEARCH_TRENDS_LLM_API_KEY", cfg.Provider)
	}

	var base Client
	switch cfg.Provider {
	case types.ProviderOpenAI, "":
		base = NewOpenAI(cfg)
	case types.ProviderClaude:
		base = &Claude{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Client:    &http.Client{},
		}
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}

	var c Client = &Timeout{Next: base, Limit: cfg.Timeout}
	c = &Retrying{Next: c, MaxRetries: cfg.MaxRetries, Logger: logger}
	c = &Limited{Next: c, Limiter: httputil.NewRateLimiter(cfg.RequestsPerSecond, 1)}
	c = &Instrumented{Next: c, Metrics: metrics}
	return c, nil
}

// Timeout bounds each call with its own deadline.
type Timeout struct {
	Next  Client
	Limit time.Duration
}

// Invoke implements Client.
func (t *Timeout) Invoke(ctx context.Context, prompt string) (string, error) {
	if t.Limit <= 0 {
		return t.Next.Invoke(ctx, prompt)
	}
	ctx, cancel := context.WithTimeout(ctx, t.Limit)
	defer cancel()
	return t.Next.Invoke(ctx, prompt)
}

// backoffBase controls the base duration for exponential backoff between
// retries. Tests override this to avoid real sleeps.
var backoffBase = time.Second

// Retrying retries failed calls with exponential backoff. Cancellation of
// the parent context is never retried.
type Retrying struct {
	Next       Client
	MaxRetries int
	Logger     zerolog.Logger
}

// Invoke implements Client.
func (r *Retrying) Invoke(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			r.Logger.Debug().Int("attempt", attempt).Dur("backoff", backoff).Err(lastErr).Msg("retrying llm call")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := r.Next.Invoke(ctx, prompt)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("after %d retries: %w", r.MaxRetries, lastErr)
}

// Limited waits on a shared rate limiter before each call.
type Limited struct {
	Next    Client
	Limiter *httputil.RateLimiter
}

// Invoke implements Client.
func (l *Limited) Invoke(ctx context.Context, prompt string) (string, error) {
	if err := l.Limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}
	return l.Next.Invoke(ctx, prompt)
}

// Instrumented counts invocation outcomes.
type Instrumented struct {
	Next    Client
	Metrics *observability.Metrics
}

// Invoke implements Client.
func (i *Instrumented) Invoke(ctx context.Context, prompt string) (string, error) {
	text, err := i.Next.Invoke(ctx, prompt)
	if err != nil {
		i.Metrics.ObserveLLM("error")
		return "", err
	}
	i.Metrics.ObserveLLM("success")
	return text, nil
}

var fencePattern = regexp.MustCompile("(?s)^```[A-Za-z0-9_-]*[ \t]*\r?\n?(.*?)\r?\n?```$")

// StripCodeFence removes a Markdown code fence (```json, ```python, ```)
// wrapping the whole reply, and trims surrounding whitespace.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}
