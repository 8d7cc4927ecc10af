// Package llm provides the AI provider orchestration and resilience layer.
package llm

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	. "github.com/pkgadvisor/pkgadvisor/internal/logging"
)

const (
	// 4 attempts total: 1 initial + 3 retries, with 1s/2s/4s waits between them.
	defaultMaxAttempts  = 4
	defaultInitialDelay = time.Second

	// Response bodies are bounded; anything larger is not a model answer.
	maxBodyBytes = 4 << 20

	detailLimit = 500
)

// RequestBuilder creates a fresh outbound request for one attempt. A new request
// is built per attempt so retried calls never share header or body state, and so
// signed requests carry a fresh timestamp.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// ResponseParser extracts the answer text from a success-status body.
type ResponseParser func(body []byte) (string, error)

// Client executes outbound HTTP calls for one provider: at most one call in
// flight per instance, transient failures retried with exponential backoff.
type Client struct {
	provider string
	hc       *http.Client
	gate     chan struct{}

	maxAttempts  int
	initialDelay time.Duration
	timer        backoff.Timer // nil = real timer; tests inject a fake
}

// NewClient creates a transport client for one provider.
func NewClient(provider string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		provider:     provider,
		hc:           &http.Client{Timeout: timeout},
		gate:         make(chan struct{}, 1),
		maxAttempts:  defaultMaxAttempts,
		initialDelay: defaultInitialDelay,
	}
}

// Execute runs one logical provider call through the retry policy and returns
// the parsed answer text. All failures come back as *ProviderError (or a
// context error when the caller cancelled).
func (c *Client) Execute(ctx context.Context, build RequestBuilder, parse ResponseParser) (string, error) {
	// Single in-flight slot per client instance. Acts as a per-provider
	// backpressure valve when many packages are analyzed concurrently.
	select {
	case c.gate <- struct{}{}:
		defer func() { <-c.gate }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.maxAttempts-1)), ctx)

	attempt := 0
	op := func() (string, error) {
		if err := ctx.Err(); err != nil {
			return "", backoff.Permanent(err)
		}
		attempt++
		text, err := c.attempt(ctx, build, parse)
		if err != nil && !retryable(KindOf(err)) {
			return "", backoff.Permanent(err)
		}
		return text, err
	}

	notify := func(err error, wait time.Duration) {
		L_warn("llm: transient failure, backing off",
			"provider", c.provider, "attempt", attempt, "wait", wait, "error", err)
	}

	text, err := backoff.RetryNotifyWithTimerAndData(op, policy, notify, c.timer)
	if err != nil {
		L_error("llm: request failed", "provider", c.provider, "attempts", attempt, "error", err)
		return "", err
	}
	if attempt > 1 {
		L_info("llm: request succeeded after retry", "provider", c.provider, "attempts", attempt)
	}
	return text, nil
}

// attempt performs a single HTTP exchange and classifies the outcome.
func (c *Client) attempt(ctx context.Context, build RequestBuilder, parse ResponseParser) (string, error) {
	req, err := build(ctx)
	if err != nil {
		return "", &ProviderError{Provider: c.provider, Kind: KindBadRequest, Detail: err.Error()}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: c.provider, Kind: KindTransportFailure, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &ProviderError{Provider: c.provider, Kind: KindTransportFailure, Detail: err.Error()}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		text, perr := parse(body)
		if perr != nil {
			return "", &ProviderError{Provider: c.provider, Kind: KindParseFailure, Detail: perr.Error()}
		}
		return text, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &ProviderError{Provider: c.provider, Kind: KindRateLimited, Status: resp.StatusCode, Detail: excerpt(body)}
	case resp.StatusCode == 529: // non-standard "overloaded" status
		return "", &ProviderError{Provider: c.provider, Kind: KindOverloaded, Status: resp.StatusCode, Detail: excerpt(body)}
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return "", &ProviderError{Provider: c.provider, Kind: KindAuthFailure, Status: resp.StatusCode, Detail: excerpt(body)}
	case resp.StatusCode == http.StatusBadRequest:
		return "", &ProviderError{Provider: c.provider, Kind: KindBadRequest, Status: resp.StatusCode, Detail: excerpt(body)}
	default:
		return "", &ProviderError{Provider: c.provider, Kind: KindHTTPError, Status: resp.StatusCode, Detail: excerpt(body)}
	}
}

// excerpt truncates a response body for error details.
func excerpt(body []byte) string {
	s := string(body)
	if len(s) > detailLimit {
		return s[:detailLimit] + "..."
	}
	return s
}
