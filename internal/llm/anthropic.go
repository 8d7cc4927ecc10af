// Package llm provides the AI provider orchestration and resilience layer.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	. "github.com/pkgadvisor/pkgadvisor/internal/logging"
	"github.com/pkgadvisor/pkgadvisor/internal/types"
)

const (
	anthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion  = "2023-06-01"
)

// AnthropicClient is the direct chat provider adapter.
type AnthropicClient struct {
	cfg      AnthropicConfig
	endpoint string
	hc       *Client
}

// anthropicRequest is the /v1/messages request body.
type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse is the subset of the /v1/messages success body we read.
type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewAnthropicClient creates the direct chat adapter.
func NewAnthropicClient(cfg AnthropicConfig, timeout time.Duration) *AnthropicClient {
	return &AnthropicClient{
		cfg:      cfg,
		endpoint: anthropicEndpoint,
		hc:       NewClient("Claude", timeout),
	}
}

// Configured reports whether the adapter can make network calls.
func (c *AnthropicClient) Configured() bool {
	return c.cfg.APIKey != ""
}

// Analyze sends the single-shot upgrade analysis prompt.
func (c *AnthropicClient) Analyze(ctx context.Context, subject types.AnalysisSubject) (string, error) {
	return c.Complete(ctx, analysisPrompt(subject))
}

// Complete sends one user turn and returns the first text block of the answer.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", notConfigured("Claude", "Anthropic API key")
	}

	payload := anthropicRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &ProviderError{Provider: "Claude", Kind: KindBadRequest, Detail: err.Error()}
	}

	L_debug("llm: claude request", "model", c.cfg.Model, "promptLen", len(prompt))

	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.cfg.APIKey)
		req.Header.Set("anthropic-version", anthropicVersion)
		return req, nil
	}

	return c.hc.Execute(ctx, build, parseAnthropicBody)
}

// parseAnthropicBody extracts content[0].text from a success body.
func parseAnthropicBody(body []byte) (string, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decoding messages response: %w", err)
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == "" {
		return "", fmt.Errorf("messages response has no text content")
	}
	return resp.Content[0].Text, nil
}
