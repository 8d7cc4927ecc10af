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

const perplexityEndpoint = "https://api.perplexity.ai/chat/completions"

// PerplexityClient is the research provider adapter.
type PerplexityClient struct {
	cfg      PerplexityConfig
	endpoint string
	hc       *Client
}

// perplexityRequest is the chat/completions request body.
type perplexityRequest struct {
	Model       string              `json:"model"`
	Messages    []perplexityMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature float64             `json:"temperature"`
}

type perplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// perplexityResponse is the subset of the success body we read.
type perplexityResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewPerplexityClient creates the research adapter.
func NewPerplexityClient(cfg PerplexityConfig, timeout time.Duration) *PerplexityClient {
	return &PerplexityClient{
		cfg:      cfg,
		endpoint: perplexityEndpoint,
		hc:       NewClient("Perplexity", timeout),
	}
}

// Configured reports whether the adapter can make network calls.
func (c *PerplexityClient) Configured() bool {
	return c.cfg.APIKey != ""
}

// Research runs the structured upgrade questionnaire for a package and returns
// the raw research text.
func (c *PerplexityClient) Research(ctx context.Context, subject types.AnalysisSubject) (string, error) {
	if !c.Configured() {
		return "", notConfigured("Perplexity", "Perplexity API key")
	}

	payload := perplexityRequest{
		Model: c.cfg.Model,
		Messages: []perplexityMessage{
			{Role: "system", Content: researchSystemPrompt},
			{Role: "user", Content: researchPrompt(subject)},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: 0.2,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &ProviderError{Provider: "Perplexity", Kind: KindBadRequest, Detail: err.Error()}
	}

	L_debug("llm: perplexity research request", "model", c.cfg.Model, "package", subject.Label())

	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		return req, nil
	}

	return c.hc.Execute(ctx, build, parsePerplexityBody)
}

// parsePerplexityBody extracts choices[0].message.content from a success body.
func parsePerplexityBody(body []byte) (string, error) {
	var resp perplexityResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decoding completions response: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("completions response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
