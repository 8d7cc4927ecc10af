// Package llm provides the AI provider orchestration and resilience layer.
package llm

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"time"

	. "github.com/pkgadvisor/pkgadvisor/internal/logging"
	"github.com/pkgadvisor/pkgadvisor/internal/types"
)

// BedrockClient is the cloud gateway provider adapter.
type BedrockClient struct {
	cfg     BedrockConfig
	hc      *Client
	catalog *Catalog
	now     func() time.Time
	baseURL string // test override; empty = real gateway host
}

// NewBedrockClient creates the cloud gateway adapter with its own model catalog.
func NewBedrockClient(cfg BedrockConfig, timeout time.Duration) *BedrockClient {
	return &BedrockClient{
		cfg:     cfg,
		hc:      NewClient("Bedrock", timeout),
		catalog: NewCatalog(cfg, timeout),
		now:     time.Now,
	}
}

// Catalog exposes the model catalog for the models CLI command.
func (b *BedrockClient) Catalog() *Catalog {
	return b.catalog
}

// Configured reports whether either auth mechanism is available.
func (b *BedrockClient) Configured() bool {
	return b.cfg.HasCredentials()
}

// Analyze sends the single-shot upgrade analysis prompt.
func (b *BedrockClient) Analyze(ctx context.Context, subject types.AnalysisSubject) (string, error) {
	return b.Complete(ctx, analysisPrompt(subject))
}

// Complete invokes the selected gateway model with one prompt.
func (b *BedrockClient) Complete(ctx context.Context, prompt string) (string, error) {
	if !b.Configured() {
		return "", notConfigured("Bedrock", "Bedrock credentials")
	}

	modelID := b.resolveModel(ctx)
	family := familyFor(modelID)

	body, err := family.BuildBody(prompt, b.cfg.MaxTokens)
	if err != nil {
		return "", &ProviderError{Provider: "Bedrock", Kind: KindBadRequest, Detail: err.Error()}
	}

	host := "bedrock-runtime." + b.cfg.Region + ".amazonaws.com"
	invokeURL := "https://" + host + "/model/" + url.PathEscape(modelID) + "/invoke"
	if b.baseURL != "" {
		invokeURL = b.baseURL + "/model/" + url.PathEscape(modelID) + "/invoke"
	}

	L_debug("llm: bedrock invoke", "model", modelID, "family", family.Name, "region", b.cfg.Region)

	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, invokeURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if b.cfg.APIKey != "" {
			// API-key auth is simpler and bypasses signing entirely.
			req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
			return req, nil
		}
		creds := Credentials{AccessKeyID: b.cfg.AccessKeyID, SecretAccessKey: b.cfg.SecretAccessKey}
		// Signed fresh per attempt: a reused timestamp would fall outside the
		// signature validity window on slow retries.
		SignRequest(req, body, creds, b.cfg.Region, "bedrock-runtime", b.now())
		return req, nil
	}

	return b.hc.Execute(ctx, build, family.ParseBody)
}

// resolveModel returns the configured model, warning when the catalog does not
// list it, or picks the best available model when none is configured.
func (b *BedrockClient) resolveModel(ctx context.Context) string {
	if b.cfg.ModelID != "" {
		if !b.catalogLists(ctx, b.cfg.ModelID) {
			L_warn("llm: configured bedrock model not in catalog, using anyway", "model", b.cfg.ModelID)
		}
		return b.cfg.ModelID
	}
	if m, ok := b.catalog.BestModel(ctx, b.cfg.Region, UseCaseQuality); ok {
		L_info("llm: bedrock model selected from catalog", "model", m.ID)
		return m.ID
	}
	return "anthropic.claude-3-5-sonnet-20241022-v2:0"
}

func (b *BedrockClient) catalogLists(ctx context.Context, modelID string) bool {
	for _, m := range b.catalog.TextModels(ctx, b.cfg.Region, false) {
		if m.ID == modelID {
			return true
		}
	}
	return false
}
