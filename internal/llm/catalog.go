// Package llm - Bedrock model catalog discovery and cache.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	. "github.com/pkgadvisor/pkgadvisor/internal/logging"
)

// catalogTTL is how long a discovered region entry stays trusted.
const catalogTTL = 24 * time.Hour

// ModelDescriptor describes one gateway-hosted model. Immutable once discovered.
type ModelDescriptor struct {
	ID               string
	Name             string
	Vendor           string
	InputModalities  []string
	OutputModalities []string
	Streaming        bool
	Lifecycle        string // "ACTIVE" or "LEGACY"
}

// UseCase selects a model recommendation heuristic.
type UseCase string

const (
	UseCaseQuality  UseCase = "quality"
	UseCaseFastest  UseCase = "fastest"
	UseCaseCheapest UseCase = "cheapest"
	UseCasePowerful UseCase = "powerful"
)

// ListModelsFunc fetches the raw model list for a region. The production backend
// performs signed discovery calls; tests inject a fake.
type ListModelsFunc func(ctx context.Context, region string) ([]ModelDescriptor, error)

// regionState is one region's cached entry. Its lock covers both the
// freshness check and the refresh write, so concurrent callers never race on
// a redundant discovery call, and a slow refresh for one region never blocks
// cached reads for another.
type regionState struct {
	mu        sync.Mutex
	models    []ModelDescriptor
	refreshed time.Time
	cached    bool
}

// Catalog caches text-capable gateway models per region with a 24-hour TTL.
type Catalog struct {
	mu      sync.Mutex // guards the regions map only
	regions map[string]*regionState
	ttl     time.Duration
	now     func() time.Time
	list    ListModelsFunc
}

// NewCatalog creates a catalog backed by signed discovery against the gateway.
func NewCatalog(cfg BedrockConfig, timeout time.Duration) *Catalog {
	d := &catalogDiscovery{
		cfg: cfg,
		hc:  &http.Client{Timeout: timeout},
		now: time.Now,
	}
	return &Catalog{
		regions: make(map[string]*regionState),
		ttl:     catalogTTL,
		now:     time.Now,
		list:    d.listModels,
	}
}

// newCatalogWithBackend builds a catalog around an injected backend and clock.
func newCatalogWithBackend(list ListModelsFunc, now func() time.Time) *Catalog {
	return &Catalog{
		regions: make(map[string]*regionState),
		ttl:     catalogTTL,
		now:     now,
		list:    list,
	}
}

// TextModels returns the text-capable models for a region, refreshing the cache
// when expired or forced. Discovery failure degrades to stale data, then to the
// built-in static list; the caller is never left with zero options. The
// returned slice is the caller's to mutate.
func (c *Catalog) TextModels(ctx context.Context, region string, forceRefresh bool) []ModelDescriptor {
	st := c.regionState(region)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.cached && !forceRefresh && c.now().Sub(st.refreshed) < c.ttl {
		L_debug("catalog: serving cached models", "region", region, "count", len(st.models))
		return copyModels(st.models)
	}

	models, err := c.list(ctx, region)
	if err != nil {
		if st.cached {
			L_warn("catalog: refresh failed, serving stale entry", "region", region, "error", err)
			return copyModels(st.models)
		}
		L_warn("catalog: discovery failed, serving static model list", "region", region, "error", err)
		return fallbackModels()
	}

	filtered := filterTextModels(models)
	st.models = filtered
	st.refreshed = c.now()
	st.cached = true
	L_info("catalog: refreshed", "region", region, "discovered", len(models), "textModels", len(filtered))
	return copyModels(filtered)
}

// regionState returns the state slot for a region, creating it on first use.
func (c *Catalog) regionState(region string) *regionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.regions[region]
	if st == nil {
		st = &regionState{}
		c.regions[region] = st
	}
	return st
}

func copyModels(models []ModelDescriptor) []ModelDescriptor {
	out := make([]ModelDescriptor, len(models))
	copy(out, models)
	return out
}

// ByVendor groups a region's text models by vendor name.
func (c *Catalog) ByVendor(ctx context.Context, region string) map[string][]ModelDescriptor {
	grouped := make(map[string][]ModelDescriptor)
	for _, m := range c.TextModels(ctx, region, false) {
		grouped[m.Vendor] = append(grouped[m.Vendor], m)
	}
	return grouped
}

// BestModel picks a model for a use case via identifier-substring heuristics.
// Falls back to the first available model when nothing matches.
func (c *Catalog) BestModel(ctx context.Context, region string, uc UseCase) (ModelDescriptor, bool) {
	models := c.TextModels(ctx, region, false)
	if len(models) == 0 {
		return ModelDescriptor{}, false
	}

	var preferences [][]string
	switch uc {
	case UseCaseFastest:
		preferences = [][]string{{"haiku"}, {"express"}, {"8b"}, {"lite"}}
	case UseCaseCheapest:
		preferences = [][]string{{"haiku"}, {"lite"}, {"8b"}, {"express"}}
	case UseCasePowerful:
		preferences = [][]string{{"opus"}, {"405b"}, {"premier"}, {"sonnet"}}
	default: // UseCaseQuality
		preferences = [][]string{{"sonnet", "v2"}, {"sonnet"}, {"opus"}, {"70b"}}
	}

	for _, required := range preferences {
		for _, m := range models {
			id := strings.ToLower(m.ID)
			matched := true
			for _, sub := range required {
				if !strings.Contains(id, sub) {
					matched = false
					break
				}
			}
			if matched {
				return m, true
			}
		}
	}
	return models[0], true
}

// filterTextModels keeps models with TEXT input and output, dropping legacy
// lifecycle and embedding models.
func filterTextModels(models []ModelDescriptor) []ModelDescriptor {
	var out []ModelDescriptor
	for _, m := range models {
		if !hasModality(m.InputModalities, "TEXT") || !hasModality(m.OutputModalities, "TEXT") {
			continue
		}
		if strings.EqualFold(m.Lifecycle, "LEGACY") {
			continue
		}
		if strings.Contains(strings.ToLower(m.ID), "embed") {
			continue
		}
		out = append(out, m)
	}
	return out
}

func hasModality(modalities []string, want string) bool {
	for _, m := range modalities {
		if strings.EqualFold(m, want) {
			return true
		}
	}
	return false
}

// fallbackModels is the static known-good list served when every discovery
// attempt fails.
func fallbackModels() []ModelDescriptor {
	text := []string{"TEXT"}
	mk := func(id, name, vendor string) ModelDescriptor {
		return ModelDescriptor{
			ID: id, Name: name, Vendor: vendor,
			InputModalities: text, OutputModalities: text,
			Streaming: true, Lifecycle: "ACTIVE",
		}
	}
	return []ModelDescriptor{
		mk("anthropic.claude-3-5-sonnet-20241022-v2:0", "Claude 3.5 Sonnet v2", "Anthropic"),
		mk("anthropic.claude-3-5-haiku-20241022-v1:0", "Claude 3.5 Haiku", "Anthropic"),
		mk("anthropic.claude-3-opus-20240229-v1:0", "Claude 3 Opus", "Anthropic"),
		mk("meta.llama3-70b-instruct-v1:0", "Llama 3 70B Instruct", "Meta"),
		mk("meta.llama3-8b-instruct-v1:0", "Llama 3 8B Instruct", "Meta"),
		mk("amazon.titan-text-premier-v1:0", "Titan Text Premier", "Amazon"),
		mk("amazon.titan-text-express-v1", "Titan Text Express", "Amazon"),
	}
}

// ==================== discovery backend ====================

// modelSummariesResponse mirrors the gateway's foundation-models listing body.
type modelSummariesResponse struct {
	ModelSummaries []struct {
		ModelID                    string   `json:"modelId"`
		ModelName                  string   `json:"modelName"`
		ProviderName               string   `json:"providerName"`
		InputModalities            []string `json:"inputModalities"`
		OutputModalities           []string `json:"outputModalities"`
		ResponseStreamingSupported bool     `json:"responseStreamingSupported"`
		ModelLifecycle             struct {
			Status string `json:"status"`
		} `json:"modelLifecycle"`
	} `json:"modelSummaries"`
}

// catalogDiscovery performs the real listing calls. The endpoint-vs-signing-
// service mapping of the gateway is not fully consistent, so a failed listing is
// retried against the alternate endpoint host and then the alternate signing
// service name before giving up.
type catalogDiscovery struct {
	cfg     BedrockConfig
	hc      *http.Client
	now     func() time.Time
	baseURL string // test override; empty = real gateway hosts
}

type discoveryAttempt struct {
	host    string
	service string
}

func (d *catalogDiscovery) listModels(ctx context.Context, region string) ([]ModelDescriptor, error) {
	if !d.cfg.HasCredentials() {
		return nil, notConfigured("Bedrock", "Bedrock credentials")
	}

	attempts := []discoveryAttempt{
		{host: "bedrock." + region + ".amazonaws.com", service: "bedrock"},
		{host: "bedrock-runtime." + region + ".amazonaws.com", service: "bedrock"},
		{host: "bedrock." + region + ".amazonaws.com", service: "bedrock-runtime"},
	}

	var lastErr error
	for i, a := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		models, err := d.fetch(ctx, a, region)
		if err == nil {
			return models, nil
		}
		lastErr = err
		L_debug("catalog: discovery attempt failed", "attempt", i+1, "host", a.host, "service", a.service, "error", err)
	}
	return nil, fmt.Errorf("all discovery attempts failed: %w", lastErr)
}

func (d *catalogDiscovery) fetch(ctx context.Context, a discoveryAttempt, region string) ([]ModelDescriptor, error) {
	url := "https://" + a.host + "/foundation-models"
	if d.baseURL != "" {
		url = d.baseURL + "/foundation-models"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	if d.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	} else {
		creds := Credentials{AccessKeyID: d.cfg.AccessKeyID, SecretAccessKey: d.cfg.SecretAccessKey}
		SignRequest(req, nil, creds, region, a.service, d.now())
	}

	resp, err := d.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model listing returned status %d: %s", resp.StatusCode, excerpt(body))
	}

	var listing modelSummariesResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("decoding model listing: %w", err)
	}

	models := make([]ModelDescriptor, 0, len(listing.ModelSummaries))
	for _, s := range listing.ModelSummaries {
		models = append(models, ModelDescriptor{
			ID:               s.ModelID,
			Name:             s.ModelName,
			Vendor:           s.ProviderName,
			InputModalities:  s.InputModalities,
			OutputModalities: s.OutputModalities,
			Streaming:        s.ResponseStreamingSupported,
			Lifecycle:        s.ModelLifecycle.Status,
		})
	}
	return models, nil
}
