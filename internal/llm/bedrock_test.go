package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestBedrock(t *testing.T, cfg BedrockConfig, srvURL string, available ...ModelDescriptor) *BedrockClient {
	t.Helper()
	b := NewBedrockClient(cfg, time.Second)
	b.baseURL = srvURL
	b.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	b.hc.timer = newFakeTimer()
	b.catalog = newCatalogWithBackend(func(ctx context.Context, region string) ([]ModelDescriptor, error) {
		return available, nil
	}, b.now)
	return b
}

func TestBedrockInvokeWithBearerKey(t *testing.T) {
	cfg := BedrockConfig{
		Region:    "us-east-1",
		ModelID:   "anthropic.claude-3-5-sonnet-20241022-v2:0",
		APIKey:    "bedrock-key",
		MaxTokens: 1500,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "anthropic.claude-3-5-sonnet-20241022-v2:0") || !strings.HasSuffix(r.URL.Path, "/invoke") {
			t.Errorf("path = %s, want /model/<id>/invoke", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer bedrock-key" {
			t.Errorf("Authorization = %q, want bearer key", got)
		}
		var req claudeInvokeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.AnthropicVersion != "bedrock-2023-05-31" {
			t.Errorf("anthropic_version = %q", req.AnthropicVersion)
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"Gateway answer."}]}`))
	}))
	defer srv.Close()

	b := newTestBedrock(t, cfg, srv.URL, textModel(cfg.ModelID, "Anthropic"))
	text, err := b.Analyze(context.Background(), wgetSubject)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if text != "Gateway answer." {
		t.Errorf("text = %q", text)
	}
}

func TestBedrockInvokeSignsWithAccessKeys(t *testing.T) {
	cfg := BedrockConfig{
		Region:          "us-east-1",
		ModelID:         "anthropic.claude-3-5-sonnet-20241022-v2:0",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		MaxTokens:       1500,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "AWS4-HMAC-SHA256 ") {
			t.Errorf("Authorization = %q, want SigV4", auth)
		}
		if !strings.Contains(auth, "/us-east-1/bedrock-runtime/aws4_request") {
			t.Errorf("credential scope wrong: %s", auth)
		}
		if r.Header.Get("X-Amz-Date") == "" {
			t.Error("X-Amz-Date header missing")
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"Signed answer."}]}`))
	}))
	defer srv.Close()

	b := newTestBedrock(t, cfg, srv.URL, textModel(cfg.ModelID, "Anthropic"))
	text, err := b.Analyze(context.Background(), wgetSubject)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if text != "Signed answer." {
		t.Errorf("text = %q", text)
	}
}

func TestBedrockLlamaModelUsesLlamaShape(t *testing.T) {
	cfg := BedrockConfig{
		Region:    "us-east-1",
		ModelID:   "meta.llama3-70b-instruct-v1:0",
		APIKey:    "bedrock-key",
		MaxTokens: 800,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req llamaInvokeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Prompt == "" || req.MaxGenLen != 800 {
			t.Errorf("llama body = %+v", req)
		}
		w.Write([]byte(`{"generation":"Llama answer."}`))
	}))
	defer srv.Close()

	b := newTestBedrock(t, cfg, srv.URL, textModel(cfg.ModelID, "Meta"))
	text, err := b.Analyze(context.Background(), wgetSubject)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if text != "Llama answer." {
		t.Errorf("text = %q", text)
	}
}

func TestBedrockNotConfiguredFailsFast(t *testing.T) {
	b := newTestBedrock(t, BedrockConfig{Region: "us-east-1"}, "http://127.0.0.1:0")

	_, err := b.Analyze(context.Background(), wgetSubject)
	if err == nil {
		t.Fatal("Analyze succeeded without credentials")
	}
	if kind := KindOf(err); kind != KindNotConfigured {
		t.Errorf("KindOf(err) = %v, want %v", kind, KindNotConfigured)
	}
}

func TestBedrockResolveModelPrefersConfigured(t *testing.T) {
	cfg := BedrockConfig{Region: "us-east-1", ModelID: "meta.llama3-8b-instruct-v1:0", APIKey: "k"}
	b := newTestBedrock(t, cfg, "", textModel("anthropic.claude-3-5-sonnet-20241022-v2:0", "Anthropic"))

	// Configured model wins even when the catalog does not list it.
	if got := b.resolveModel(context.Background()); got != "meta.llama3-8b-instruct-v1:0" {
		t.Errorf("resolveModel = %s, want configured model", got)
	}
}

func TestBedrockResolveModelFromCatalog(t *testing.T) {
	cfg := BedrockConfig{Region: "us-east-1", APIKey: "k"}
	b := newTestBedrock(t, cfg, "",
		textModel("anthropic.claude-3-5-haiku-20241022-v1:0", "Anthropic"),
		textModel("anthropic.claude-3-5-sonnet-20241022-v2:0", "Anthropic"),
	)

	if got := b.resolveModel(context.Background()); got != "anthropic.claude-3-5-sonnet-20241022-v2:0" {
		t.Errorf("resolveModel = %s, want best quality model from catalog", got)
	}
}
