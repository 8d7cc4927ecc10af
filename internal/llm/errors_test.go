package llm

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	pe := &ProviderError{Provider: "Claude", Kind: KindRateLimited, Status: 429}
	if got := KindOf(pe); got != KindRateLimited {
		t.Errorf("KindOf = %v, want %v", got, KindRateLimited)
	}

	wrapped := fmt.Errorf("outer: %w", pe)
	if got := KindOf(wrapped); got != KindRateLimited {
		t.Errorf("KindOf(wrapped) = %v, want %v", got, KindRateLimited)
	}

	// Untyped errors are treated as transient provider faults.
	if got := KindOf(errors.New("mystery")); got != KindTransportFailure {
		t.Errorf("KindOf(untyped) = %v, want %v", got, KindTransportFailure)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want bool
	}{
		{KindRateLimited, true},
		{KindOverloaded, true},
		{KindTransportFailure, true},
		{KindNotConfigured, false},
		{KindAuthFailure, false},
		{KindBadRequest, false},
		{KindParseFailure, false},
		{KindHTTPError, false},
	}
	for _, tt := range tests {
		if got := retryable(tt.kind); got != tt.want {
			t.Errorf("retryable(%v) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			"not configured",
			notConfigured("Claude", "Anthropic API key"),
			"Claude is not configured",
		},
		{
			"rate limited",
			&ProviderError{Provider: "Perplexity", Kind: KindRateLimited, Status: 429},
			"rate limit reached",
		},
		{
			"overloaded",
			&ProviderError{Provider: "Claude", Kind: KindOverloaded, Status: 529},
			"temporarily overloaded",
		},
		{
			"auth failure",
			&ProviderError{Provider: "Bedrock", Kind: KindAuthFailure, Status: 403},
			"rejected the credentials (status 403)",
		},
		{
			"transport",
			&ProviderError{Provider: "Claude", Kind: KindTransportFailure, Detail: "dial tcp: timeout"},
			"Check your network connection",
		},
		{
			"untyped",
			errors.New("boom"),
			"AI analysis failed: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UserMessage(tt.err)
			if !strings.Contains(got, tt.want) {
				t.Errorf("UserMessage = %q, want substring %q", got, tt.want)
			}
		})
	}
}

func TestProviderErrorString(t *testing.T) {
	withStatus := &ProviderError{Provider: "Claude", Kind: KindHTTPError, Status: 502, Detail: "bad gateway"}
	if got := withStatus.Error(); !strings.Contains(got, "status 502") {
		t.Errorf("Error() = %q, want status included", got)
	}
	noStatus := &ProviderError{Provider: "Claude", Kind: KindParseFailure, Detail: "no content"}
	if got := noStatus.Error(); strings.Contains(got, "status") {
		t.Errorf("Error() = %q, want no status", got)
	}
}
