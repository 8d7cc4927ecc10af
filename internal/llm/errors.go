// Package llm provides the AI provider orchestration and resilience layer.
package llm

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes provider failures for fallback and user messaging decisions.
type ErrorKind string

const (
	KindNotConfigured    ErrorKind = "not_configured"    // Missing credential, no network attempted
	KindRateLimited      ErrorKind = "rate_limited"      // HTTP 429, retried then reported
	KindOverloaded       ErrorKind = "overloaded"        // HTTP 529, retried then reported
	KindAuthFailure      ErrorKind = "auth_failure"      // HTTP 401/403, not retried
	KindBadRequest       ErrorKind = "bad_request"       // HTTP 400, not retried
	KindParseFailure     ErrorKind = "parse_failure"     // Response body did not match expected shape
	KindTransportFailure ErrorKind = "transport_failure" // DNS/TLS/timeout, retried then reported
	KindHTTPError        ErrorKind = "http_error"        // Any other non-success status, not retried
)

// ProviderError is the typed failure passed between adapters, transport and
// dispatcher. It is rendered to user-facing text only at the dispatcher boundary.
type ProviderError struct {
	Provider string    // Provider label (e.g., "Claude", "Perplexity", "Bedrock")
	Kind     ErrorKind
	Status   int    // HTTP status when applicable, 0 otherwise
	Detail   string // Raw body excerpt or underlying error text
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Detail)
}

// KindOf extracts the ErrorKind from an error chain.
// Returns KindTransportFailure for unrecognized errors: anything that escapes the
// typed taxonomy is treated as a transient provider fault.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransportFailure
}

// notConfigured builds the fast no-network failure for a missing credential.
func notConfigured(provider, credential string) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Kind:     KindNotConfigured,
		Detail:   credential + " not configured",
	}
}

// UserMessage renders a ProviderError as actionable, human-readable text.
// This is the single place where typed failures become display strings.
func UserMessage(err error) string {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return fmt.Sprintf("AI analysis failed: %v", err)
	}

	switch pe.Kind {
	case KindNotConfigured:
		return fmt.Sprintf("%s is not configured: %s. Add the credential to your pkgadvisor config or environment.", pe.Provider, pe.Detail)
	case KindRateLimited:
		return fmt.Sprintf("%s rate limit reached after multiple retries. Wait a few minutes before retrying, analyze fewer packages at a time, or switch to another provider.", pe.Provider)
	case KindOverloaded:
		return fmt.Sprintf("%s is temporarily overloaded. The request was retried several times without success; try again shortly or switch to another provider.", pe.Provider)
	case KindAuthFailure:
		return fmt.Sprintf("%s rejected the credentials (status %d). Check the API key configured for %s.", pe.Provider, pe.Status, pe.Provider)
	case KindBadRequest:
		return fmt.Sprintf("%s rejected the request (status 400): %s", pe.Provider, pe.Detail)
	case KindParseFailure:
		return fmt.Sprintf("%s returned a response that could not be parsed: %s", pe.Provider, pe.Detail)
	case KindTransportFailure:
		return fmt.Sprintf("Could not reach %s after multiple retries: %s. Check your network connection.", pe.Provider, pe.Detail)
	default:
		return fmt.Sprintf("%s API Error %d: %s", pe.Provider, pe.Status, pe.Detail)
	}
}

// retryable reports whether a failure should re-enter the backoff loop.
// Only rate-limit, overload and transport-level faults are transient.
func retryable(kind ErrorKind) bool {
	switch kind {
	case KindRateLimited, KindOverloaded, KindTransportFailure:
		return true
	default:
		return false
	}
}
