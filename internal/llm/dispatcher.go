// Package llm provides the AI provider orchestration and resilience layer.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	. "github.com/pkgadvisor/pkgadvisor/internal/logging"
	"github.com/pkgadvisor/pkgadvisor/internal/types"
)

// Dispatcher is the top-level entry point of the AI layer. It runs the
// configured primary pipeline and falls back across providers on failure.
// Recommend always returns human-readable text, worst case an explanatory
// failure message; no error ever crosses this boundary.
type Dispatcher struct {
	preference Preference
	anthropic  *AnthropicClient
	perplexity *PerplexityClient
	bedrock    *BedrockClient
}

// stepFailure records one failed fallback step for the exhaustion message.
type stepFailure struct {
	provider string
	err      error
}

// NewDispatcher wires the three provider adapters from configuration.
func NewDispatcher(cfg ProviderConfig) *Dispatcher {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &Dispatcher{
		preference: cfg.Preference,
		anthropic:  NewAnthropicClient(cfg.Anthropic, timeout),
		perplexity: NewPerplexityClient(cfg.Perplexity, timeout),
		bedrock:    NewBedrockClient(cfg.Bedrock, timeout),
	}
}

// Bedrock exposes the gateway adapter (for the models CLI command).
func (d *Dispatcher) Bedrock() *BedrockClient {
	return d.bedrock
}

// Recommend produces an upgrade recommendation for one package.
//
// Fallback order is always: configured primary, then Bedrock, then Claude,
// then give up. Each step runs at most once; retries for transient failures
// happen inside the transport, one layer down.
func (d *Dispatcher) Recommend(ctx context.Context, subject types.AnalysisSubject) string {
	L_info("llm: analyzing package", "package", subject.Label(), "preference", d.preference)

	switch d.preference {
	case PreferBedrock:
		return d.bedrockFirst(ctx, subject)
	case PreferResearch:
		return d.researchThenFormat(ctx, subject)
	case PreferResearchOnly:
		return d.researchOnly(ctx, subject)
	default:
		return d.directChatFirst(ctx, subject)
	}
}

// bedrockFirst: Bedrock, then Claude.
func (d *Dispatcher) bedrockFirst(ctx context.Context, subject types.AnalysisSubject) string {
	text, err := d.bedrock.Analyze(ctx, subject)
	if err == nil {
		return text
	}
	d.logFallback("Bedrock", err)
	failures := []stepFailure{{provider: "Bedrock", err: err}}

	text, err = d.anthropic.Analyze(ctx, subject)
	if err == nil {
		return text
	}
	failures = append(failures, stepFailure{provider: "Claude", err: err})
	return exhaustedMessage(subject, failures)
}

// directChatFirst: Claude, then Bedrock.
func (d *Dispatcher) directChatFirst(ctx context.Context, subject types.AnalysisSubject) string {
	text, err := d.anthropic.Analyze(ctx, subject)
	if err == nil {
		return text
	}
	d.logFallback("Claude", err)
	failures := []stepFailure{{provider: "Claude", err: err}}

	text, err = d.bedrock.Analyze(ctx, subject)
	if err == nil {
		return text
	}
	failures = append(failures, stepFailure{provider: "Bedrock", err: err})
	return exhaustedMessage(subject, failures)
}

// researchThenFormat: Perplexity research, then Claude formats the research
// into a structured report. A failed formatting stage does not discard usable
// research; a failed research stage falls back through Bedrock, then Claude.
func (d *Dispatcher) researchThenFormat(ctx context.Context, subject types.AnalysisSubject) string {
	research, err := d.perplexity.Research(ctx, subject)
	if err != nil {
		d.logFallback("Perplexity", err)
		failures := []stepFailure{{provider: "Perplexity", err: err}}

		text, berr := d.bedrock.Analyze(ctx, subject)
		if berr == nil {
			return text
		}
		failures = append(failures, stepFailure{provider: "Bedrock", err: berr})

		text, aerr := d.anthropic.Analyze(ctx, subject)
		if aerr == nil {
			return text
		}
		failures = append(failures, stepFailure{provider: "Claude", err: aerr})
		return exhaustedMessage(subject, failures)
	}

	formatted, err := d.anthropic.Complete(ctx, formatPrompt(subject, research))
	if err == nil {
		return formatted
	}
	d.logFallback("Claude (formatting)", err)

	if researchLooksValid(research) {
		L_info("llm: formatting failed, returning raw research", "package", subject.Label())
		return researchFallbackNote + research
	}

	failures := []stepFailure{
		{provider: "Perplexity", err: fmt.Errorf("research text unusable")},
		{provider: "Claude", err: err},
	}
	text, berr := d.bedrock.Analyze(ctx, subject)
	if berr == nil {
		return text
	}
	failures = append(failures, stepFailure{provider: "Bedrock", err: berr})
	return exhaustedMessage(subject, failures)
}

// researchOnly: Perplexity, then Bedrock, then Claude as last resort.
func (d *Dispatcher) researchOnly(ctx context.Context, subject types.AnalysisSubject) string {
	text, err := d.perplexity.Research(ctx, subject)
	if err == nil {
		return text
	}
	d.logFallback("Perplexity", err)
	failures := []stepFailure{{provider: "Perplexity", err: err}}

	text, err = d.bedrock.Analyze(ctx, subject)
	if err == nil {
		return text
	}
	failures = append(failures, stepFailure{provider: "Bedrock", err: err})

	text, err = d.anthropic.Analyze(ctx, subject)
	if err == nil {
		return text
	}
	failures = append(failures, stepFailure{provider: "Claude", err: err})
	return exhaustedMessage(subject, failures)
}

func (d *Dispatcher) logFallback(provider string, err error) {
	L_warn("llm: provider failed, falling back", "provider", provider, "kind", KindOf(err), "error", err)
}

// exhaustedMessage renders the terminal failure after every fallback step
// failed. This is the only place provider errors become user-facing text.
func exhaustedMessage(subject types.AnalysisSubject, failures []stepFailure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "No AI recommendation could be generated for %s.\n\nAll configured providers failed:\n", subject.Label())
	for _, f := range failures {
		fmt.Fprintf(&b, "- %s: %s\n", f.provider, UserMessage(f.err))
	}
	return b.String()
}
