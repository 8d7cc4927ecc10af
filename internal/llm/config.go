// Package llm - provider configuration types
//
// This file contains the canonical configuration types for the AI providers.
// These types are embedded by config.Config.
package llm

// Preference selects which provider pipeline the dispatcher runs first.
type Preference string

const (
	PreferBedrock      Preference = "bedrock"       // Cloud-Gateway-first
	PreferResearch     Preference = "research"      // Research-then-format
	PreferDirectChat   Preference = "claude"        // Direct-Chat-only
	PreferResearchOnly Preference = "research-only" // Research provider alone
)

// ProviderConfig contains the settings for all three AI providers.
// Named to stay clear of the dot-imported logging package's Config.
type ProviderConfig struct {
	Preference Preference       `json:"preference"` // Primary pipeline
	Anthropic  AnthropicConfig  `json:"anthropic"`
	Perplexity PerplexityConfig `json:"perplexity"`
	Bedrock    BedrockConfig    `json:"bedrock"`

	TimeoutSeconds int `json:"timeoutSeconds,omitempty"` // Per-request HTTP timeout
}

// AnthropicConfig configures the direct chat provider.
type AnthropicConfig struct {
	APIKey    string `json:"apiKey,omitempty" env:"PKGADVISOR_ANTHROPIC_API_KEY"`
	Model     string `json:"model,omitempty"`
	MaxTokens int    `json:"maxTokens,omitempty"`
}

// PerplexityConfig configures the research provider.
type PerplexityConfig struct {
	APIKey    string `json:"apiKey,omitempty" env:"PKGADVISOR_PERPLEXITY_API_KEY"`
	Model     string `json:"model,omitempty"`
	MaxTokens int    `json:"maxTokens,omitempty"`
}

// BedrockConfig configures the cloud gateway provider.
// APIKey (bearer) auth is tried first when present; otherwise requests are
// signed with the access-key pair.
type BedrockConfig struct {
	Region          string `json:"region,omitempty" env:"AWS_REGION"`
	ModelID         string `json:"modelId,omitempty"`
	APIKey          string `json:"apiKey,omitempty" env:"PKGADVISOR_BEDROCK_API_KEY"`
	AccessKeyID     string `json:"accessKeyId,omitempty" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `json:"secretAccessKey,omitempty" env:"AWS_SECRET_ACCESS_KEY"`
	MaxTokens       int    `json:"maxTokens,omitempty"`
}

// HasCredentials reports whether either auth mechanism is configured.
func (c BedrockConfig) HasCredentials() bool {
	return c.APIKey != "" || (c.AccessKeyID != "" && c.SecretAccessKey != "")
}

// DefaultProviderConfig returns the provider defaults merged under user configuration.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Preference: PreferDirectChat,
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-5",
			MaxTokens: 1500,
		},
		Perplexity: PerplexityConfig{
			Model:     "sonar",
			MaxTokens: 2000,
		},
		Bedrock: BedrockConfig{
			Region:    "us-east-1",
			ModelID:   "anthropic.claude-3-5-sonnet-20241022-v2:0",
			MaxTokens: 1500,
		},
		TimeoutSeconds: 120,
	}
}
