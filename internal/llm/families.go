// Package llm - Bedrock model-family registry.
//
// Each vendor family hosted on the gateway has its own invoke request/response
// JSON shape, keyed by model-id prefix. Adding a vendor means adding one entry
// here; the invoke path never branches on model-id strings directly.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ModelFamily describes one invoke body shape.
type ModelFamily struct {
	Name     string
	Prefixes []string // model-id prefixes routed to this family

	BuildBody func(prompt string, maxTokens int) ([]byte, error)
	ParseBody func(body []byte) (string, error)
}

// claudeFamily: chat-style messages body.
type claudeInvokeRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Messages         []anthropicMessage `json:"messages"`
}

type claudeInvokeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// llamaFamily: completion-style body with generation-length/temperature/top-p.
type llamaInvokeRequest struct {
	Prompt      string  `json:"prompt"`
	MaxGenLen   int     `json:"max_gen_len"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type llamaInvokeResponse struct {
	Generation string `json:"generation"`
}

// titanFamily: input-text/generation-config body.
type titanInvokeRequest struct {
	InputText            string          `json:"inputText"`
	TextGenerationConfig titanTextConfig `json:"textGenerationConfig"`
}

type titanTextConfig struct {
	MaxTokenCount int     `json:"maxTokenCount"`
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"topP"`
}

type titanInvokeResponse struct {
	Results []struct {
		OutputText string `json:"outputText"`
	} `json:"results"`
}

var claudeFamily = ModelFamily{
	Name:     "claude",
	Prefixes: []string{"anthropic.", "us.anthropic.", "eu.anthropic."},
	BuildBody: func(prompt string, maxTokens int) ([]byte, error) {
		return json.Marshal(claudeInvokeRequest{
			AnthropicVersion: "bedrock-2023-05-31",
			MaxTokens:        maxTokens,
			Messages:         []anthropicMessage{{Role: "user", Content: prompt}},
		})
	},
	ParseBody: func(body []byte) (string, error) {
		var resp claudeInvokeResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("decoding claude invoke response: %w", err)
		}
		if len(resp.Content) == 0 || resp.Content[0].Text == "" {
			return "", fmt.Errorf("claude invoke response has no text content")
		}
		return resp.Content[0].Text, nil
	},
}

var llamaFamily = ModelFamily{
	Name:     "llama",
	Prefixes: []string{"meta.", "us.meta."},
	BuildBody: func(prompt string, maxTokens int) ([]byte, error) {
		return json.Marshal(llamaInvokeRequest{
			Prompt:      prompt,
			MaxGenLen:   maxTokens,
			Temperature: 0.5,
			TopP:        0.9,
		})
	},
	ParseBody: func(body []byte) (string, error) {
		var resp llamaInvokeResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("decoding llama invoke response: %w", err)
		}
		if resp.Generation == "" {
			return "", fmt.Errorf("llama invoke response has no generation")
		}
		return resp.Generation, nil
	},
}

var titanFamily = ModelFamily{
	Name:     "titan",
	Prefixes: []string{"amazon.titan", "amazon.nova"},
	BuildBody: func(prompt string, maxTokens int) ([]byte, error) {
		return json.Marshal(titanInvokeRequest{
			InputText: prompt,
			TextGenerationConfig: titanTextConfig{
				MaxTokenCount: maxTokens,
				Temperature:   0.7,
				TopP:          0.9,
			},
		})
	},
	ParseBody: func(body []byte) (string, error) {
		var resp titanInvokeResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("decoding titan invoke response: %w", err)
		}
		if len(resp.Results) == 0 || resp.Results[0].OutputText == "" {
			return "", fmt.Errorf("titan invoke response has no output text")
		}
		return resp.Results[0].OutputText, nil
	},
}

// modelFamilies is the closed set of known shapes, checked in order.
var modelFamilies = []ModelFamily{claudeFamily, llamaFamily, titanFamily}

// familyFor resolves the invoke shape for a model identifier. Unknown families
// fall back to the chat-style claude shape.
func familyFor(modelID string) ModelFamily {
	for _, f := range modelFamilies {
		for _, prefix := range f.Prefixes {
			if strings.HasPrefix(modelID, prefix) {
				return f
			}
		}
	}
	return claudeFamily
}
