// Package config loads the merged pkgadvisor configuration.
//
// Settings come from three layers: built-in defaults, the JSON config file
// (~/.pkgadvisor/pkgadvisor.json), and environment variables. Later layers win
// for credentials; the file wins for everything else it sets.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"

	"github.com/pkgadvisor/pkgadvisor/internal/llm"
)

// Config is the merged pkgadvisor configuration.
type Config struct {
	LLM         llm.ProviderConfig `json:"llm"`
	Concurrency int                `json:"concurrency,omitempty" env:"PKGADVISOR_CONCURRENCY"` // Parallel package analyses
	ReportDir   string             `json:"reportDir,omitempty" env:"PKGADVISOR_REPORT_DIR"`
	Debug       bool               `json:"debug,omitempty" env:"PKGADVISOR_DEBUG"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		LLM:         llm.DefaultProviderConfig(),
		Concurrency: 4,
		ReportDir:   ".",
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "pkgadvisor.json"
	}
	return filepath.Join(home, ".pkgadvisor", "pkgadvisor.json")
}

// Load reads the config file at path (or the default location when path is
// empty), fills unset fields from defaults, and applies environment overrides.
// A missing config file is not an error; defaults plus environment apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := &Config{}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	defaults := Defaults()
	if err := mergo.Merge(cfg, defaults); err != nil {
		return nil, fmt.Errorf("merging defaults: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	return cfg, nil
}
