// Package config loads the optional per-workspace der.yaml. It only covers
// provider plumbing (endpoints, API-key env vars, HTTP timeout); everything
// the orchestrator learns or decides lives in the memory record instead.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProviderConfig points a provider client at its endpoint and key.
type ProviderConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
}

// Config is the workspace configuration.
type Config struct {
	HTTPTimeoutS int                       `yaml:"http_timeout_s"`
	Providers    map[string]ProviderConfig `yaml:"providers"`
}

// Default returns the built-in configuration used when der.yaml is absent.
func Default() *Config {
	return &Config{
		HTTPTimeoutS: 0,
		Providers: map[string]ProviderConfig{
			"anthropic": {APIKeyEnv: "ANTHROPIC_API_KEY", BaseURL: "https://api.anthropic.com"},
			"gemini":    {APIKeyEnv: "GEMINI_API_KEY", BaseURL: "https://generativelanguage.googleapis.com"},
			"openai":    {APIKeyEnv: "OPENAI_API_KEY", BaseURL: "https://api.openai.com"},
		},
	}
}

// Load reads der.yaml from the workspace root, merging it over the
// defaults. A missing file yields the defaults; a malformed file is an
// error.
func Load(root string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(root, "der.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if override.HTTPTimeoutS > 0 {
		cfg.HTTPTimeoutS = override.HTTPTimeoutS
	}
	for name, pc := range override.Providers {
		merged := cfg.Providers[name]
		if pc.APIKeyEnv != "" {
			merged.APIKeyEnv = pc.APIKeyEnv
		}
		if pc.BaseURL != "" {
			merged.BaseURL = pc.BaseURL
		}
		cfg.Providers[name] = merged
	}

	return cfg, nil
}

// APIKey resolves the configured environment variable for a provider.
func (c *Config) APIKey(provider string) string {
	pc, ok := c.Providers[provider]
	if !ok || pc.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(pc.APIKeyEnv)
}
