package provider

import (
	"net/http"
	"time"

	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/config"
)

// NewRegistry wires the three built-in clients from workspace
// configuration. Per-call deadlines come from the payload; the HTTP
// client timeout is only a backstop.
func NewRegistry(cfg *config.Config) Registry {
	httpClient := &http.Client{}
	if cfg.HTTPTimeoutS > 0 {
		httpClient.Timeout = time.Duration(cfg.HTTPTimeoutS) * time.Second
	}

	opts := func(name string) Options {
		pc := cfg.Providers[name]
		return Options{
			BaseURL:    pc.BaseURL,
			APIKey:     cfg.APIKey(name),
			HTTPClient: httpClient,
		}
	}

	return Registry{
		"anthropic": NewAnthropic(opts("anthropic")),
		"gemini":    NewGemini(opts("gemini")),
		"openai":    NewOpenAI(opts("openai")),
	}
}
