// Package provider defines the invocation contract between the
// orchestration engine and the backing language-model services, plus HTTP
// clients for the three supported providers. The engine only ever consumes
// the Invoker capability; everything else here is plumbing.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Params holds sampling parameters forwarded to the provider.
type Params struct {
	Temperature float64 `json:"temperature"`
}

// Metadata rides along with every invocation for logging and ledgers.
type Metadata struct {
	AgentWeight *float64 `json:"agent_weight,omitempty"`
	CostTier    string   `json:"cost_tier"`
	Phase       string   `json:"phase"`
	RunID       string   `json:"run_id"`
}

// Payload is the full invocation request handed to a provider client.
type Payload struct {
	AgentID       string   `json:"agent_id"`
	CallID        string   `json:"call_id"`
	Metadata      Metadata `json:"metadata"`
	ModelID       string   `json:"model_id"`
	Params        Params   `json:"params"`
	Provider      string   `json:"provider"`
	ProviderModel string   `json:"provider_model"`
	SystemText    string   `json:"system_text"`
	TimeoutS      int      `json:"timeout_s"`
	UserText      string   `json:"user_text"`
}

// Tokens is the usage accounting a provider reports, when it reports any.
type Tokens struct {
	CompletionTokens int `json:"completion_tokens,omitempty"`
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Invoker turns a payload into model output. A nil error with empty output
// is valid; transport, auth and timeout failures surface as errors and the
// pipeline degrades the call to an empty result.
type Invoker interface {
	Invoke(ctx context.Context, p Payload) (string, Tokens, error)
}

// Registry maps provider names to their clients.
type Registry map[string]Invoker

// Invoke dispatches the payload to the client registered for its provider,
// bounded by the payload's timeout.
func (r Registry) Invoke(ctx context.Context, p Payload) (string, Tokens, error) {
	if p.Provider == "" {
		return "", Tokens{}, fmt.Errorf("invalid provider")
	}
	client, ok := r[p.Provider]
	if !ok {
		return "", Tokens{}, fmt.Errorf("unknown provider %q", p.Provider)
	}
	if p.TimeoutS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.TimeoutS)*time.Second)
		defer cancel()
	}
	return client.Invoke(ctx, p)
}

// Options configures the built-in provider clients.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}
