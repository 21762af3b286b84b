package provider

import (
	"context"
	"strings"

	"google.golang.org/genai"
)

// Gemini invokes models through the generateContent API.
type Gemini struct {
	opts Options
}

// NewGemini builds a client factory. The genai client wants a context at
// construction, so the real client is created per invocation; it holds no
// connection state.
func NewGemini(opts Options) *Gemini {
	return &Gemini{opts: opts}
}

func (c *Gemini) Invoke(ctx context.Context, p Payload) (string, Tokens, error) {
	model := strings.TrimSpace(p.ProviderModel)
	if model == "" {
		model = "gemini-2.5-pro"
	}

	cfg := &genai.ClientConfig{
		APIKey:  c.opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.opts.BaseURL}
	}
	if c.opts.HTTPClient != nil {
		cfg.HTTPClient = c.opts.HTTPClient
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", Tokens{}, err
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(p.Params.Temperature)),
	}
	if system := strings.TrimSpace(p.SystemText); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(p.UserText), config)
	if err != nil {
		return "", Tokens{}, err
	}

	tokens := Tokens{}
	if um := resp.UsageMetadata; um != nil {
		tokens.CompletionTokens = int(um.CandidatesTokenCount)
		tokens.PromptTokens = int(um.PromptTokenCount)
		tokens.TotalTokens = int(um.TotalTokenCount)
	}
	return strings.TrimSpace(resp.Text()), tokens, nil
}
