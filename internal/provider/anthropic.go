package provider

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 15000

// Anthropic invokes models through the Anthropic messages API.
type Anthropic struct {
	client anthropic.Client
}

// NewAnthropic builds a client. Retries stay off: the pipeline makes a
// single attempt per call and treats failures as empty output.
func NewAnthropic(opts Options) *Anthropic {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	return &Anthropic{client: anthropic.NewClient(reqOpts...)}
}

func (c *Anthropic) Invoke(ctx context.Context, p Payload) (string, Tokens, error) {
	model := strings.TrimSpace(p.ProviderModel)
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}

	params := anthropic.MessageNewParams{
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(p.UserText)),
		},
		Model:       anthropic.Model(model),
		Temperature: anthropic.Float(p.Params.Temperature),
	}
	if system := strings.TrimSpace(p.SystemText); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", Tokens{}, err
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}

	tokens := Tokens{
		CompletionTokens: int(msg.Usage.OutputTokens),
		PromptTokens:     int(msg.Usage.InputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
	return strings.TrimSpace(strings.Join(parts, "\n")), tokens, nil
}
