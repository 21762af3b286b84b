package provider

import (
	"context"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI invokes models through the chat completions API.
type OpenAI struct {
	client openai.Client
}

// NewOpenAI builds a client. The SDK expects the versioned endpoint, so a
// configured base URL gets "/v1" appended. Retries stay off: the pipeline
// makes a single attempt per call.
func NewOpenAI(opts Options) *OpenAI {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")+"/v1"))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	return &OpenAI{client: openai.NewClient(reqOpts...)}
}

func (c *OpenAI) Invoke(ctx context.Context, p Payload) (string, Tokens, error) {
	model := strings.TrimSpace(p.ProviderModel)
	if model == "" {
		model = "gpt-4.1"
	}

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.SystemText),
			openai.UserMessage(p.UserText),
		},
		Model:       openai.ChatModel(model),
		Temperature: openai.Float(p.Params.Temperature),
	})
	if err != nil {
		return "", Tokens{}, err
	}

	output := ""
	if len(completion.Choices) > 0 {
		output = completion.Choices[0].Message.Content
	}

	tokens := Tokens{
		CompletionTokens: int(completion.Usage.CompletionTokens),
		PromptTokens:     int(completion.Usage.PromptTokens),
		TotalTokens:      int(completion.Usage.TotalTokens),
	}
	return strings.TrimSpace(output), tokens, nil
}
