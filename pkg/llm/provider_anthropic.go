package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicMaxTokens = 4096
	openingUserMessage        = "Begin."
)

// AnthropicProvider implements Provider for Anthropic Claude
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a provider. An empty baseURL uses the SDK default.
func NewAnthropicProvider(apiKey, baseURL string) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
	}
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return ProviderAnthropic
}

// Complete moves system messages into the System field and sends the rest in order
func (p *AnthropicProvider) Complete(ctx context.Context, request Request) (*Response, error) {
	var system []string
	var firstRole string
	messages := make([]anthropic.MessageParam, 0, len(request.Messages)+1)

	for _, msg := range request.Messages {
		switch msg.Role {
		case "system":
			system = append(system, msg.Content)
		case "user":
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			return nil, fmt.Errorf("unsupported message role: %s", msg.Role)
		}
		if firstRole == "" && msg.Role != "system" {
			firstRole = msg.Role
		}
	}

	// The messages API needs a leading user turn; opening turns carry only the
	// system instruction and later turns start with the clarifying question.
	if firstRole != "user" {
		messages = append([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(openingUserMessage)),
		}, messages...)
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(request.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{
			{Text: strings.Join(system, "\n\n")},
		}
	}
	if request.Temperature > 0 {
		params.Temperature = anthropic.Float(request.Temperature)
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	raw, err := decodeRaw(message.RawJSON(), message)
	if err != nil {
		return nil, err
	}

	return &Response{
		Provider: p.Name(),
		Raw:      raw,
		Usage: &TokenUsage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
		},
	}, nil
}
