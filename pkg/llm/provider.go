package llm

import (
	"context"
	"fmt"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"

	// DefaultGroqBaseURL is the OpenAI-compatible Groq endpoint
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1/"
	// DefaultGroqModel is the model used when none is configured
	DefaultGroqModel = "llama-3.3-70b-versatile"
)

// Provider is an interface for chat-completion APIs
type Provider interface {
	// Complete sends the ordered history and returns the decoded payload
	Complete(ctx context.Context, request Request) (*Response, error)

	// Name returns the provider name
	Name() string
}

// Profile carries what a provider needs to authenticate
type Profile struct {
	Provider string
	APIKey   string
	BaseURL  string
}

// ProviderFactory creates providers from profiles
type ProviderFactory struct{}

// NewProvider creates a provider for profile
func (f *ProviderFactory) NewProvider(profile Profile) (Provider, error) {
	switch profile.Provider {
	case ProviderOpenAI, "groq":
		if profile.APIKey == "" {
			return nil, fmt.Errorf("%s provider requires an API key", profile.Provider)
		}
		baseURL := profile.BaseURL
		if baseURL == "" {
			baseURL = DefaultGroqBaseURL
		}
		return NewOpenAIProvider(profile.APIKey, baseURL), nil
	case ProviderAnthropic:
		if profile.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		return NewAnthropicProvider(profile.APIKey, profile.BaseURL), nil
	case ProviderMock:
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}
