package llm

import (
	"encoding/json"
	"fmt"
)

// Message is one entry of the history sent to a provider
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request contains the parameters for one completion call
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Response is the provider payload decoded into a generic JSON tree
type Response struct {
	Provider string
	Raw      map[string]any
	Usage    *TokenUsage
}

// TokenUsage tracks token consumption when the provider reports it
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// decodeRaw turns a provider payload into a generic JSON tree. rawJSON is
// preferred; v is marshalled when the SDK kept no raw body.
func decodeRaw(rawJSON string, v any) (map[string]any, error) {
	data := []byte(rawJSON)
	if len(data) == 0 {
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode provider response: %w", err)
		}
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}
	return raw, nil
}
