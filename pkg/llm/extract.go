package llm

import "strings"

// Strategy pulls reply text out of a generic provider payload. It must not
// panic on any input and reports false when its shape is absent or empty.
type Strategy struct {
	Name    string
	Extract func(raw map[string]any) (string, bool)
}

// DefaultStrategies are tried in order; the first non-empty result wins
var DefaultStrategies = []Strategy{
	{Name: "choices.message.content", Extract: firstChoiceMessageContent},
	{Name: "choices.text", Extract: firstChoiceText},
	{Name: "content.text", Extract: contentBlocksText},
	{Name: "output", Extract: stringField("output")},
	{Name: "text", Extract: stringField("text")},
}

// ExtractReply runs DefaultStrategies against raw
func ExtractReply(raw map[string]any) (string, bool) {
	return ExtractWith(raw, DefaultStrategies)
}

// ExtractWith runs strategies in order and returns the first non-empty reply
func ExtractWith(raw map[string]any, strategies []Strategy) (string, bool) {
	if raw == nil {
		return "", false
	}
	for _, s := range strategies {
		if reply, ok := s.Extract(raw); ok {
			return reply, true
		}
	}
	return "", false
}

func firstChoice(raw map[string]any) (map[string]any, bool) {
	choices, ok := raw["choices"].([]any)
	if !ok || len(choices) == 0 {
		return nil, false
	}
	first, ok := choices[0].(map[string]any)
	return first, ok
}

func firstChoiceMessageContent(raw map[string]any) (string, bool) {
	first, ok := firstChoice(raw)
	if !ok {
		return "", false
	}
	msg, ok := first["message"].(map[string]any)
	if !ok {
		return "", false
	}
	return nonEmpty(msg["content"])
}

func firstChoiceText(raw map[string]any) (string, bool) {
	first, ok := firstChoice(raw)
	if !ok {
		return "", false
	}
	return nonEmpty(first["text"])
}

// contentBlocksText joins the text blocks of a messages-style payload
func contentBlocksText(raw map[string]any) (string, bool) {
	blocks, ok := raw["content"].([]any)
	if !ok {
		return "", false
	}
	var b strings.Builder
	for _, block := range blocks {
		m, ok := block.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := m["type"].(string); t != "" && t != "text" {
			continue
		}
		if s, ok := m["text"].(string); ok {
			b.WriteString(s)
		}
	}
	return nonEmpty(b.String())
}

func stringField(key string) func(map[string]any) (string, bool) {
	return func(raw map[string]any) (string, bool) {
		return nonEmpty(raw[key])
	}
}

func nonEmpty(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
