package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var defaultModels = map[string]string{
	"groq":      "llama-3.3-70b-versatile",
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-sonnet-4-20250514",
	"mock":      "mock",
}

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard reading answers from in and prompting on out
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run runs the interactive configuration wizard starting from base.
// A nil base starts from DefaultConfig.
func (w *Wizard) Run(base *Config) (*Config, error) {
	w.println("=== Aegis Copilot Configuration ===")
	w.println()

	cfg := DefaultConfig()
	if base != nil {
		copied := *base
		cfg = &copied
	}
	validator := NewValidator()

	// Provider
	for {
		provider, err := w.ask("LLM provider (groq/openai/anthropic/mock)", cfg.LLM.Provider)
		if err != nil {
			return nil, err
		}
		if err := validator.ValidateProvider(provider); err != nil {
			w.printf("Error: %v\n", err)
			continue
		}
		if provider != cfg.LLM.Provider {
			cfg.LLM.Model = defaultModels[provider]
			cfg.LLM.BaseURL = ""
			if provider == "groq" {
				cfg.LLM.BaseURL = DefaultConfig().LLM.BaseURL
			}
		}
		cfg.LLM.Provider = provider
		break
	}

	// API key
	if cfg.LLM.Provider != "mock" {
		for {
			prompt := "API key"
			if cfg.LLM.APIKey != "" {
				prompt += " (press Enter to keep the current key)"
			}
			w.printf("%s: ", prompt)
			key, err := w.readLine()
			if err != nil {
				return nil, err
			}

			if key == "" {
				if cfg.LLM.APIKey != "" {
					break
				}
				w.println("Error: an API key is required (or set GROQ_API_KEY at runtime)")
				continue
			}

			if err := validator.ValidateAPIKey(key, cfg.LLM.Provider); err != nil {
				w.printf("Error: %v\n", err)
				continue
			}

			cfg.LLM.APIKey = key
			break
		}
	}

	model, err := w.ask("Model", cfg.LLM.Model)
	if err != nil {
		return nil, err
	}
	cfg.LLM.Model = model

	w.println()

	// Gateway
	w.println("Gateway:")
	for {
		answer, err := w.ask("Port", strconv.Itoa(cfg.Server.Port))
		if err != nil {
			return nil, err
		}
		port, convErr := strconv.Atoi(answer)
		if convErr != nil {
			w.printf("Error: %q is not a number\n", answer)
			continue
		}
		if err := validator.ValidatePort(port); err != nil {
			w.printf("Error: %v\n", err)
			continue
		}
		cfg.Server.Port = port
		break
	}

	w.printf("Shared secret (press Enter for none): ")
	secret, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if secret != "" {
		cfg.Server.SharedSecret = secret
	}

	w.println()

	// Log Level
	w.println("Logging:")
	level, err := w.ask("Log level (debug/info/warn/error)", cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateLogLevel(level); err != nil {
		w.printf("Warning: %v, using %s\n", err, cfg.Logging.Level)
	} else {
		cfg.Logging.Level = level
	}

	w.println()
	w.println("Configuration complete!")

	return cfg, nil
}

// ask prints "label [def]: " and returns the answer, or def when it is empty
func (w *Wizard) ask(label, def string) (string, error) {
	w.printf("%s [%s]: ", label, def)
	answer, err := w.readLine()
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (w *Wizard) printf(format string, args ...any) {
	fmt.Fprintf(w.out, format, args...)
}

func (w *Wizard) println(args ...any) {
	fmt.Fprintln(w.out, args...)
}
