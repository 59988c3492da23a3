package config

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

var validProviders = []string{"groq", "openai", "anthropic", "mock"}

// ValidateProvider checks the provider name
func (v *Validator) ValidateProvider(provider string) error {
	for _, valid := range validProviders {
		if provider == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid llm provider: %q (must be one of: %s)", provider, strings.Join(validProviders, ", "))
}

// ValidateAPIKey checks the key format for providers with a known prefix
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "groq":
		if !strings.HasPrefix(key, "gsk_") {
			return fmt.Errorf("invalid Groq API key format (should start with gsk_)")
		}
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") && !strings.HasPrefix(key, "gsk_") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidatePort accepts 0, meaning any free port
func (v *Validator) ValidatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("invalid server port: %d", port)
	}
	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateTrustedProxy accepts an IP address or a CIDR prefix
func (v *Validator) ValidateTrustedProxy(entry string) error {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return nil
	}
	if strings.Contains(entry, "/") {
		if _, err := netip.ParsePrefix(entry); err != nil {
			return fmt.Errorf("invalid server.trusted_proxies entry %q: %w", entry, err)
		}
		return nil
	}
	if _, err := netip.ParseAddr(entry); err != nil {
		return fmt.Errorf("invalid server.trusted_proxies entry %q: %w", entry, err)
	}
	return nil
}

// ValidateSweepSchedule checks a cron spec, including descriptors like "@every 10m"
func (v *Validator) ValidateSweepSchedule(spec string) error {
	if spec == "" {
		return fmt.Errorf("sessions.sweep_schedule is required when retention is enabled")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid sessions.sweep_schedule %q: %w", spec, err)
	}
	return nil
}

// ValidateConfig returns advisory problems that do not stop startup
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if cfg.LLM.Provider != "mock" && cfg.LLM.APIKey != "" {
		if err := v.ValidateAPIKey(cfg.LLM.APIKey, cfg.LLM.Provider); err != nil {
			errors = append(errors, fmt.Errorf("llm.api_key: %w", err))
		}
	}

	if cfg.Server.SharedSecret == "" && cfg.Server.Host != "127.0.0.1" && cfg.Server.Host != "localhost" {
		errors = append(errors, fmt.Errorf("server.shared_secret is empty and the gateway listens on %s", cfg.Server.Host))
	}

	if !cfg.RetentionEnabled() {
		errors = append(errors, fmt.Errorf("sessions never expire: memory grows with every conversation"))
	}

	return errors
}
