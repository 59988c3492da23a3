package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the copilot service configuration
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server" mapstructure:"server"`
	LLM      LLMConfig      `json:"llm" yaml:"llm" mapstructure:"llm"`
	Sessions SessionsConfig `json:"sessions" yaml:"sessions" mapstructure:"sessions"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging" mapstructure:"logging"`
	Tracing  TracingConfig  `json:"tracing" yaml:"tracing" mapstructure:"tracing"`
}

// ServerConfig holds gateway server configuration
type ServerConfig struct {
	Host               string        `json:"host" yaml:"host" mapstructure:"host"`
	Port               int           `json:"port" yaml:"port" mapstructure:"port"`
	SharedSecret       string        `json:"shared_secret" yaml:"shared_secret" mapstructure:"shared_secret"`
	RateLimitPerMinute int           `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	MaxBodyBytes       int64         `json:"max_body_bytes" yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	TurnTimeout        time.Duration `json:"turn_timeout" yaml:"turn_timeout" mapstructure:"turn_timeout"`
	ShutdownTimeout    time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	// TrustedProxies may set X-Forwarded-For / X-Real-IP. Empty trusts nobody.
	TrustedProxies []string `json:"trusted_proxies" yaml:"trusted_proxies" mapstructure:"trusted_proxies"`
}

// LLMConfig selects and configures the completion provider
type LLMConfig struct {
	Provider    string  `json:"provider" yaml:"provider" mapstructure:"provider"` // groq, openai, anthropic, mock
	APIKey      string  `json:"api_key" yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	Model       string  `json:"model" yaml:"model" mapstructure:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SessionsConfig controls session retention. Zero values keep sessions
// for the life of the process.
type SessionsConfig struct {
	IdleTTL       time.Duration `json:"idle_ttl" yaml:"idle_ttl" mapstructure:"idle_ttl"`
	MaxMessages   int           `json:"max_messages" yaml:"max_messages" mapstructure:"max_messages"`
	SweepSchedule string        `json:"sweep_schedule" yaml:"sweep_schedule" mapstructure:"sweep_schedule"`
	// SerializeTurns runs turns for the same session one at a time.
	// Off by default: concurrent turns on one session may interleave.
	SerializeTurns bool `json:"serialize_turns" yaml:"serialize_turns" mapstructure:"serialize_turns"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" yaml:"level" mapstructure:"level"`
	File      string `json:"file" yaml:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" yaml:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" yaml:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" yaml:"max_age" mapstructure:"max_age"`    // days
	Compress  bool   `json:"compress" yaml:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" yaml:"redaction" mapstructure:"redaction"`
	// AuditFile receives JSON audit events. Empty writes them to stderr.
	AuditFile string `json:"audit_file" yaml:"audit_file" mapstructure:"audit_file"`
}

// TracingConfig controls the OpenTelemetry tracer provider
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"service_name" yaml:"service_name" mapstructure:"service_name"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			MaxBodyBytes:    1 << 20,
			TurnTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			Provider: "groq",
			BaseURL:  "https://api.groq.com/openai/v1/",
			Model:    "llama-3.3-70b-versatile",
		},
		Sessions: SessionsConfig{
			SweepSchedule: "@every 10m",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Pretty:    true,
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Tracing: TracingConfig{
			Enabled:     true,
			ServiceName: "aegis-copilot",
		},
	}
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := *c
	if masked.LLM.APIKey != "" {
		masked.LLM.APIKey = "***"
	}
	if masked.Server.SharedSecret != "" {
		masked.Server.SharedSecret = "***"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// RetentionEnabled reports whether sessions can expire
func (c *Config) RetentionEnabled() bool {
	return c.Sessions.IdleTTL > 0 || c.Sessions.MaxMessages > 0
}

// Validate checks the settings the service cannot start without
func (c *Config) Validate() error {
	v := NewValidator()

	if err := v.ValidatePort(c.Server.Port); err != nil {
		return err
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("server.rate_limit_per_minute must be >= 0")
	}
	if c.Server.TurnTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server timeouts must be >= 0")
	}
	for _, proxy := range c.Server.TrustedProxies {
		if err := v.ValidateTrustedProxy(proxy); err != nil {
			return err
		}
	}

	if err := v.ValidateProvider(c.LLM.Provider); err != nil {
		return err
	}
	if c.LLM.Provider != "mock" && c.LLM.APIKey == "" {
		return fmt.Errorf("no API key configured for provider %s: set GROQ_API_KEY or COPILOT_LLM_API_KEY", c.LLM.Provider)
	}
	if err := v.ValidateTemperature(c.LLM.Temperature); err != nil {
		return err
	}
	if c.LLM.MaxTokens != 0 {
		if err := v.ValidateMaxTokens(c.LLM.MaxTokens); err != nil {
			return err
		}
	}

	if c.Sessions.IdleTTL < 0 {
		return fmt.Errorf("sessions.idle_ttl must be >= 0")
	}
	if c.Sessions.MaxMessages < 0 {
		return fmt.Errorf("sessions.max_messages must be >= 0")
	}
	if c.RetentionEnabled() {
		if err := v.ValidateSweepSchedule(c.Sessions.SweepSchedule); err != nil {
			return err
		}
	}

	return v.ValidateLogLevel(c.Logging.Level)
}
