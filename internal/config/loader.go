package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. COPILOT_SERVER_PORT
const EnvPrefix = "COPILOT"

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the config file when it exists, then applies environment
// overrides. GROQ_API_KEY fills llm.api_key when COPILOT_LLM_API_KEY is unset.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "GROQ_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key env: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.shared_secret", cfg.Server.SharedSecret)
	v.SetDefault("server.rate_limit_per_minute", cfg.Server.RateLimitPerMinute)
	v.SetDefault("server.max_body_bytes", cfg.Server.MaxBodyBytes)
	v.SetDefault("server.turn_timeout", cfg.Server.TurnTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("server.trusted_proxies", cfg.Server.TrustedProxies)

	v.SetDefault("llm.provider", cfg.LLM.Provider)
	v.SetDefault("llm.api_key", cfg.LLM.APIKey)
	v.SetDefault("llm.base_url", cfg.LLM.BaseURL)
	v.SetDefault("llm.model", cfg.LLM.Model)
	v.SetDefault("llm.temperature", cfg.LLM.Temperature)
	v.SetDefault("llm.max_tokens", cfg.LLM.MaxTokens)

	v.SetDefault("sessions.idle_ttl", cfg.Sessions.IdleTTL)
	v.SetDefault("sessions.max_messages", cfg.Sessions.MaxMessages)
	v.SetDefault("sessions.sweep_schedule", cfg.Sessions.SweepSchedule)
	v.SetDefault("sessions.serialize_turns", cfg.Sessions.SerializeTurns)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
	v.SetDefault("logging.max_size", cfg.Logging.MaxSize)
	v.SetDefault("logging.max_age", cfg.Logging.MaxAge)
	v.SetDefault("logging.compress", cfg.Logging.Compress)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)
	v.SetDefault("logging.audit_file", cfg.Logging.AuditFile)

	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.service_name", cfg.Tracing.ServiceName)
}

// Save writes cfg as YAML, or JSON when the path ends in .json
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("no config path")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(configPath), ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// The file may hold the API key.
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".aegis", "copilot.yaml")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
