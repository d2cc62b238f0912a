package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for forge-coordinator
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Proxies ProviderSet   `yaml:"providers"`
	Routing RoutingConfig `yaml:"routing"`
	Usage   UsageConfig   `yaml:"usage"`
	Bus     BusConfig     `yaml:"bus"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig defines HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ProviderSet defines the remote generation providers
type ProviderSet struct {
	GPTOSS     ProviderConfig `yaml:"gpt_oss"`
	Groq       ProviderConfig `yaml:"groq"`
	Gemini     ProviderConfig `yaml:"gemini"`
	OpenRouter ProviderConfig `yaml:"openrouter"`
}

// ProviderConfig defines one provider's endpoint and credential
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	URL     string `yaml:"url"`
	Timeout string `yaml:"timeout,omitempty"`
}

// GetTimeout returns the provider call timeout as a time.Duration
func (p *ProviderConfig) GetTimeout() time.Duration {
	if p.Timeout == "" {
		return 120 * time.Second
	}
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// CandidateConfig is one (provider, model) entry in a category table
type CandidateConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// PinConfig is the operator-pinned provider/model override
type PinConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
}

// RoutingConfig defines the category candidate tables and router behavior
type RoutingConfig struct {
	PrimaryModel string                       `yaml:"primary_model"`
	Pinned       PinConfig                    `yaml:"pinned,omitempty"`
	AutoFallback bool                         `yaml:"auto_fallback"`
	Categories   map[string][]CandidateConfig `yaml:"categories"`
}

// LimitConfig overrides quota limits for one (provider, model) pair
type LimitConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Daily    int    `yaml:"daily"`
	Monthly  int    `yaml:"monthly"`
}

// UsageConfig defines quota limits and the durable usage store
type UsageConfig struct {
	DBPath         string        `yaml:"db_path"`
	DefaultDaily   int           `yaml:"default_daily_limit"`
	DefaultMonthly int           `yaml:"default_monthly_limit"`
	Limits         []LimitConfig `yaml:"limits,omitempty"`
}

// BusConfig defines the optional Redis Streams event mirror
type BusConfig struct {
	RedisAddr string `yaml:"redis_addr,omitempty"`
	Stream    string `yaml:"stream,omitempty"`
}

// LoggingConfig defines logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration: gpt-oss-20b primary across
// every category, with groq, gemini and openrouter fallbacks.
func Default() *Config {
	const primary = "gpt-oss-20b"
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8700},
		Proxies: ProviderSet{
			GPTOSS:     ProviderConfig{URL: "https://api.openai.com/v1/chat/completions"},
			Groq:       ProviderConfig{URL: "https://api.groq.com/openai/v1/chat/completions"},
			Gemini:     ProviderConfig{URL: "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"},
			OpenRouter: ProviderConfig{URL: "https://openrouter.ai/api/v1/chat/completions"},
		},
		Routing: RoutingConfig{
			PrimaryModel: primary,
			AutoFallback: true,
			Categories: map[string][]CandidateConfig{
				"coding": {
					{Provider: "gpt_oss", Model: primary},
					{Provider: "groq", Model: "llama3-70b-8192"},
					{Provider: "groq", Model: "llama3-8b-8192"},
					{Provider: "groq", Model: "mixtral-8x7b-32768"},
					{Provider: "gemini", Model: "gemini-1.5-flash"},
					{Provider: "openrouter", Model: "claude-3.5-sonnet"},
				},
				"creative": {
					{Provider: "gpt_oss", Model: primary},
					{Provider: "openrouter", Model: "claude-3.5-sonnet"},
					{Provider: "gemini", Model: "gemini-1.5-flash"},
					{Provider: "groq", Model: "llama3-70b-8192"},
					{Provider: "groq", Model: "llama3-8b-8192"},
					{Provider: "groq", Model: "mixtral-8x7b-32768"},
				},
				"analysis": {
					{Provider: "gpt_oss", Model: primary},
					{Provider: "openrouter", Model: "claude-3.5-sonnet"},
					{Provider: "groq", Model: "llama3-70b-8192"},
					{Provider: "gemini", Model: "gemini-1.5-flash"},
					{Provider: "groq", Model: "llama3-8b-8192"},
					{Provider: "groq", Model: "mixtral-8x7b-32768"},
				},
				"fast": {
					{Provider: "gpt_oss", Model: primary},
					{Provider: "groq", Model: "llama3-8b-8192"},
					{Provider: "gemini", Model: "gemini-1.5-flash"},
					{Provider: "groq", Model: "mixtral-8x7b-32768"},
					{Provider: "groq", Model: "llama3-70b-8192"},
					{Provider: "openrouter", Model: "claude-3.5-sonnet"},
				},
				"default": {
					{Provider: "gpt_oss", Model: primary},
					{Provider: "groq", Model: "llama3-8b-8192"},
					{Provider: "gemini", Model: "gemini-1.5-flash"},
					{Provider: "openrouter", Model: "claude-3.5-sonnet"},
					{Provider: "groq", Model: "llama3-70b-8192"},
					{Provider: "groq", Model: "mixtral-8x7b-32768"},
				},
			},
		},
		Usage: UsageConfig{
			DBPath:         "./forge.db",
			DefaultDaily:   200,
			DefaultMonthly: 2000,
		},
		Bus:     BusConfig{Stream: "forge.events"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load loads configuration from a YAML file with environment variable
// overrides. An empty path returns the built-in defaults (still subject to
// env overrides).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("FORGE_PORT"); port != "" {
		fmt.Sscanf(port, "%d", &c.Server.Port)
	}
	if key := os.Getenv("GPT_OSS_API_KEY"); key != "" {
		c.Proxies.GPTOSS.APIKey = key
	}
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		c.Proxies.Groq.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Proxies.Gemini.APIKey = key
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		c.Proxies.OpenRouter.APIKey = key
	}
	if addr := os.Getenv("FORGE_REDIS_ADDR"); addr != "" {
		c.Bus.RedisAddr = addr
	}
	if path := os.Getenv("FORGE_DB_PATH"); path != "" {
		c.Usage.DBPath = path
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Routing.PrimaryModel == "" {
		return fmt.Errorf("routing primary_model is required")
	}
	if len(c.Routing.Categories) == 0 {
		return fmt.Errorf("at least one routing category is required")
	}
	if (c.Routing.Pinned.Provider == "") != (c.Routing.Pinned.Model == "") {
		return fmt.Errorf("pinned provider and model must be set together")
	}
	if c.Usage.DefaultDaily <= 0 || c.Usage.DefaultMonthly <= 0 {
		return fmt.Errorf("usage default limits must be positive")
	}
	return nil
}
