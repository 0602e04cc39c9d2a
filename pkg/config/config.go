// Package config provides configuration loading, validation, and defaults
// for the agent. It handles YAML config files with environment variable
// substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names accepted in the backend section.
const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
)

// Transport modes accepted in the transport section.
const (
	TransportStdio  = "stdio"
	TransportSocket = "socket"
)

// Defaults applied when the corresponding field is unset.
const (
	DefaultModel        = "qwen3:8b"
	DefaultOllamaHost   = "http://localhost:11434"
	DefaultCallTimeout  = 5 * time.Second
	DefaultRestInterval = 2 * time.Second
	DefaultMaxTokens    = 4096
	DefaultTemperature  = 0.2
)

// Duration wraps time.Duration with YAML support for strings like "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Backend configures the LLM provider.
type Backend struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Host        string  `yaml:"host"`    // Ollama server URL, ignored by hosted providers
	APIKey      string  `yaml:"api_key"` // supports ${ENV_VAR} substitution
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// Transport configures how the tool service is reached.
type Transport struct {
	Mode        string   `yaml:"mode"` // "stdio" or "socket"
	Command     string   `yaml:"command"`
	Args        []string `yaml:"args"`
	Addr        string   `yaml:"addr"`
	CallTimeout Duration `yaml:"call_timeout"`
}

// Loop configures the agent iteration cycle.
type Loop struct {
	Prompt          string   `yaml:"prompt"`
	RestInterval    Duration `yaml:"rest_interval"`
	MaxIterations   int      `yaml:"max_iterations"` // 0 = run until stopped
	MaxPromptTokens int      `yaml:"max_prompt_tokens"`
}

// Metrics configures the optional Prometheus endpoint.
type Metrics struct {
	ListenAddr string `yaml:"listen_addr"` // empty disables the endpoint
}

// Config is the root configuration for the agent.
type Config struct {
	Backend   Backend   `yaml:"backend"`
	Transport Transport `yaml:"transport"`
	Loop      Loop      `yaml:"loop"`
	Metrics   Metrics   `yaml:"metrics"`
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} placeholders with environment values. Unset
// variables leave the placeholder untouched so validation can flag it.
func expandEnv(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		envVar := string(match[2 : len(match)-1])
		if value := os.Getenv(envVar); value != "" {
			return []byte(value)
		}
		return match
	})
}

// Load reads, expands, validates, and defaults a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from raw YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(expandEnv(data), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Backend.Provider == "" {
		cfg.Backend.Provider = ProviderOllama
	}
	if cfg.Backend.Model == "" {
		cfg.Backend.Model = DefaultModel
	}
	if cfg.Backend.Host == "" && cfg.Backend.Provider == ProviderOllama {
		cfg.Backend.Host = DefaultOllamaHost
	}
	if cfg.Backend.MaxTokens == 0 {
		cfg.Backend.MaxTokens = DefaultMaxTokens
	}
	if cfg.Backend.Temperature == 0 {
		cfg.Backend.Temperature = DefaultTemperature
	}

	if cfg.Transport.Mode == "" {
		cfg.Transport.Mode = TransportStdio
	}
	if cfg.Transport.Mode == TransportStdio && cfg.Transport.Command == "" {
		cfg.Transport.Command = "npx"
		cfg.Transport.Args = []string{"-y", "@modelcontextprotocol/server-filesystem", "."}
	}
	if cfg.Transport.CallTimeout == 0 {
		cfg.Transport.CallTimeout = Duration(DefaultCallTimeout)
	}

	if cfg.Loop.RestInterval == 0 {
		cfg.Loop.RestInterval = Duration(DefaultRestInterval)
	}
}

func validate(cfg *Config) error {
	switch cfg.Backend.Provider {
	case ProviderOllama, ProviderAnthropic, ProviderOpenAI, ProviderGoogle:
	default:
		return fmt.Errorf("unknown backend provider: %q", cfg.Backend.Provider)
	}

	if cfg.Backend.Provider != ProviderOllama && cfg.Backend.APIKey == "" {
		return fmt.Errorf("backend provider %q requires an api_key", cfg.Backend.Provider)
	}
	if envVarRegex.MatchString(cfg.Backend.APIKey) {
		return fmt.Errorf("api_key references an unset environment variable: %s", cfg.Backend.APIKey)
	}

	switch cfg.Transport.Mode {
	case TransportStdio:
		if cfg.Transport.Command == "" {
			return fmt.Errorf("stdio transport requires a command")
		}
	case TransportSocket:
		if cfg.Transport.Addr == "" {
			return fmt.Errorf("socket transport requires an addr")
		}
	default:
		return fmt.Errorf("unknown transport mode: %q", cfg.Transport.Mode)
	}

	if cfg.Loop.Prompt == "" {
		return fmt.Errorf("loop prompt must not be empty")
	}
	if cfg.Loop.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must not be negative")
	}
	if cfg.Loop.MaxPromptTokens < 0 {
		return fmt.Errorf("max_prompt_tokens must not be negative")
	}

	return nil
}
