package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	providerGemini = "gemini"
	providerOpenAI = "openai"
)

// Config represents the application configuration. Values come from an
// optional YAML file layered over defaults, with environment overrides
// applied last.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Quota    QuotaConfig    `yaml:"quota"`
	Stream   StreamConfig   `yaml:"stream"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ProviderConfig captures authentication and pacing info for the upstream
// completion provider.
type ProviderConfig struct {
	Name    string `yaml:"name"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	// RequestsPerMinute throttles outbound calls to the provider.
	// Zero disables the throttle.
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// QuotaConfig holds the per-client fixed-window request budgets.
type QuotaConfig struct {
	MinuteLimit int `yaml:"minute_limit"`
	HourLimit   int `yaml:"hour_limit"`
	DayLimit    int `yaml:"day_limit"`
}

// StreamConfig tunes streamed-response chunking.
type StreamConfig struct {
	// ChunkSize is the soft character threshold that closes a chunk.
	ChunkSize int `yaml:"chunk_size"`
	// WordDelayMS is the pacing delay between word accumulations.
	WordDelayMS int `yaml:"word_delay_ms"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: 8787},
		Provider: ProviderConfig{
			Name:  providerGemini,
			Model: "gemini-2.0-flash",
			Burst: 1,
		},
		Quota: QuotaConfig{
			MinuteLimit: 15,
			HourLimit:   250,
			DayLimit:    500,
		},
		Stream: StreamConfig{
			ChunkSize:   20,
			WordDelayMS: 50,
		},
	}
}

// Load reads YAML configuration from disk, layered over Default, and
// applies environment overrides. An empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return Config{}, fmt.Errorf("resolve config path: %w", err)
		}

		data, err := os.ReadFile(absPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the configuration. The
// provider credential environment variable depends on the provider name.
func (c *Config) applyEnv() error {
	if key := os.Getenv(c.apiKeyEnvVar()); key != "" {
		c.Provider.APIKey = key
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("PORT environment variable %q is not a number: %w", port, err)
		}
		c.Server.Port = p
	}

	return nil
}

func (c Config) apiKeyEnvVar() string {
	switch c.Provider.Name {
	case providerOpenAI:
		return "OPENAI_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}

	switch c.Provider.Name {
	case providerGemini, providerOpenAI:
	default:
		return fmt.Errorf("provider.name %q must be one of %q or %q", c.Provider.Name, providerGemini, providerOpenAI)
	}

	if strings.TrimSpace(c.Provider.APIKey) == "" {
		return fmt.Errorf("provider api key must be provided (config provider.api_key or %s)", c.apiKeyEnvVar())
	}
	if strings.TrimSpace(c.Provider.Model) == "" {
		return fmt.Errorf("provider.model must not be empty")
	}
	if c.Provider.RequestsPerMinute < 0 {
		return fmt.Errorf("provider.requests_per_minute must not be negative, got %v", c.Provider.RequestsPerMinute)
	}
	if c.Provider.RequestsPerMinute > 0 && c.Provider.Burst <= 0 {
		return fmt.Errorf("provider.burst must be positive when the outbound throttle is enabled, got %d", c.Provider.Burst)
	}

	for _, window := range []struct {
		name  string
		limit int
	}{
		{"quota.minute_limit", c.Quota.MinuteLimit},
		{"quota.hour_limit", c.Quota.HourLimit},
		{"quota.day_limit", c.Quota.DayLimit},
	} {
		if window.limit <= 0 {
			return fmt.Errorf("%s must be positive, got %d", window.name, window.limit)
		}
	}

	if c.Stream.ChunkSize <= 0 {
		return fmt.Errorf("stream.chunk_size must be positive, got %d", c.Stream.ChunkSize)
	}
	if c.Stream.WordDelayMS < 0 {
		return fmt.Errorf("stream.word_delay_ms must not be negative, got %d", c.Stream.WordDelayMS)
	}

	return nil
}
