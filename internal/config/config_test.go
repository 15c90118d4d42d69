package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWithEnvCredential(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8787 {
		t.Errorf("Port = %d, want 8787", cfg.Server.Port)
	}
	if cfg.Provider.Name != "gemini" {
		t.Errorf("Provider.Name = %q, want gemini", cfg.Provider.Name)
	}
	if cfg.Provider.APIKey != "test-key" {
		t.Errorf("APIKey = %q, want env value", cfg.Provider.APIKey)
	}
	if cfg.Quota.MinuteLimit != 15 || cfg.Quota.HourLimit != 250 || cfg.Quota.DayLimit != 500 {
		t.Errorf("Quota = %+v, want 15/250/500", cfg.Quota)
	}
	if cfg.Stream.ChunkSize != 20 || cfg.Stream.WordDelayMS != 50 {
		t.Errorf("Stream = %+v, want chunk_size 20 word_delay_ms 50", cfg.Stream)
	}
}

func TestLoad_MissingCredential(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error without an API credential")
	}
}

func TestLoad_YAMLFileOverridesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 9000
provider:
  name: openai
  api_key: file-key
  model: gpt-4.1-mini
  requests_per_minute: 30
  burst: 5
quota:
  minute_limit: 2
  hour_limit: 10
  day_limit: 20
stream:
  chunk_size: 40
  word_delay_ms: 10
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Provider.Name != "openai" || cfg.Provider.APIKey != "file-key" {
		t.Errorf("Provider = %+v, want openai/file-key", cfg.Provider)
	}
	if cfg.Quota.MinuteLimit != 2 {
		t.Errorf("MinuteLimit = %d, want 2", cfg.Quota.MinuteLimit)
	}
	if cfg.Stream.ChunkSize != 40 {
		t.Errorf("ChunkSize = %d, want 40", cfg.Stream.ChunkSize)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("PORT", "9999")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "provider:\n  api_key: file-key\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", cfg.Provider.APIKey)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Server.Port)
	}
}

func TestLoad_InvalidPortEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("PORT", "not-a-port")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric PORT")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Provider.APIKey = "k"

	tests := []struct {
		name   string
		mutate func(*Config)
		wantOK bool
	}{
		{"valid defaults", func(c *Config) {}, true},
		{"zero port", func(c *Config) { c.Server.Port = 0 }, false},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, false},
		{"unknown provider", func(c *Config) { c.Provider.Name = "llama-farm" }, false},
		{"blank api key", func(c *Config) { c.Provider.APIKey = "  " }, false},
		{"blank model", func(c *Config) { c.Provider.Model = "" }, false},
		{"negative rpm", func(c *Config) { c.Provider.RequestsPerMinute = -1 }, false},
		{"throttle without burst", func(c *Config) { c.Provider.RequestsPerMinute = 10; c.Provider.Burst = 0 }, false},
		{"throttle with burst", func(c *Config) { c.Provider.RequestsPerMinute = 10; c.Provider.Burst = 2 }, true},
		{"zero minute limit", func(c *Config) { c.Quota.MinuteLimit = 0 }, false},
		{"negative hour limit", func(c *Config) { c.Quota.HourLimit = -5 }, false},
		{"zero day limit", func(c *Config) { c.Quota.DayLimit = 0 }, false},
		{"zero chunk size", func(c *Config) { c.Stream.ChunkSize = 0 }, false},
		{"negative word delay", func(c *Config) { c.Stream.WordDelayMS = -1 }, false},
		{"zero word delay", func(c *Config) { c.Stream.WordDelayMS = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantOK && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.wantOK && err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
