// Package factory constructs the configured upstream provider client.
package factory

import (
	"fmt"

	"chatrelay/internal/config"
	"chatrelay/internal/provider"
	"chatrelay/internal/provider/gemini"
	"chatrelay/internal/provider/openai"
)

// NewClient builds the provider client selected by cfg, wrapping it with
// the outbound throttle when one is configured.
func NewClient(cfg config.ProviderConfig) (provider.Client, error) {
	var (
		client provider.Client
		err    error
	)

	switch cfg.Name {
	case "gemini":
		client, err = gemini.New(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case "openai":
		client, err = openai.New(cfg.APIKey, cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("construct %s provider: %w", cfg.Name, err)
	}

	if cfg.RequestsPerMinute > 0 {
		throttled, err := provider.NewThrottled(client, cfg.RequestsPerMinute, cfg.Burst)
		if err != nil {
			return nil, err
		}
		return throttled, nil
	}

	return client, nil
}
