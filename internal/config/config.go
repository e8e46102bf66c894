// Package config defines moodlens configuration and how it is loaded.
//
// The resulting Config is passed explicitly to the components that need it;
// nothing below cmd/ reads the environment.
package config

import (
	"fmt"
	"time"
)

// AI providers.
const (
	ProviderAuto   = "auto"
	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// MaxCatalogBatch is the largest batch the catalog accepts.
const MaxCatalogBatch = 100

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabaseURL selects PostgreSQL when set; otherwise SQLitePath is used.
	DatabaseURL string `koanf:"database_url"`
	SQLitePath  string `koanf:"sqlite_path"`

	// DefaultTimezone applies to users without a timezone.
	DefaultTimezone string `koanf:"default_timezone"`

	AI         AIConfig         `koanf:"ai"`
	Catalog    CatalogConfig    `koanf:"catalog"`
	LastFM     LastFMConfig     `koanf:"lastfm"`
	Reclassify ReclassifyConfig `koanf:"reclassify"`
	Sync       SyncConfig       `koanf:"sync"`
}

// AIConfig configures the optional suggestion provider.
type AIConfig struct {
	// Provider is azure, openai, none or auto (pick from available credentials).
	Provider    string `koanf:"provider"`
	TimeoutMs   int    `koanf:"timeout_ms"`
	Model       string `koanf:"model"`
	Concurrency int    `koanf:"concurrency"`

	OpenAIKey       string `koanf:"openai_api_key"`
	AzureEndpoint   string `koanf:"azure_endpoint"`
	AzureAPIKey     string `koanf:"azure_api_key"`
	AzureDeployment string `koanf:"azure_deployment"`
	AzureAPIVersion string `koanf:"azure_api_version"`
}

// CatalogConfig configures the audio descriptor provider.
type CatalogConfig struct {
	ClientID     string  `koanf:"client_id"`
	ClientSecret string  `koanf:"client_secret"`
	BatchSize    int     `koanf:"batch_size"`
	RatePerSec   float64 `koanf:"rate_per_sec"`
	TimeoutMs    int     `koanf:"timeout_ms"`
}

// LastFMConfig configures tag lookups used as extra AI context.
type LastFMConfig struct {
	APIKey string `koanf:"api_key"`
}

// ReclassifyConfig bounds batch jobs.
type ReclassifyConfig struct {
	// Limit caps events per reclassification run.
	Limit int `koanf:"limit"`
	// FillLimit caps events per fill-missing run.
	FillLimit int `koanf:"fill_limit"`
	// MinSamples is the smallest population used to estimate cut points.
	MinSamples int `koanf:"min_samples"`
}

// SyncConfig configures importing recent plays with the user's own
// authorization. Credentials are shared with the catalog.
type SyncConfig struct {
	RedirectURL     string `koanf:"redirect_url"`
	TokenPath       string `koanf:"token_path"`
	CooldownMinutes int    `koanf:"cooldown_minutes"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":8080",
		SQLitePath:      "~/.moodlens/moodlens.db",
		DefaultTimezone: "UTC",
		AI: AIConfig{
			Provider:        ProviderAuto,
			TimeoutMs:       6000,
			Model:           "gpt-4o-mini",
			Concurrency:     4,
			AzureAPIVersion: "2025-03-01-preview",
		},
		Catalog: CatalogConfig{
			BatchSize:  MaxCatalogBatch,
			RatePerSec: 5,
			TimeoutMs:  15000,
		},
		Reclassify: ReclassifyConfig{
			Limit:      5000,
			FillLimit:  2000,
			MinSamples: 1,
		},
		Sync: SyncConfig{
			RedirectURL:     "http://127.0.0.1:8080/callback",
			TokenPath:       "~/.moodlens/token.json",
			CooldownMinutes: 60,
		},
	}
}

// SyncCooldown returns the minimum time between two syncs of one user.
func (c *Config) SyncCooldown() time.Duration {
	return time.Duration(c.Sync.CooldownMinutes) * time.Minute
}

// AITimeout returns the per-call suggestion timeout.
func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AI.TimeoutMs) * time.Millisecond
}

// CatalogTimeout returns the per-batch catalog timeout.
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.TimeoutMs) * time.Millisecond
}

// ResolveProvider returns the concrete AI provider. In auto mode Azure wins
// when fully configured, then OpenAI, otherwise none.
func (c *Config) ResolveProvider() string {
	switch c.AI.Provider {
	case ProviderAzure, ProviderOpenAI, ProviderNone:
		return c.AI.Provider
	}
	if c.AI.AzureEndpoint != "" && c.AI.AzureAPIKey != "" && c.AI.AzureDeployment != "" {
		return ProviderAzure
	}
	if c.AI.OpenAIKey != "" {
		return ProviderOpenAI
	}
	return ProviderNone
}

// Validate checks option ranges and provider credentials.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("%w: default_timezone: %v", ErrInvalidConfig, err)
	}
	switch c.AI.Provider {
	case "", ProviderAuto, ProviderNone:
	case ProviderAzure:
		if c.AI.AzureEndpoint == "" || c.AI.AzureAPIKey == "" || c.AI.AzureDeployment == "" {
			return fmt.Errorf("%w: azure provider needs endpoint, api key and deployment", ErrInvalidConfig)
		}
	case ProviderOpenAI:
		if c.AI.OpenAIKey == "" {
			return fmt.Errorf("%w: openai provider needs an api key", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown ai.provider %q", ErrInvalidConfig, c.AI.Provider)
	}
	if c.AI.TimeoutMs <= 0 {
		return fmt.Errorf("%w: ai.timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.AI.Concurrency < 1 {
		return fmt.Errorf("%w: ai.concurrency must be at least 1", ErrInvalidConfig)
	}
	if c.Catalog.BatchSize < 1 || c.Catalog.BatchSize > MaxCatalogBatch {
		return fmt.Errorf("%w: catalog.batch_size must be within 1..%d", ErrInvalidConfig, MaxCatalogBatch)
	}
	if c.Catalog.RatePerSec <= 0 {
		return fmt.Errorf("%w: catalog.rate_per_sec must be positive", ErrInvalidConfig)
	}
	if c.Reclassify.Limit < 1 || c.Reclassify.FillLimit < 1 {
		return fmt.Errorf("%w: reclassify limits must be positive", ErrInvalidConfig)
	}
	if c.Reclassify.MinSamples < 1 {
		return fmt.Errorf("%w: reclassify.min_samples must be at least 1", ErrInvalidConfig)
	}
	if c.Sync.CooldownMinutes < 0 {
		return fmt.Errorf("%w: sync.cooldown_minutes must not be negative", ErrInvalidConfig)
	}
	return nil
}
