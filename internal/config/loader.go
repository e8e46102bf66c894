package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every moodlens environment variable.
const EnvPrefix = "MOODLENS_"

// Load builds a Config by layering defaults, an optional YAML file and
// environment variables. Order of precedence (low -> high):
//  1. defaults (New)
//  2. file at path, or MOODLENS_CONFIG when path is empty
//  3. MOODLENS_* env vars; a double underscore separates sections,
//     e.g. MOODLENS_AI__TIMEOUT_MS -> ai.timeout_ms
//  4. well-known provider variables (OPENAI_API_KEY, AZURE_OPENAI_*,
//     SPOTIFY_ID, SPOTIFY_SECRET, LASTFM_API_KEY) fill fields still empty
func Load(_ context.Context, path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: reading environment: %v", ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	applyWellKnownEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyWellKnownEnv(cfg *Config) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	fill(&cfg.AI.OpenAIKey, "OPENAI_API_KEY")
	fill(&cfg.AI.AzureEndpoint, "AZURE_OPENAI_ENDPOINT")
	fill(&cfg.AI.AzureAPIKey, "AZURE_OPENAI_API_KEY")
	fill(&cfg.AI.AzureDeployment, "AZURE_OPENAI_DEPLOYMENT")
	fill(&cfg.Catalog.ClientID, "SPOTIFY_ID")
	fill(&cfg.Catalog.ClientSecret, "SPOTIFY_SECRET")
	fill(&cfg.LastFM.APIKey, "LASTFM_API_KEY")
	if model := os.Getenv("OPENAI_MODEL"); model != "" && cfg.AI.Model == New().AI.Model {
		cfg.AI.Model = model
	}
}
