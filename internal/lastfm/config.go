// Package lastfm fetches folksonomy tags that give the AI suggester extra
// context about a track.
package lastfm

import (
	"errors"

	"github.com/justestif/moodlens/internal/config"
)

// ErrMissingAPIKey is returned when no Last.fm API key is configured.
var ErrMissingAPIKey = errors.New("missing Last.fm API key")

// Config holds Last.fm API configuration.
type Config struct {
	APIKey string
}

// NewConfig builds a Config from the loaded application configuration.
// Returns ErrMissingAPIKey if no key is set.
func NewConfig(cfg config.LastFMConfig) (*Config, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &Config{APIKey: cfg.APIKey}, nil
}
