// Package spotify fetches audio descriptors from the Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/justestif/moodlens/internal/logging"
	"github.com/justestif/moodlens/internal/metrics"
)

// maxTracksPerRequest is the Spotify limit for audio feature lookups.
const maxTracksPerRequest = 100

// ErrUnavailable is returned when the catalog could not be reached.
var ErrUnavailable = errors.New("catalog unavailable")

// featuresAPI is the subset of the Spotify client used by Catalog.
type featuresAPI interface {
	GetAudioFeatures(ctx context.Context, ids ...spotify.ID) ([]*spotify.AudioFeatures, error)
}

// Catalog looks up audio descriptors for tracks.
type Catalog struct {
	api       featuresAPI
	limiter   *rate.Limiter
	batchSize int
	attempts  uint
	delay     time.Duration
	timeout   time.Duration
	metrics   *metrics.Recorder
	logger    *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithBatchSize sets the number of IDs per request, capped at 100.
func WithBatchSize(n int) Option {
	return func(c *Catalog) {
		if n > 0 && n <= maxTracksPerRequest {
			c.batchSize = n
		}
	}
}

// WithRate limits requests per second.
func WithRate(perSec float64) Option {
	return func(c *Catalog) {
		if perSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

// WithRetry sets retry attempts and the initial backoff delay.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Catalog) {
		c.attempts = attempts
		c.delay = delay
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Catalog) {
		c.timeout = d
	}
}

// WithMetrics records batch latency.
func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Catalog) {
		c.metrics = m
	}
}

// New creates a Catalog authenticated with the client credentials flow.
func New(ctx context.Context, clientID, clientSecret string, opts ...Option) (*Catalog, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("spotify client credentials: %w", ErrUnavailable)
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	api := spotify.New(cfg.Client(ctx))
	return newCatalog(api, opts...), nil
}

func newCatalog(api featuresAPI, opts ...Option) *Catalog {
	c := &Catalog{
		api:       api,
		limiter:   rate.NewLimiter(rate.Limit(5), 1),
		batchSize: maxTracksPerRequest,
		attempts:  3,
		delay:     500 * time.Millisecond,
		timeout:   15 * time.Second,
		logger:    logging.Named("spotify"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
