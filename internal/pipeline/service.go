// Package pipeline runs the batch classification jobs and loads the read
// models built by package aggregate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/justestif/moodlens/internal/ai"
	"github.com/justestif/moodlens/internal/config"
	"github.com/justestif/moodlens/internal/emotion"
	"github.com/justestif/moodlens/internal/logging"
	"github.com/justestif/moodlens/internal/metrics"
	"github.com/justestif/moodlens/internal/model"
)

// Errors returned by Service.
var (
	ErrNoCatalog   = errors.New("no descriptor catalog configured")
	ErrNoSuggester = errors.New("no suggestion provider configured")
)

// Store persists events, descriptors and classifications.
// Implemented by *db.DB and *sqlite.Store.
type Store interface {
	User(ctx context.Context, id string) (*model.User, error)
	UpsertUser(ctx context.Context, u *model.User) error
	UpsertTracks(ctx context.Context, tracks []model.Track) error
	InsertEvents(ctx context.Context, events []model.Event) (int, error)
	FindPlays(ctx context.Context, f model.EventFilter) ([]model.Play, error)
	UpsertClassification(ctx context.Context, c model.Classification) (bool, error)
	UpsertDescriptors(ctx context.Context, ds []model.Descriptor) error
	CutSamples(ctx context.Context, userID string) ([]emotion.Sample, error)
	TracksMissingDescriptors(ctx context.Context, userID string, since time.Time, limit int) ([]model.Track, error)
	DeleteUserData(ctx context.Context, userID string) (int64, error)
}

// Catalog looks up audio descriptors. It may return a partial map together
// with an error; missing IDs are simply absent.
type Catalog interface {
	FetchDescriptors(ctx context.Context, ids []string) (map[string]model.Descriptor, error)
}

// Tagger supplies folksonomy tags for AI context.
type Tagger interface {
	TopTagNames(ctx context.Context, artist, track string, n int) ([]string, error)
}

// Defaults used when no configuration is supplied.
const (
	DefaultConcurrency     = 4
	DefaultReclassifyLimit = 5000
	DefaultFillLimit       = 2000
	DefaultReclassifyDays  = 30
	maxTags                = 5
)

// Service coordinates the store with the classifier and external collaborators.
type Service struct {
	store     Store
	catalog   Catalog
	suggester ai.Suggester
	tagger    Tagger
	metrics   *metrics.Recorder
	logger    *slog.Logger

	concurrency     int
	reclassifyLimit int
	fillLimit       int
	minSamples      int
	catalogBatch    int
	defaultLoc      *time.Location

	writeAttempts uint
	writeDelay    time.Duration
	now           func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCatalog sets the descriptor catalog used by BackfillDescriptors.
func WithCatalog(c Catalog) Option {
	return func(s *Service) { s.catalog = c }
}

// WithSuggester sets the AI suggestion provider.
func WithSuggester(sg ai.Suggester) Option {
	return func(s *Service) {
		if sg != nil {
			s.suggester = sg
		}
	}
}

// WithTagger sets the tag source passed to the suggester.
func WithTagger(t Tagger) Option {
	return func(s *Service) { s.tagger = t }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConcurrency sets the number of concurrent suggestion calls.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithWriteRetry sets how often a failed write is attempted.
func WithWriteRetry(attempts uint, delay time.Duration) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.writeAttempts = attempts
		}
		s.writeDelay = delay
	}
}

// WithClock overrides the current time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithConfig applies job limits, concurrency and the default timezone.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg.AI.Concurrency > 0 {
			s.concurrency = cfg.AI.Concurrency
		}
		if cfg.Reclassify.Limit > 0 {
			s.reclassifyLimit = cfg.Reclassify.Limit
		}
		if cfg.Reclassify.FillLimit > 0 {
			s.fillLimit = cfg.Reclassify.FillLimit
		}
		if cfg.Reclassify.MinSamples > 0 {
			s.minSamples = cfg.Reclassify.MinSamples
		}
		if cfg.Catalog.BatchSize > 0 && cfg.Catalog.BatchSize <= config.MaxCatalogBatch {
			s.catalogBatch = cfg.Catalog.BatchSize
		}
		if loc, err := time.LoadLocation(cfg.DefaultTimezone); err == nil {
			s.defaultLoc = loc
		}
	}
}

// New creates a Service over store.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:           store,
		suggester:       ai.Disabled{},
		logger:          logging.Named("pipeline"),
		concurrency:     DefaultConcurrency,
		reclassifyLimit: DefaultReclassifyLimit,
		fillLimit:       DefaultFillLimit,
		minSamples:      1,
		catalogBatch:    config.MaxCatalogBatch,
		defaultLoc:      time.UTC,
		writeAttempts:   3,
		writeDelay:      100 * time.Millisecond,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DeleteUserData removes a user's events and classifications. Descriptors
// are shared between users and kept.
func (s *Service) DeleteUserData(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.DeleteUserData(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("deleting data for %s: %w", userID, err)
	}
	s.logger.Info("deleted user data", "user", userID, "events", n)
	return n, nil
}

// location resolves the timezone for a user's read models.
func (s *Service) location(ctx context.Context, userID string) (*time.Location, error) {
	u, err := s.store.User(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return s.defaultLoc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if u.Timezone == "" {
		return s.defaultLoc, nil
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		s.logger.Warn("ignoring invalid user timezone", "user", userID, "timezone", u.Timezone)
		return s.defaultLoc, nil
	}
	return loc, nil
}
