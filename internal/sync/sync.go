// Package sync imports a listener's recently played tracks from Spotify.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/moodlens/internal/ingest"
	"github.com/justestif/moodlens/internal/logging"
	"github.com/justestif/moodlens/internal/model"
	"github.com/justestif/moodlens/internal/pipeline"
)

// ErrSyncTooRecent is returned when sync is attempted within the cooldown period.
var ErrSyncTooRecent = errors.New("sync attempted too recently")

const (
	// DefaultSyncCooldown is the default time between allowed syncs.
	DefaultSyncCooldown = time.Hour

	// recentLimit is the most plays the recently played endpoint returns.
	recentLimit = 50
)

// RecentAPI is the subset of the Spotify client used for syncing.
type RecentAPI interface {
	PlayerRecentlyPlayedOpt(ctx context.Context, opt *spotify.RecentlyPlayedOptions) ([]spotify.RecentlyPlayedItem, error)
}

// Users reads and writes the per-user sync timestamp.
type Users interface {
	User(ctx context.Context, id string) (*model.User, error)
	UpsertUser(ctx context.Context, u *model.User) error
}

// Importer stores plays as events.
type Importer interface {
	Import(ctx context.Context, userID string, recs []ingest.Record, source model.Source) (pipeline.ImportResult, error)
}

// Service handles syncing recent plays into the event log.
type Service struct {
	users        Users
	importer     Importer
	syncCooldown time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSyncCooldown sets the minimum time between syncs.
func WithSyncCooldown(d time.Duration) Option {
	return func(s *Service) {
		s.syncCooldown = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a new sync service.
func New(users Users, importer Importer, opts ...Option) *Service {
	s := &Service{
		users:        users,
		importer:     importer,
		syncCooldown: DefaultSyncCooldown,
		now:          time.Now,
		logger:       logging.Named("sync"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncResult contains the result of a sync operation.
type SyncResult struct {
	pipeline.ImportResult
	SyncedAt time.Time
}

// CanSync reports whether the cooldown has passed since the last sync, and
// when not, the time the next sync becomes available.
func (s *Service) CanSync(ctx context.Context, userID string) (bool, time.Time, error) {
	user, err := s.users.User(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return true, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, fmt.Errorf("getting user: %w", err)
	}
	if user.LastSyncAt == nil {
		return true, time.Time{}, nil
	}

	next := user.LastSyncAt.Add(s.syncCooldown)
	if s.now().Before(next) {
		return false, next, nil
	}
	return true, time.Time{}, nil
}

// SyncRecent imports the user's most recent plays. Plays already stored are
// counted as duplicates. Returns ErrSyncTooRecent within the cooldown period
// unless force is set.
func (s *Service) SyncRecent(ctx context.Context, api RecentAPI, userID string, force bool) (*SyncResult, error) {
	if !force {
		ok, next, err := s.CanSync(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: next sync available at %s", ErrSyncTooRecent, next.Format(time.RFC3339))
		}
	}

	items, err := api.PlayerRecentlyPlayedOpt(ctx, &spotify.RecentlyPlayedOptions{Limit: recentLimit})
	if err != nil {
		return nil, fmt.Errorf("fetching recently played: %w", err)
	}

	recs := make([]ingest.Record, 0, len(items))
	for _, it := range items {
		if rec, ok := recordFrom(it); ok {
			recs = append(recs, rec)
		}
	}

	res, err := s.importer.Import(ctx, userID, recs, model.SourceSync)
	if err != nil {
		return nil, err
	}

	syncedAt := s.now().UTC()
	if err := s.markSynced(ctx, userID, syncedAt); err != nil {
		return nil, err
	}
	s.logger.Info("synced recent plays", "user", userID, "fetched", len(items), "inserted", res.Inserted)
	return &SyncResult{ImportResult: res, SyncedAt: syncedAt}, nil
}

// LastSyncTime returns the last sync time for a user, nil if never synced.
func (s *Service) LastSyncTime(ctx context.Context, userID string) (*time.Time, error) {
	user, err := s.users.User(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user.LastSyncAt, nil
}

func (s *Service) markSynced(ctx context.Context, userID string, at time.Time) error {
	user, err := s.users.User(ctx, userID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		user = &model.User{ID: userID}
	case err != nil:
		return fmt.Errorf("getting user: %w", err)
	}
	user.LastSyncAt = &at
	if err := s.users.UpsertUser(ctx, user); err != nil {
		return fmt.Errorf("updating last sync: %w", err)
	}
	return nil
}

// recordFrom converts a recently played item. Items without a track ID,
// such as local files, are dropped. The endpoint reports no partial play
// time, so a play counts as the full track.
func recordFrom(it spotify.RecentlyPlayedItem) (ingest.Record, bool) {
	if it.Track.ID == "" || it.Track.Name == "" {
		return ingest.Record{}, false
	}
	artists := make([]string, len(it.Track.Artists))
	for i, a := range it.Track.Artists {
		artists[i] = a.Name
	}
	duration := int(it.Track.Duration)
	return ingest.Record{
		PlayedAt:   it.PlayedAt.UTC(),
		MsPlayed:   duration,
		TrackID:    it.Track.ID.String(),
		TrackName:  it.Track.Name,
		Artist:     strings.Join(artists, ", "),
		DurationMs: duration,
	}, true
}
