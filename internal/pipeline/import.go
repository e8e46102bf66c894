package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/moodlens/internal/ingest"
	"github.com/justestif/moodlens/internal/model"
)

// importBatch bounds the number of events written per statement batch.
const importBatch = 500

// ImportResult counts the outcome of an import.
type ImportResult struct {
	Records    int `json:"records"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
}

// Import stores parsed history records as events of the given source.
// Re-importing the same export inserts nothing: events are unique per user,
// track and play time.
func (s *Service) Import(ctx context.Context, userID string, recs []ingest.Record, source model.Source) (ImportResult, error) {
	res := ImportResult{Records: len(recs)}
	if len(recs) == 0 {
		return res, nil
	}

	seen := make(map[string]bool)
	var tracks []model.Track
	events := make([]model.Event, 0, len(recs))
	for _, r := range recs {
		if !seen[r.TrackID] {
			seen[r.TrackID] = true
			t := model.Track{ID: r.TrackID, Name: r.TrackName, Artist: r.Artist}
			if r.Album != "" {
				album := r.Album
				t.Album = &album
			}
			if r.DurationMs > 0 {
				d := r.DurationMs
				t.DurationMs = &d
			}
			tracks = append(tracks, t)
		}
		events = append(events, model.Event{
			ID:       uuid.New(),
			UserID:   userID,
			TrackID:  r.TrackID,
			PlayedAt: r.PlayedAt,
			MsPlayed: r.MsPlayed,
			Source:   source,
		})
	}

	if err := s.store.UpsertTracks(ctx, tracks); err != nil {
		return res, fmt.Errorf("storing tracks: %w", err)
	}
	for lo := 0; lo < len(events); lo += importBatch {
		hi := min(lo+importBatch, len(events))
		n, err := s.store.InsertEvents(ctx, events[lo:hi])
		if err != nil {
			return res, fmt.Errorf("storing events: %w", err)
		}
		res.Inserted += n
	}
	res.Duplicates = res.Records - res.Inserted

	s.logger.Info("imported history", "user", userID, "source", source,
		"records", res.Records, "inserted", res.Inserted, "tracks", len(tracks))
	return res, nil
}

// SetTimezone creates the user if needed and records their timezone.
func (s *Service) SetTimezone(ctx context.Context, userID, tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("unknown timezone %q", tz)
	}
	u, err := s.store.User(ctx, userID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		u = &model.User{ID: userID}
	case err != nil:
		return fmt.Errorf("loading user: %w", err)
	}
	u.Timezone = tz
	if err := s.store.UpsertUser(ctx, u); err != nil {
		return fmt.Errorf("saving user: %w", err)
	}
	return nil
}
