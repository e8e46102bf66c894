package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/justestif/moodlens/internal/model"
)

// UpsertUser creates or updates a user.
func (s *Store) UpsertUser(ctx context.Context, u *model.User) error {
	now := time.Now().UTC()
	var lastSync sql.NullInt64
	if u.LastSyncAt != nil {
		lastSync = sql.NullInt64{Int64: toMillis(*u.LastSyncAt), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, timezone, last_sync_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			display_name = excluded.display_name,
			timezone = excluded.timezone,
			last_sync_at = excluded.last_sync_at,
			updated_at = excluded.updated_at`,
		u.ID, u.DisplayName, u.Timezone, lastSync, toMillis(now), toMillis(now))
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}

// UpsertTracks creates or updates track metadata.
func (s *Store) UpsertTracks(ctx context.Context, tracks []model.Track) error {
	if len(tracks) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO tracks (id, name, artist, album, duration_ms, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				artist = excluded.artist,
				album = COALESCE(excluded.album, tracks.album),
				duration_ms = COALESCE(excluded.duration_ms, tracks.duration_ms)`)
		if err != nil {
			return fmt.Errorf("preparing track upsert: %w", err)
		}
		defer stmt.Close()

		now := toMillis(time.Now())
		for _, t := range tracks {
			if _, err := stmt.ExecContext(ctx, t.ID, t.Name, t.Artist, t.Album, t.DurationMs, now); err != nil {
				return fmt.Errorf("upserting track %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// InsertEvents stores listening events. Events already present for the same
// user, track and time are ignored. It returns the number inserted.
func (s *Store) InsertEvents(ctx context.Context, events []model.Event) (int, error) {
	inserted := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO events (id, user_id, track_id, played_at, ms_played, source)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING`)
		if err != nil {
			return fmt.Errorf("preparing event insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range events {
			if e.MsPlayed < 0 {
				return fmt.Errorf("event %s: negative ms played", e.ID)
			}
			res, err := stmt.ExecContext(ctx, e.ID.String(), e.UserID, e.TrackID, toMillis(e.PlayedAt), e.MsPlayed, string(e.Source))
			if err != nil {
				return fmt.Errorf("inserting event %s: %w", e.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(n)
		}
		return nil
	})
	return inserted, err
}

// UpsertDescriptors creates or replaces descriptors keyed by track ID.
// The last write for a track wins.
func (s *Store) UpsertDescriptors(ctx context.Context, ds []model.Descriptor) error {
	if len(ds) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO descriptors (track_id, duration_ms, valence, energy, danceability,
				acousticness, speechiness, tempo, loudness, mode, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (track_id) DO UPDATE SET
				duration_ms = excluded.duration_ms,
				valence = excluded.valence,
				energy = excluded.energy,
				danceability = excluded.danceability,
				acousticness = excluded.acousticness,
				speechiness = excluded.speechiness,
				tempo = excluded.tempo,
				loudness = excluded.loudness,
				mode = excluded.mode,
				updated_at = excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("preparing descriptor upsert: %w", err)
		}
		defer stmt.Close()

		now := toMillis(time.Now())
		for _, d := range ds {
			_, err := stmt.ExecContext(ctx, d.TrackID, d.DurationMs, d.Valence, d.Energy, d.Danceability,
				d.Acousticness, d.Speechiness, d.Tempo, d.Loudness, d.Mode, now)
			if err != nil {
				return fmt.Errorf("upserting descriptor %s: %w", d.TrackID, err)
			}
		}
		return nil
	})
}

// UpsertClassification creates or replaces the classification for an event.
// It reports whether a new record was created.
func (s *Store) UpsertClassification(ctx context.Context, c model.Classification) (bool, error) {
	created := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM classifications WHERE event_id = ?`, c.EventID.String()).Scan(&one)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			created = true
		case err != nil:
			return fmt.Errorf("checking classification: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO classifications (event_id, label, category, valence, arousal, mood, confidence, method, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (event_id) DO UPDATE SET
				label = excluded.label,
				category = excluded.category,
				valence = excluded.valence,
				arousal = excluded.arousal,
				mood = excluded.mood,
				confidence = excluded.confidence,
				method = excluded.method,
				updated_at = excluded.updated_at`,
			c.EventID.String(), string(c.Label), string(c.Category), c.Valence, c.Arousal,
			c.Mood, c.Confidence, string(c.Method), toMillis(time.Now()))
		if err != nil {
			return fmt.Errorf("upserting classification: %w", err)
		}
		return nil
	})
	return created, err
}

// DeleteUserData removes a user's events and their classifications.
// Descriptors are shared between users and kept. It returns the number of
// events deleted.
func (s *Store) DeleteUserData(ctx context.Context, userID string) (int64, error) {
	var deleted int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM classifications
			WHERE event_id IN (SELECT id FROM events WHERE user_id = ?)`, userID); err != nil {
			return fmt.Errorf("deleting classifications: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE user_id = ?`, userID)
		if err != nil {
			return fmt.Errorf("deleting events: %w", err)
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
