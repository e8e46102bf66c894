package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/moodlens/internal/emotion"
	"github.com/justestif/moodlens/internal/model"
)

// EventRepository handles listening event operations.
type EventRepository struct {
	pool *pgxpool.Pool
}

// InsertBatch stores events, ignoring any already recorded for the same
// user, track and time. It returns the number inserted.
func (r *EventRepository) InsertBatch(ctx context.Context, events []model.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO events (id, user_id, track_id, played_at, ms_played, source)
		SELECT * FROM unnest($1::uuid[], $2::text[], $3::text[], $4::timestamptz[], $5::int[], $6::text[])
		ON CONFLICT DO NOTHING
	`

	n := len(events)
	ids := make([]string, n)
	users := make([]string, n)
	tracks := make([]string, n)
	playedAts := make([]time.Time, n)
	msPlayed := make([]int, n)
	sources := make([]string, n)
	for i, e := range events {
		if e.MsPlayed < 0 {
			return 0, fmt.Errorf("event %s: negative ms played", e.ID)
		}
		ids[i] = e.ID.String()
		users[i] = e.UserID
		tracks[i] = e.TrackID
		playedAts[i] = e.PlayedAt
		msPlayed[i] = e.MsPlayed
		sources[i] = string(e.Source)
	}

	tag, err := r.pool.Exec(ctx, query, ids, users, tracks, playedAts, msPlayed, sources)
	if err != nil {
		return 0, fmt.Errorf("batch inserting events: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Find returns plays matching f. Rows are oldest first unless f.Limit is set,
// in which case the newest f.Limit plays are returned newest first.
func (r *EventRepository) Find(ctx context.Context, f model.EventFilter) ([]model.Play, error) {
	where := []string{"e.user_id = $1"}
	args := []any{f.UserID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !f.Since.IsZero() {
		where = append(where, "e.played_at >= "+arg(f.Since))
	}
	if !f.Until.IsZero() {
		where = append(where, "e.played_at < "+arg(f.Until))
	}
	if f.Source != "" {
		where = append(where, "e.source = "+arg(string(f.Source)))
	}
	if f.Unclassified {
		where = append(where, "c.event_id IS NULL")
	}

	query := `
		SELECT e.id, e.user_id, e.track_id, e.played_at, e.ms_played, e.source,
			t.id, t.name, t.artist, t.album, t.duration_ms,
			d.track_id, d.duration_ms, d.valence, d.energy, d.danceability, d.acousticness,
			d.speechiness, d.tempo, d.loudness, d.mode,
			c.event_id, c.label, c.category, c.valence, c.arousal, c.mood, c.confidence, c.method, c.updated_at
		FROM events e
		LEFT JOIN tracks t ON t.id = e.track_id
		LEFT JOIN descriptors d ON d.track_id = e.track_id
		LEFT JOIN classifications c ON c.event_id = e.id
		WHERE ` + strings.Join(where, " AND ")
	if f.Limit > 0 {
		query += " ORDER BY e.played_at DESC, e.id LIMIT " + arg(f.Limit)
	} else {
		query += " ORDER BY e.played_at ASC, e.id"
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying plays: %w", err)
	}
	defer rows.Close()

	var plays []model.Play
	for rows.Next() {
		p, err := scanPlay(rows)
		if err != nil {
			return nil, err
		}
		plays = append(plays, p)
	}
	return plays, rows.Err()
}

func scanPlay(rows pgx.Rows) (model.Play, error) {
	var (
		p      model.Play
		source string

		trackID, trackName, trackArtist *string
		trackAlbum                      *string
		trackDuration                   *int

		descTrack *string
		d         model.Descriptor

		clsEvent                         *uuid.UUID
		clsLabel, clsCategory, clsMethod *string
		clsV, clsA, clsMood, clsConf     *float64
		clsUpdated                       *time.Time
	)
	err := rows.Scan(
		&p.ID, &p.UserID, &p.TrackID, &p.PlayedAt, &p.MsPlayed, &source,
		&trackID, &trackName, &trackArtist, &trackAlbum, &trackDuration,
		&descTrack, &d.DurationMs, &d.Valence, &d.Energy, &d.Danceability, &d.Acousticness,
		&d.Speechiness, &d.Tempo, &d.Loudness, &d.Mode,
		&clsEvent, &clsLabel, &clsCategory, &clsV, &clsA, &clsMood, &clsConf, &clsMethod, &clsUpdated,
	)
	if err != nil {
		return p, fmt.Errorf("scanning play: %w", err)
	}
	p.Source = model.Source(source)

	if trackID != nil {
		p.Track = &model.Track{
			ID:         *trackID,
			Name:       deref(trackName),
			Artist:     deref(trackArtist),
			Album:      trackAlbum,
			DurationMs: trackDuration,
		}
	}
	if descTrack != nil {
		d.TrackID = *descTrack
		p.Descriptor = &d
	}
	if clsEvent != nil {
		p.Classification = &model.Classification{
			EventID:    *clsEvent,
			Label:      emotion.Label(deref(clsLabel)),
			Category:   emotion.Category(deref(clsCategory)),
			Valence:    deref(clsV),
			Arousal:    deref(clsA),
			Mood:       deref(clsMood),
			Confidence: deref(clsConf),
			Method:     model.Method(deref(clsMethod)),
			UpdatedAt:  deref(clsUpdated),
		}
	}
	return p, nil
}

// DeleteForUser removes a user's events; classifications cascade.
func (r *EventRepository) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("deleting events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
