package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/justestif/moodlens/internal/emotion"
	"github.com/justestif/moodlens/internal/model"
)

// User retrieves a user by ID. Returns model.ErrNotFound if missing.
func (s *Store) User(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	var created, updated int64
	var lastSync sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, timezone, last_sync_at, created_at, updated_at
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.DisplayName, &u.Timezone, &lastSync, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	if lastSync.Valid {
		t := fromMillis(lastSync.Int64)
		u.LastSyncAt = &t
	}
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return &u, nil
}

const playColumns = `
	e.id, e.user_id, e.track_id, e.played_at, e.ms_played, e.source,
	t.id, t.name, t.artist, t.album, t.duration_ms,
	d.track_id, d.duration_ms, d.valence, d.energy, d.danceability, d.acousticness,
	d.speechiness, d.tempo, d.loudness, d.mode,
	c.event_id, c.label, c.category, c.valence, c.arousal, c.mood, c.confidence, c.method, c.updated_at`

// FindPlays returns events matching f joined with their track, descriptor and
// classification. Rows are ordered oldest first unless f.Limit is set, in
// which case the newest f.Limit events are returned newest first.
func (s *Store) FindPlays(ctx context.Context, f model.EventFilter) ([]model.Play, error) {
	where := []string{"e.user_id = ?"}
	args := []any{f.UserID}
	if !f.Since.IsZero() {
		where = append(where, "e.played_at >= ?")
		args = append(args, toMillis(f.Since))
	}
	if !f.Until.IsZero() {
		where = append(where, "e.played_at < ?")
		args = append(args, toMillis(f.Until))
	}
	if f.Source != "" {
		where = append(where, "e.source = ?")
		args = append(args, string(f.Source))
	}
	if f.Unclassified {
		where = append(where, "c.event_id IS NULL")
	}

	query := `SELECT ` + playColumns + `
		FROM events e
		LEFT JOIN tracks t ON t.id = e.track_id
		LEFT JOIN descriptors d ON d.track_id = e.track_id
		LEFT JOIN classifications c ON c.event_id = e.id
		WHERE ` + strings.Join(where, " AND ")
	if f.Limit > 0 {
		query += ` ORDER BY e.played_at DESC, e.id LIMIT ?`
		args = append(args, f.Limit)
	} else {
		query += ` ORDER BY e.played_at ASC, e.id`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating plays: %w", err)
	}
	return plays, nil
}

func scanPlay(rows *sql.Rows) (model.Play, error) {
	var (
		p        model.Play
		playedAt int64
		source   string

		trackID, trackName, trackArtist sql.NullString
		trackAlbum                      *string
		trackDuration                   *int

		descTrack sql.NullString
		d         model.Descriptor

		clsEvent, clsLabel, clsCategory, clsMethod sql.NullString
		clsV, clsA, clsMood, clsConf               sql.NullFloat64
		clsUpdated                                 sql.NullInt64
	)
	err := rows.Scan(
		&p.ID, &p.UserID, &p.TrackID, &playedAt, &p.MsPlayed, &source,
		&trackID, &trackName, &trackArtist, &trackAlbum, &trackDuration,
		&descTrack, &d.DurationMs, &d.Valence, &d.Energy, &d.Danceability, &d.Acousticness,
		&d.Speechiness, &d.Tempo, &d.Loudness, &d.Mode,
		&clsEvent, &clsLabel, &clsCategory, &clsV, &clsA, &clsMood, &clsConf, &clsMethod, &clsUpdated,
	)
	if err != nil {
		return p, fmt.Errorf("scanning play: %w", err)
	}
	p.PlayedAt = fromMillis(playedAt)
	p.Source = model.Source(source)

	if trackID.Valid {
		p.Track = &model.Track{
			ID:         trackID.String,
			Name:       trackName.String,
			Artist:     trackArtist.String,
			Album:      trackAlbum,
			DurationMs: trackDuration,
		}
	}
	if descTrack.Valid {
		d.TrackID = descTrack.String
		p.Descriptor = &d
	}
	if clsEvent.Valid {
		p.Classification = &model.Classification{
			EventID:    p.ID,
			Label:      emotion.Label(clsLabel.String),
			Category:   emotion.Category(clsCategory.String),
			Valence:    clsV.Float64,
			Arousal:    clsA.Float64,
			Mood:       clsMood.Float64,
			Confidence: clsConf.Float64,
			Method:     model.Method(clsMethod.String),
			UpdatedAt:  fromMillis(clsUpdated.Int64),
		}
	}
	return p, nil
}

// CutSamples returns one sample per play of the user whose track has known
// valence and energy. Arousal is derived with classifier defaults.
func (s *Store) CutSamples(ctx context.Context, userID string) ([]emotion.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.valence, d.energy, d.acousticness, d.tempo, d.loudness
		FROM events e
		JOIN descriptors d ON d.track_id = e.track_id
		WHERE e.user_id = ? AND d.valence IS NOT NULL AND d.energy IS NOT NULL`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying cut samples: %w", err)
	}
	defer rows.Close()

	var samples []emotion.Sample
	for rows.Next() {
		var raw emotion.RawFeatures
		if err := rows.Scan(&raw.Valence, &raw.Energy, &raw.Acousticness, &raw.Tempo, &raw.Loudness); err != nil {
			return nil, fmt.Errorf("scanning cut sample: %w", err)
		}
		samples = append(samples, emotion.SampleOf(emotion.Normalize(raw, emotion.ClassifierDefaults())))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cut samples: %w", err)
	}
	return samples, nil
}

// TracksMissingDescriptors returns distinct tracks the user played since the
// given time whose descriptor is absent or lacks valence or energy.
func (s *Store) TracksMissingDescriptors(ctx context.Context, userID string, since time.Time, limit int) ([]model.Track, error) {
	query := `
		SELECT e.track_id, COALESCE(t.name, ''), COALESCE(t.artist, ''), MAX(e.played_at) AS last_played
		FROM events e
		LEFT JOIN tracks t ON t.id = e.track_id
		LEFT JOIN descriptors d ON d.track_id = e.track_id
		WHERE e.user_id = ? AND e.played_at >= ?
		  AND (d.track_id IS NULL OR d.valence IS NULL OR d.energy IS NULL)
		GROUP BY e.track_id
		ORDER BY last_played DESC`
	args := []any{userID, toMillis(since)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tracks missing descriptors: %w", err)
	}
	defer rows.Close()

	var tracks []model.Track
	for rows.Next() {
		var t model.Track
		var last int64
		if err := rows.Scan(&t.ID, &t.Name, &t.Artist, &last); err != nil {
			return nil, fmt.Errorf("scanning track: %w", err)
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tracks: %w", err)
	}
	return tracks, nil
}
