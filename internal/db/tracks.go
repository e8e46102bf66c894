package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/moodlens/internal/model"
)

// TrackRepository handles track database operations.
type TrackRepository struct {
	pool *pgxpool.Pool
}

// UpsertBatch inserts or updates multiple tracks efficiently.
func (r *TrackRepository) UpsertBatch(ctx context.Context, tracks []model.Track) error {
	if len(tracks) == 0 {
		return nil
	}

	query := `
		INSERT INTO tracks (id, name, artist, album, duration_ms, created_at)
		SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::text[], $5::int[], $6::timestamptz[])
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			artist = EXCLUDED.artist,
			album = COALESCE(EXCLUDED.album, tracks.album),
			duration_ms = COALESCE(EXCLUDED.duration_ms, tracks.duration_ms)
	`

	ids := make([]string, len(tracks))
	names := make([]string, len(tracks))
	artists := make([]string, len(tracks))
	albums := make([]*string, len(tracks))
	durations := make([]*int, len(tracks))
	createdAts := make([]time.Time, len(tracks))

	now := time.Now()
	for i, t := range tracks {
		ids[i] = t.ID
		names[i] = t.Name
		artists[i] = t.Artist
		albums[i] = t.Album
		durations[i] = t.DurationMs
		createdAts[i] = now
	}

	_, err := r.pool.Exec(ctx, query, ids, names, artists, albums, durations, createdAts)
	if err != nil {
		return fmt.Errorf("batch upserting tracks: %w", err)
	}
	return nil
}

// Get retrieves a track by ID.
func (r *TrackRepository) Get(ctx context.Context, id string) (*model.Track, error) {
	query := `
		SELECT id, name, artist, album, duration_ms, created_at
		FROM tracks
		WHERE id = $1
	`
	var track model.Track
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&track.ID,
		&track.Name,
		&track.Artist,
		&track.Album,
		&track.DurationMs,
		&track.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying track: %w", err)
	}
	return &track, nil
}

// MissingDescriptors returns distinct tracks the user played since the given
// time whose descriptor is absent or lacks valence or energy, most recently
// played first.
func (r *TrackRepository) MissingDescriptors(ctx context.Context, userID string, since time.Time, limit int) ([]model.Track, error) {
	query := `
		SELECT e.track_id, COALESCE(t.name, ''), COALESCE(t.artist, '')
		FROM events e
		LEFT JOIN tracks t ON t.id = e.track_id
		LEFT JOIN descriptors d ON d.track_id = e.track_id
		WHERE e.user_id = $1 AND e.played_at >= $2
		  AND (d.track_id IS NULL OR d.valence IS NULL OR d.energy IS NULL)
		GROUP BY e.track_id, t.name, t.artist
		ORDER BY MAX(e.played_at) DESC
	`
	args := []any{userID, since}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tracks missing descriptors: %w", err)
	}
	defer rows.Close()

	var tracks []model.Track
	for rows.Next() {
		var track model.Track
		if err := rows.Scan(&track.ID, &track.Name, &track.Artist); err != nil {
			return nil, fmt.Errorf("scanning track: %w", err)
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}
