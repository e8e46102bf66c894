// Package db provides PostgreSQL database access for moodlens.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/moodlens/internal/model"
)

// Common errors.
var (
	ErrNotFound = model.ErrNotFound
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Migrate creates missing tables and indexes.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Users returns a UserRepository.
func (db *DB) Users() *UserRepository {
	return &UserRepository{pool: db.pool}
}

// Tracks returns a TrackRepository.
func (db *DB) Tracks() *TrackRepository {
	return &TrackRepository{pool: db.pool}
}

// Descriptors returns a DescriptorRepository.
func (db *DB) Descriptors() *DescriptorRepository {
	return &DescriptorRepository{pool: db.pool}
}

// Events returns an EventRepository.
func (db *DB) Events() *EventRepository {
	return &EventRepository{pool: db.pool}
}

// Classifications returns a ClassificationRepository.
func (db *DB) Classifications() *ClassificationRepository {
	return &ClassificationRepository{pool: db.pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	timezone TEXT NOT NULL DEFAULT '',
	last_sync_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS tracks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	artist TEXT NOT NULL DEFAULT '',
	album TEXT,
	duration_ms INTEGER,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS descriptors (
	track_id TEXT PRIMARY KEY,
	duration_ms INTEGER,
	valence DOUBLE PRECISION,
	energy DOUBLE PRECISION,
	danceability DOUBLE PRECISION,
	acousticness DOUBLE PRECISION,
	speechiness DOUBLE PRECISION,
	tempo DOUBLE PRECISION,
	loudness DOUBLE PRECISION,
	mode INTEGER,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS events (
	id UUID PRIMARY KEY,
	user_id TEXT NOT NULL,
	track_id TEXT NOT NULL,
	played_at TIMESTAMPTZ NOT NULL,
	ms_played INTEGER NOT NULL CHECK (ms_played >= 0),
	source TEXT NOT NULL,
	UNIQUE (user_id, track_id, played_at)
);

CREATE INDEX IF NOT EXISTS events_user_played ON events (user_id, played_at);

CREATE TABLE IF NOT EXISTS classifications (
	event_id UUID PRIMARY KEY REFERENCES events (id) ON DELETE CASCADE,
	label TEXT NOT NULL,
	category TEXT NOT NULL,
	valence DOUBLE PRECISION NOT NULL,
	arousal DOUBLE PRECISION NOT NULL,
	mood DOUBLE PRECISION NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	method TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
