// Package sqlite provides a local SQLite-backed store for single-user and CLI use.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mitchellh/go-homedir"
)

// Memory opens a private in-memory database.
const Memory = ":memory:"

// Store is a SQLite database holding users, tracks, descriptors, events and
// classifications.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. A leading ~ is
// expanded to the user's home directory.
func Open(path string) (*Store, error) {
	if path != Memory {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		path = expanded
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  display_name TEXT NOT NULL DEFAULT '',
  timezone TEXT NOT NULL DEFAULT '',
  last_sync_at INTEGER,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tracks (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  artist TEXT NOT NULL DEFAULT '',
  album TEXT,
  duration_ms INTEGER,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS descriptors (
  track_id TEXT PRIMARY KEY,
  duration_ms INTEGER,
  valence REAL,
  energy REAL,
  danceability REAL,
  acousticness REAL,
  speechiness REAL,
  tempo REAL,
  loudness REAL,
  mode INTEGER,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  track_id TEXT NOT NULL,
  played_at INTEGER NOT NULL,
  ms_played INTEGER NOT NULL CHECK (ms_played >= 0),
  source TEXT NOT NULL,
  UNIQUE (user_id, track_id, played_at)
);

CREATE INDEX IF NOT EXISTS events_user_played ON events (user_id, played_at);

CREATE TABLE IF NOT EXISTS classifications (
  event_id TEXT PRIMARY KEY REFERENCES events (id) ON DELETE CASCADE,
  label TEXT NOT NULL,
  category TEXT NOT NULL,
  valence REAL NOT NULL,
  arousal REAL NOT NULL,
  mood REAL NOT NULL,
  confidence REAL NOT NULL,
  method TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);
`

func createTables(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}
