package db

import (
	"context"
	"time"

	"github.com/justestif/moodlens/internal/emotion"
	"github.com/justestif/moodlens/internal/model"
)

// The methods below give *DB the same flat store surface as the SQLite store.

// User retrieves a user by ID.
func (db *DB) User(ctx context.Context, id string) (*model.User, error) {
	return db.Users().Get(ctx, id)
}

// UpsertUser creates or updates a user.
func (db *DB) UpsertUser(ctx context.Context, u *model.User) error {
	return db.Users().Upsert(ctx, u)
}

// UpsertTracks creates or updates track metadata.
func (db *DB) UpsertTracks(ctx context.Context, tracks []model.Track) error {
	return db.Tracks().UpsertBatch(ctx, tracks)
}

// InsertEvents stores listening events, ignoring duplicates.
func (db *DB) InsertEvents(ctx context.Context, events []model.Event) (int, error) {
	return db.Events().InsertBatch(ctx, events)
}

// FindPlays returns plays matching f.
func (db *DB) FindPlays(ctx context.Context, f model.EventFilter) ([]model.Play, error) {
	return db.Events().Find(ctx, f)
}

// UpsertClassification creates or replaces an event's classification.
func (db *DB) UpsertClassification(ctx context.Context, c model.Classification) (bool, error) {
	return db.Classifications().Upsert(ctx, c)
}

// UpsertDescriptors stores descriptors keyed by track ID.
func (db *DB) UpsertDescriptors(ctx context.Context, ds []model.Descriptor) error {
	return db.Descriptors().UpsertBatch(ctx, ds)
}

// CutSamples returns per-play samples for cut estimation.
func (db *DB) CutSamples(ctx context.Context, userID string) ([]emotion.Sample, error) {
	return db.Descriptors().CutSamples(ctx, userID)
}

// TracksMissingDescriptors lists tracks that still need descriptors.
func (db *DB) TracksMissingDescriptors(ctx context.Context, userID string, since time.Time, limit int) ([]model.Track, error) {
	return db.Tracks().MissingDescriptors(ctx, userID, since, limit)
}

// DeleteUserData removes a user's events and classifications.
func (db *DB) DeleteUserData(ctx context.Context, userID string) (int64, error) {
	return db.Events().DeleteForUser(ctx, userID)
}
