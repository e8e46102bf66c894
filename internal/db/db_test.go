package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/moodlens/internal/emotion"
	"github.com/justestif/moodlens/internal/model"
)

// openTestDB connects to MOODLENS_TEST_DATABASE_URL or skips.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("MOODLENS_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("MOODLENS_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := New(ctx, url)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestErrNotFoundIsShared(t *testing.T) {
	if !errors.Is(ErrNotFound, model.ErrNotFound) {
		t.Error("ErrNotFound should match model.ErrNotFound")
	}
}

func TestDeref(t *testing.T) {
	if deref[int](nil) != 0 {
		t.Error("deref(nil) should be zero")
	}
	s := "x"
	if deref(&s) != "x" {
		t.Error("deref should return value")
	}
}

func TestRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	userID := "test-" + uuid.NewString()
	t.Cleanup(func() { db.DeleteUserData(context.Background(), userID) })

	if err := db.UpsertUser(ctx, &model.User{ID: userID, Timezone: "UTC"}); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	trackID := "track-" + uuid.NewString()
	if err := db.UpsertTracks(ctx, []model.Track{{ID: trackID, Name: "Song", Artist: "Band"}}); err != nil {
		t.Fatalf("UpsertTracks() error = %v", err)
	}
	ev := model.Event{
		ID:       uuid.New(),
		UserID:   userID,
		TrackID:  trackID,
		PlayedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		MsPlayed: 90_000,
		Source:   model.SourceUpload,
	}
	n, err := db.InsertEvents(ctx, []model.Event{ev, ev})
	if err != nil {
		t.Fatalf("InsertEvents() error = %v", err)
	}
	if n != 1 {
		t.Errorf("inserted = %d, want 1", n)
	}

	r := emotion.Result{Label: emotion.LabelCalm, Category: emotion.CategoryCalm, Mood: 0.4}
	created, err := db.UpsertClassification(ctx, model.NewClassification(ev.ID, r, model.MethodFixed))
	if err != nil || !created {
		t.Fatalf("first UpsertClassification() = %v, %v", created, err)
	}
	created, err = db.UpsertClassification(ctx, model.NewClassification(ev.ID, r, model.MethodSoft))
	if err != nil || created {
		t.Fatalf("second UpsertClassification() = %v, %v", created, err)
	}

	plays, err := db.FindPlays(ctx, model.EventFilter{UserID: userID})
	if err != nil {
		t.Fatalf("FindPlays() error = %v", err)
	}
	if len(plays) != 1 || plays[0].Classification == nil || plays[0].Classification.Method != model.MethodSoft {
		t.Errorf("plays = %+v", plays)
	}

	deleted, err := db.DeleteUserData(ctx, userID)
	if err != nil || deleted != 1 {
		t.Errorf("DeleteUserData() = %d, %v", deleted, err)
	}
}
