// Package model defines the records shared by the stores, the pipeline and the HTTP surface.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/moodlens/internal/emotion"
)

// Source identifies how a listening event entered the system.
type Source string

// Event sources.
const (
	SourceSync     Source = "sync"
	SourceUpload   Source = "upload"
	SourceDemo     Source = "demo"
	SourceDemoRich Source = "demo-rich"
)

// ParseSource validates a source string.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceSync, SourceUpload, SourceDemo, SourceDemoRich:
		return Source(s), nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// User represents a listener.
type User struct {
	ID          string
	DisplayName string
	Timezone    string // IANA name, empty means the configured default
	LastSyncAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Track represents catalog metadata for a track.
type Track struct {
	ID         string
	Name       string
	Artist     string
	Album      *string // nullable
	DurationMs *int    // nullable
	CreatedAt  time.Time
}

// Event is a single listening event. Events are immutable once created.
type Event struct {
	ID       uuid.UUID
	UserID   string
	TrackID  string
	PlayedAt time.Time
	MsPlayed int
	Source   Source
}

// Descriptor holds a track's audio descriptors. Nil fields are unknown.
// Descriptors are shared across users and keyed by track ID.
type Descriptor struct {
	TrackID      string
	DurationMs   *int
	Valence      *float64
	Energy       *float64
	Danceability *float64
	Acousticness *float64
	Speechiness  *float64
	Tempo        *float64
	Loudness     *float64
	Mode         *int
	UpdatedAt    time.Time
}

// Raw converts the descriptor for normalization.
func (d Descriptor) Raw() emotion.RawFeatures {
	return emotion.RawFeatures{
		Valence:      d.Valence,
		Energy:       d.Energy,
		Danceability: d.Danceability,
		Acousticness: d.Acousticness,
		Speechiness:  d.Speechiness,
		Tempo:        d.Tempo,
		Loudness:     d.Loudness,
		Mode:         d.Mode,
		DurationMs:   d.DurationMs,
	}
}

// Filled returns a descriptor with every field populated from the
// normalized features.
func Filled(trackID string, f emotion.Features) Descriptor {
	d := Descriptor{
		TrackID:      trackID,
		DurationMs:   f.DurationMs,
		Valence:      &f.Valence,
		Energy:       &f.Energy,
		Danceability: &f.Danceability,
		Acousticness: &f.Acousticness,
		Speechiness:  &f.Speechiness,
		Tempo:        &f.Tempo,
		Loudness:     f.Loudness,
		Mode:         &f.Mode,
	}
	return d
}

// Method records which policy produced a classification.
type Method string

// Classification methods.
const (
	MethodFixed    Method = "fixed"
	MethodAdaptive Method = "adaptive"
	MethodSoft     Method = "soft"
	MethodAI       Method = "ai"
)

// Classification is the emotion assigned to one event. There is at most one
// per event and it is always replaced as a whole.
type Classification struct {
	EventID    uuid.UUID
	Label      emotion.Label
	Category   emotion.Category
	Valence    float64
	Arousal    float64
	Mood       float64
	Confidence float64
	Method     Method
	UpdatedAt  time.Time
}

// NewClassification builds a classification from a classifier result.
func NewClassification(eventID uuid.UUID, r emotion.Result, m Method) Classification {
	return Classification{
		EventID:    eventID,
		Label:      r.Label,
		Category:   r.Category,
		Valence:    r.Valence,
		Arousal:    r.Arousal,
		Mood:       r.Mood,
		Confidence: r.Confidence,
		Method:     m,
	}
}

// Play is an event joined with its track, descriptor and classification.
// Track, Descriptor and Classification are nil when missing.
type Play struct {
	Event
	Track          *Track
	Descriptor     *Descriptor
	Classification *Classification
}

// EventFilter selects a user's events. Zero values mean no constraint.
type EventFilter struct {
	UserID string
	Since  time.Time // inclusive
	Until  time.Time // exclusive
	Source Source

	// Unclassified restricts to events without a classification.
	Unclassified bool
	// Limit caps the number of rows; newest events come first when set.
	Limit int
}

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")
