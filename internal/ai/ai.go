// Package ai asks a language model for a best-effort emotion category.
//
// Suggestions are advisory: every failure is reported as ErrTimeout or
// ErrUnavailable and callers fall back to the deterministic classifier.
package ai

import (
	"context"
	"errors"

	"github.com/justestif/moodlens/internal/emotion"
)

// Errors returned by suggesters.
var (
	ErrTimeout     = errors.New("suggestion timed out")
	ErrUnavailable = errors.New("suggestion unavailable")
)

// TrackMeta is the metadata sent alongside descriptors.
type TrackMeta struct {
	Name    string
	Artists []string
	// Tags are optional folksonomy tags, e.g. from Last.fm.
	Tags []string
}

// Suggester returns an external category suggestion for one track.
type Suggester interface {
	Suggest(ctx context.Context, meta TrackMeta, f emotion.Features) (emotion.Suggestion, error)
}

// Disabled is a Suggester that is never available.
type Disabled struct{}

// Suggest always returns ErrUnavailable.
func (Disabled) Suggest(context.Context, TrackMeta, emotion.Features) (emotion.Suggestion, error) {
	return emotion.Suggestion{}, ErrUnavailable
}

// Enabled reports whether s can produce suggestions.
func Enabled(s Suggester) bool {
	if s == nil {
		return false
	}
	_, disabled := s.(Disabled)
	return !disabled
}
