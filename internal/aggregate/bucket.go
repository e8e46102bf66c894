// Package aggregate projects classified listening events into time-bucketed read models.
//
// All functions are pure. Callers load a consistent snapshot of rows for the
// queried window and pass it in whole; bucket keys are computed in the
// caller's location so the same instant can land in different buckets for
// different timezones.
package aggregate

import (
	"fmt"
	"time"

	"github.com/justestif/moodlens/internal/emotion"
)

// Granularity is the bucket width.
type Granularity string

// Supported granularities.
const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// ParseGranularity validates a granularity string. Empty means Day.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case "", Day:
		return Day, nil
	case Week, Month:
		return Granularity(s), nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

const keyLayout = "2006-01-02"

// Start returns the beginning of the bucket containing t in loc.
// Weeks start on Monday.
func (g Granularity) Start(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	y, m, d := t.Date()
	switch g {
	case Week:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}

// Key is the calendar date of the bucket start, formatted YYYY-MM-DD.
func (g Granularity) Key(t time.Time, loc *time.Location) string {
	return g.Start(t, loc).Format(keyLayout)
}

// Row is one listening event with whatever track data and classification is known.
type Row struct {
	PlayedAt   time.Time
	MsPlayed   int
	TrackID    string
	TrackName  string
	Artist     string
	DurationMs *int
	// Speechiness is nil when the track has no descriptor.
	Speechiness *float64
	// Category is empty and Mood nil when the event is unclassified.
	Category emotion.Category
	Mood     *float64
}

// Classified reports whether the row carries a classification.
func (r Row) Classified() bool { return r.Category != "" && r.Mood != nil }

// eligible reports whether the row may contribute to mood trend lines.
// Short clips, spoken content and tracks without descriptors are left out.
func (r Row) eligible() bool {
	if r.Speechiness == nil || emotion.IsSpeech(*r.Speechiness) {
		return false
	}
	return r.DurationMs != nil && *r.DurationMs >= emotion.ShortClipMs
}

// weight is the fraction of the track that was played, capped at 1.
func (r Row) weight() float64 {
	if r.DurationMs == nil || *r.DurationMs <= 0 {
		return 0
	}
	return emotion.Clamp(float64(r.MsPlayed) / float64(*r.DurationMs))
}

// Bucket is one aggregated period, optionally split by category.
type Bucket struct {
	Start     time.Time        `json:"periodStart"`
	Key       string           `json:"key"`
	Category  emotion.Category `json:"category,omitempty"`
	Count     int              `json:"count"`
	MsPlayed  int64            `json:"msPlayed"`
	MoodSum   float64          `json:"moodWeightedSum"`
	WeightSum float64          `json:"weightSum"`
	MoodAvg   *float64         `json:"moodAvg"`
	Dominant  emotion.Category `json:"dominantCategory,omitempty"`
	ZScore    *float64         `json:"zscore"`
	Anomaly   bool             `json:"anomaly"`
}

// tally counts categories and picks the most frequent one.
type tally map[emotion.Category]int

func (t tally) add(c emotion.Category) {
	if c != "" {
		t[c]++
	}
}

// dominant returns the most frequent category. Ties go to the lowest
// category ordinal so results do not depend on iteration order.
func (t tally) dominant() emotion.Category {
	var best emotion.Category
	top := 0
	for c, n := range t {
		if n > top || (n == top && c.Ordinal() < best.Ordinal()) {
			best, top = c, n
		}
	}
	return best
}

func avg(sum, weight float64) *float64 {
	if weight <= 0 {
		return nil
	}
	v := sum / weight
	return &v
}
