package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/justestif/moodlens/internal/emotion"
)

// TrendRow compares one category's event count across two windows.
type TrendRow struct {
	Category emotion.Category `json:"category"`
	Current  int              `json:"current"`
	Previous int              `json:"previous"`
	Change   float64          `json:"change"` // percent, 2 decimals
}

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls in the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// TrendWindows returns the window of the last days up to now and the
// equal-length window immediately before it.
func TrendWindows(now time.Time, days int) (current, previous Window) {
	cutoff := now.AddDate(0, 0, -days)
	current = Window{Start: cutoff, End: now}
	previous = Window{Start: cutoff.AddDate(0, 0, -days), End: cutoff}
	return current, previous
}

// SplitWindows partitions rows into the current and previous window.
// Rows outside both are dropped.
func SplitWindows(rows []Row, current, previous Window) (cur, prev []Row) {
	for _, r := range rows {
		switch {
		case current.Contains(r.PlayedAt):
			cur = append(cur, r)
		case previous.Contains(r.PlayedAt):
			prev = append(prev, r)
		}
	}
	return cur, prev
}

// CompareTrends reports, for every category present in the current window,
// how its count changed against the previous window. A category absent from
// the previous window reports a change of 0 rather than infinite growth.
// Rows are ordered by category ordinal.
func CompareTrends(current, previous []Row) []TrendRow {
	cur := countByCategory(current)
	prev := countByCategory(previous)

	out := make([]TrendRow, 0, len(cur))
	for c, n := range cur {
		p := prev[c]
		change := 0.0
		if p != 0 {
			change = roundPercent(float64(n-p) / float64(p) * 100)
		}
		out = append(out, TrendRow{Category: c, Current: n, Previous: p, Change: change})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Category.Ordinal() < out[j].Category.Ordinal()
	})
	return out
}

func countByCategory(rows []Row) map[emotion.Category]int {
	counts := make(map[emotion.Category]int)
	for _, r := range rows {
		if r.Category != "" {
			counts[r.Category]++
		}
	}
	return counts
}

// roundPercent rounds half up to two decimals.
func roundPercent(x float64) float64 {
	return math.Floor(x*100+0.5) / 100
}
