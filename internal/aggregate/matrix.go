package aggregate

import (
	"sort"
	"time"

	"github.com/justestif/moodlens/internal/emotion"
)

// Cell is one weekday x hour slot. Weekday 0 is Sunday.
type Cell struct {
	Weekday  int              `json:"weekday"`
	Hour     int              `json:"hour"`
	Count    int              `json:"count"`
	MsPlayed int64            `json:"msPlayed"`
	Dominant emotion.Category `json:"dominantCategory"`
}

type slot struct{ weekday, hour int }

func slotOf(t time.Time, loc *time.Location) slot {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return slot{weekday: int(t.Weekday()), hour: t.Hour()}
}

// matrixRow reports whether a row belongs in the weekday x hour matrix:
// classified, with a descriptor, not speech and at least 30s long.
func matrixRow(r Row) bool {
	return r.Classified() && r.eligible()
}

// WeekdayHour builds the weekday x hour matrix of listening in loc. Only
// non-empty cells are returned, ordered by weekday then hour.
func WeekdayHour(rows []Row, loc *time.Location) []Cell {
	cells := make(map[slot]*Cell)
	tallies := make(map[slot]tally)
	for _, r := range rows {
		if !matrixRow(r) {
			continue
		}
		s := slotOf(r.PlayedAt, loc)
		c, ok := cells[s]
		if !ok {
			c = &Cell{Weekday: s.weekday, Hour: s.hour}
			cells[s] = c
			tallies[s] = make(tally)
		}
		c.Count++
		c.MsPlayed += int64(r.MsPlayed)
		tallies[s].add(r.Category)
	}

	out := make([]Cell, 0, len(cells))
	for s, c := range cells {
		c.Dominant = tallies[s].dominant()
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weekday != out[j].Weekday {
			return out[i].Weekday < out[j].Weekday
		}
		return out[i].Hour < out[j].Hour
	})
	return out
}

// TrackCount is a track and how often it was played.
type TrackCount struct {
	TrackID string `json:"id"`
	Name    string `json:"name"`
	Artist  string `json:"artist"`
	Count   int    `json:"count"`
}

// TopTracksInSlot returns the n most played tracks in one weekday x hour
// slot, using the same row filter as WeekdayHour. Ties keep first-seen order.
func TopTracksInSlot(rows []Row, loc *time.Location, weekday, hour, n int) []TrackCount {
	want := slot{weekday: weekday, hour: hour}
	index := make(map[string]int)
	var out []TrackCount
	for _, r := range rows {
		if !matrixRow(r) || slotOf(r.PlayedAt, loc) != want {
			continue
		}
		i, ok := index[r.TrackID]
		if !ok {
			i = len(out)
			index[r.TrackID] = i
			out = append(out, TrackCount{TrackID: r.TrackID, Name: r.TrackName, Artist: r.Artist})
		}
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
