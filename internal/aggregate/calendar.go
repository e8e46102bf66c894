package aggregate

import (
	"sort"
	"time"

	"github.com/justestif/moodlens/internal/emotion"
)

// CalendarDay is the listening volume for one local day.
type CalendarDay struct {
	Date     string `json:"date"`
	Plays    int    `json:"plays"`
	MsPlayed int64  `json:"msPlayed"`
}

// Calendar counts every row per local day, classified or not.
func Calendar(rows []Row, loc *time.Location) []CalendarDay {
	days := make(map[string]*CalendarDay)
	for _, r := range rows {
		key := Day.Key(r.PlayedAt, loc)
		d, ok := days[key]
		if !ok {
			d = &CalendarDay{Date: key}
			days[key] = d
		}
		d.Plays++
		d.MsPlayed += int64(r.MsPlayed)
	}
	out := make([]CalendarDay, 0, len(days))
	for _, d := range days {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Share is the listening time spent in one category.
type Share struct {
	Category emotion.Category `json:"category"`
	MsPlayed int64            `json:"ms"`
	Count    int              `json:"count"`
}

// ShareByCategory sums listening time per category over classified rows,
// largest first. Equal totals are ordered by category ordinal.
func ShareByCategory(rows []Row) []Share {
	totals := make(map[emotion.Category]*Share)
	for _, r := range rows {
		if !r.Classified() {
			continue
		}
		s, ok := totals[r.Category]
		if !ok {
			s = &Share{Category: r.Category}
			totals[r.Category] = s
		}
		s.MsPlayed += int64(r.MsPlayed)
		s.Count++
	}
	out := make([]Share, 0, len(totals))
	for _, s := range totals {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MsPlayed != out[j].MsPlayed {
			return out[i].MsPlayed > out[j].MsPlayed
		}
		return out[i].Category.Ordinal() < out[j].Category.Ordinal()
	})
	return out
}
