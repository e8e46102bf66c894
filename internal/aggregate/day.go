package aggregate

import (
	"sort"
	"time"

	"github.com/justestif/moodlens/internal/emotion"
)

const unknownArtist = "Unknown"

// DayTrack is one classified play on a drilled-down day.
type DayTrack struct {
	TrackID  string    `json:"id"`
	Name     string    `json:"name"`
	Artist   string    `json:"artist"`
	PlayedAt time.Time `json:"playedAt"`
}

// DayCategory groups a day's plays by category.
type DayCategory struct {
	Category emotion.Category `json:"category"`
	Count    int              `json:"count"`
	Tracks   []DayTrack       `json:"tracks"`
}

// ArtistCount is the number of plays by one artist.
type ArtistCount struct {
	Artist string `json:"artist"`
	Count  int    `json:"count"`
}

// DayBreakdown details one local day of classified listening.
type DayBreakdown struct {
	Date       string        `json:"date"`
	Total      int           `json:"total"`
	Categories []DayCategory `json:"breakdown"`
	TopArtists []ArtistCount `json:"topArtists"`
}

// DayDetail breaks down the classified rows whose local date in loc is date
// (YYYY-MM-DD). Categories are in ordinal order with plays in time order.
// Artists are sorted by play count, ties in first-seen order.
func DayDetail(rows []Row, loc *time.Location, date string) DayBreakdown {
	if loc == nil {
		loc = time.UTC
	}
	out := DayBreakdown{Date: date, Categories: []DayCategory{}, TopArtists: []ArtistCount{}}

	var day []Row
	for _, r := range rows {
		if r.Classified() && Day.Key(r.PlayedAt, loc) == date {
			day = append(day, r)
		}
	}
	sort.SliceStable(day, func(i, j int) bool { return day[i].PlayedAt.Before(day[j].PlayedAt) })

	cats := make(map[emotion.Category]*DayCategory)
	artists := make(map[string]int)
	for _, r := range day {
		c, ok := cats[r.Category]
		if !ok {
			c = &DayCategory{Category: r.Category}
			cats[r.Category] = c
		}
		c.Count++
		c.Tracks = append(c.Tracks, DayTrack{
			TrackID:  r.TrackID,
			Name:     r.TrackName,
			Artist:   r.Artist,
			PlayedAt: r.PlayedAt.In(loc),
		})

		artist := r.Artist
		if artist == "" {
			artist = unknownArtist
		}
		i, ok := artists[artist]
		if !ok {
			i = len(out.TopArtists)
			artists[artist] = i
			out.TopArtists = append(out.TopArtists, ArtistCount{Artist: artist})
		}
		out.TopArtists[i].Count++
		out.Total++
	}

	for _, c := range emotion.Categories() {
		if dc, ok := cats[c]; ok {
			out.Categories = append(out.Categories, *dc)
		}
	}
	sort.SliceStable(out.TopArtists, func(i, j int) bool {
		return out.TopArtists[i].Count > out.TopArtists[j].Count
	})
	return out
}
