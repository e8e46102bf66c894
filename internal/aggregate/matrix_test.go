package aggregate

import (
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/justestif/moodlens/internal/emotion"
)

func TestWeekdayHour(t *testing.T) {
	convey.Convey("Given plays across the week", t, func() {
		// 2024-01-07 is a Sunday
		sun9 := utc("2024-01-07T09:15:00Z")
		rows := []Row{
			row(sun9, emotion.CategoryHappy, 0.8),
			row(sun9.Add(10*time.Minute), emotion.CategorySad, 0.2),
			row(sun9.Add(20*time.Minute), emotion.CategorySad, 0.2),
			row(sun9.Add(24*time.Hour), emotion.CategoryCalm, 0.6),
		}
		short := row(sun9, emotion.CategoryTense, 0.3)
		short.DurationMs = intp(10_000)
		speech := row(sun9, emotion.CategoryNeutral, 0)
		speech.Speechiness = f64(0.9)
		unclassified := Row{PlayedAt: sun9, MsPlayed: 1000, DurationMs: intp(200_000), Speechiness: f64(0.1)}
		noDescriptor := row(sun9, emotion.CategoryTense, 0.3)
		noDescriptor.Speechiness = nil
		rows = append(rows, short, speech, unclassified, noDescriptor)

		convey.Convey("Only classified music of at least 30s is counted", func() {
			cells := WeekdayHour(rows, time.UTC)
			convey.So(cells, convey.ShouldHaveLength, 2)
			convey.So(cells[0].Weekday, convey.ShouldEqual, 0)
			convey.So(cells[0].Hour, convey.ShouldEqual, 9)
			convey.So(cells[0].Count, convey.ShouldEqual, 3)
			convey.So(cells[0].Dominant, convey.ShouldEqual, emotion.CategorySad)
			convey.So(cells[1].Weekday, convey.ShouldEqual, 1)
		})

		convey.Convey("Slots shift with the location", func() {
			cells := WeekdayHour(rows[:1], time.FixedZone("UTC+10", 10*3600))
			convey.So(cells[0].Weekday, convey.ShouldEqual, 0)
			convey.So(cells[0].Hour, convey.ShouldEqual, 19)

			cells = WeekdayHour(rows[:1], time.FixedZone("UTC-10", -10*3600))
			convey.So(cells[0].Weekday, convey.ShouldEqual, 6)
			convey.So(cells[0].Hour, convey.ShouldEqual, 23)
		})
	})
}

func TestTopTracksInSlot(t *testing.T) {
	convey.Convey("Given repeated tracks in one slot", t, func() {
		at := utc("2024-01-08T20:05:00Z") // Monday
		mk := func(id string, offset time.Duration) Row {
			r := row(at.Add(offset), emotion.CategoryHappy, 0.7)
			r.TrackID = id
			r.TrackName = "Song " + id
			return r
		}
		rows := []Row{
			mk("a", 0), mk("b", time.Minute), mk("b", 2*time.Minute),
			mk("c", 3*time.Minute), mk("b", 4*time.Minute), mk("a", 5*time.Minute),
			mk("z", 2*time.Hour),
		}

		top := TopTracksInSlot(rows, time.UTC, 1, 20, 2)
		convey.So(top, convey.ShouldHaveLength, 2)
		convey.So(top[0].TrackID, convey.ShouldEqual, "b")
		convey.So(top[0].Count, convey.ShouldEqual, 3)
		convey.So(top[1].TrackID, convey.ShouldEqual, "a")
		convey.So(top[1].Name, convey.ShouldEqual, "Song a")

		convey.So(TopTracksInSlot(rows, time.UTC, 2, 20, 5), convey.ShouldBeEmpty)
	})
}

func TestCalendarAndShare(t *testing.T) {
	convey.Convey("Given a mix of plays", t, func() {
		d1 := utc("2024-02-01T23:30:00Z")
		rows := []Row{
			row(d1, emotion.CategoryHappy, 0.8),
			row(d1.Add(time.Hour), emotion.CategoryCalm, 0.6),
			row(d1.Add(2*time.Hour), emotion.CategoryCalm, 0.6),
			{PlayedAt: d1, MsPlayed: 1000},
		}

		convey.Convey("Calendar counts every play per local day", func() {
			days := Calendar(rows, time.UTC)
			convey.So(days, convey.ShouldResemble, []CalendarDay{
				{Date: "2024-02-01", Plays: 2, MsPlayed: 181_000},
				{Date: "2024-02-02", Plays: 2, MsPlayed: 360_000},
			})
		})

		convey.Convey("Share sums listening time per category", func() {
			shares := ShareByCategory(rows)
			convey.So(shares, convey.ShouldHaveLength, 2)
			convey.So(shares[0].Category, convey.ShouldEqual, emotion.CategoryCalm)
			convey.So(shares[0].MsPlayed, convey.ShouldEqual, int64(360_000))
			convey.So(shares[1].Count, convey.ShouldEqual, 1)
		})
	})
}
