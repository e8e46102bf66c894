package aggregate

import (
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/justestif/moodlens/internal/emotion"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func row(at time.Time, c emotion.Category, mood float64) Row {
	return Row{
		PlayedAt:    at,
		MsPlayed:    180_000,
		TrackID:     "t1",
		DurationMs:  intp(200_000),
		Speechiness: f64(0.05),
		Category:    c,
		Mood:        f64(mood),
	}
}

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestGranularity(t *testing.T) {
	convey.Convey("Given bucket granularities", t, func() {
		convey.Convey("Weeks start on Monday", func() {
			sunday := utc("2024-01-07T22:00:00Z")
			convey.So(Week.Key(sunday, time.UTC), convey.ShouldEqual, "2024-01-01")
			monday := utc("2024-01-08T00:00:00Z")
			convey.So(Week.Key(monday, time.UTC), convey.ShouldEqual, "2024-01-08")
		})

		convey.Convey("Months start on the first", func() {
			convey.So(Month.Key(utc("2024-02-29T12:00:00Z"), time.UTC), convey.ShouldEqual, "2024-02-01")
		})

		convey.Convey("Keys follow the configured location", func() {
			at := utc("2024-03-10T02:30:00Z")
			east := time.FixedZone("UTC-5", -5*3600)
			convey.So(Day.Key(at, time.UTC), convey.ShouldEqual, "2024-03-10")
			convey.So(Day.Key(at, east), convey.ShouldEqual, "2024-03-09")
			convey.So(Day.Key(at, nil), convey.ShouldEqual, "2024-03-10")
		})

		convey.Convey("Parsing rejects unknown values", func() {
			g, err := ParseGranularity("")
			convey.So(err, convey.ShouldBeNil)
			convey.So(g, convey.ShouldEqual, Day)
			_, err = ParseGranularity("fortnight")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestByBucket(t *testing.T) {
	convey.Convey("Given classified rows over two days", t, func() {
		rows := []Row{
			row(utc("2024-05-01T08:00:00Z"), emotion.CategoryHappy, 0.8),
			row(utc("2024-05-01T09:00:00Z"), emotion.CategoryHappy, 0.6),
			row(utc("2024-05-01T10:00:00Z"), emotion.CategorySad, 0.2),
			row(utc("2024-05-02T10:00:00Z"), emotion.CategoryCalm, 0.5),
			{PlayedAt: utc("2024-05-02T11:00:00Z"), MsPlayed: 1000},
		}

		buckets := ByBucket(rows, Day, time.UTC)

		convey.Convey("There is one bucket per day and category", func() {
			convey.So(buckets, convey.ShouldHaveLength, 3)
			convey.So(buckets[0].Key, convey.ShouldEqual, "2024-05-01")
			convey.So(buckets[0].Category, convey.ShouldEqual, emotion.CategoryHappy)
			convey.So(buckets[1].Category, convey.ShouldEqual, emotion.CategorySad)
			convey.So(buckets[2].Key, convey.ShouldEqual, "2024-05-02")
		})

		convey.Convey("Counts, sums and mean mood are per record", func() {
			convey.So(buckets[0].Count, convey.ShouldEqual, 2)
			convey.So(buckets[0].MsPlayed, convey.ShouldEqual, int64(360_000))
			convey.So(*buckets[0].MoodAvg, convey.ShouldAlmostEqual, 0.7, 1e-9)
		})

		convey.Convey("Every record carries its day's dominant category", func() {
			convey.So(buckets[0].Dominant, convey.ShouldEqual, emotion.CategoryHappy)
			convey.So(buckets[1].Dominant, convey.ShouldEqual, emotion.CategoryHappy)
			convey.So(buckets[2].Dominant, convey.ShouldEqual, emotion.CategoryCalm)
		})
	})
}

func TestDominantTieBreak(t *testing.T) {
	convey.Convey("Given a day with tied categories", t, func() {
		day := utc("2024-05-01T08:00:00Z")
		rows := []Row{
			row(day, emotion.CategoryTense, 0.3),
			row(day.Add(time.Hour), emotion.CategoryCalm, 0.6),
			row(day.Add(2*time.Hour), emotion.CategorySad, 0.2),
			row(day.Add(3*time.Hour), emotion.CategorySad, 0.2),
			row(day.Add(4*time.Hour), emotion.CategoryTense, 0.3),
			row(day.Add(5*time.Hour), emotion.CategoryCalm, 0.6),
		}

		convey.Convey("The lowest ordinal wins regardless of order", func() {
			for i := 0; i < 3; i++ {
				b := MoodTrend(rows, Day, time.UTC, false)
				convey.So(b[0].Dominant, convey.ShouldEqual, emotion.CategoryCalm)
				rows = append(rows[1:], rows[0])
			}
		})
	})
}

func TestWeighted(t *testing.T) {
	convey.Convey("Given two plays on the same day with different completion", t, func() {
		day := utc("2024-06-01T12:00:00Z")
		half := row(day, emotion.CategoryHappy, 0.2)
		half.MsPlayed = 100_000
		over := row(day.Add(time.Minute), emotion.CategoryHappy, 0.8)
		over.MsPlayed = 250_000 // longer than the track, capped at 1

		convey.Convey("Weighted mood is the completion-weighted mean", func() {
			b := MoodTrend([]Row{half, over}, Day, time.UTC, true)
			convey.So(b, convey.ShouldHaveLength, 1)
			convey.So(b[0].WeightSum, convey.ShouldAlmostEqual, 1.5, 1e-9)
			convey.So(*b[0].MoodAvg, convey.ShouldAlmostEqual, 0.6, 1e-9)

			byCat := Weighted([]Row{half, over}, Day, time.UTC)
			convey.So(byCat, convey.ShouldHaveLength, 1)
			convey.So(*byCat[0].MoodAvg, convey.ShouldAlmostEqual, 0.6, 1e-9)
		})

		convey.Convey("Short clips and speech are counted but excluded from mood", func() {
			short := row(day, emotion.CategoryHappy, 0.9)
			short.DurationMs = intp(20_000)
			speech := row(day, emotion.CategoryNeutral, 0.0)
			speech.Speechiness = f64(0.7)

			b := MoodTrend([]Row{half, short, speech}, Day, time.UTC, true)
			convey.So(b[0].Count, convey.ShouldEqual, 3)
			convey.So(*b[0].MoodAvg, convey.ShouldAlmostEqual, 0.2, 1e-9)
		})

		convey.Convey("A bucket with only excluded rows has no mood", func() {
			short := row(day, emotion.CategoryHappy, 0.9)
			short.DurationMs = intp(1000)
			b := Weighted([]Row{short}, Day, time.UTC)
			convey.So(b[0].Count, convey.ShouldEqual, 1)
			convey.So(b[0].MoodAvg, convey.ShouldBeNil)
		})
	})
}

func TestDaily(t *testing.T) {
	convey.Convey("Given classified and unclassified plays", t, func() {
		day := utc("2024-06-01T12:00:00Z")
		rows := []Row{
			row(day, emotion.CategoryHappy, 0.8),
			{PlayedAt: day, MsPlayed: 5000},
		}
		b := Daily(rows, time.UTC)

		convey.So(b, convey.ShouldHaveLength, 1)
		convey.So(b[0].Count, convey.ShouldEqual, 2)
		convey.So(*b[0].MoodAvg, convey.ShouldAlmostEqual, 0.8, 1e-9)
		convey.So(b[0].ZScore, convey.ShouldBeNil)
	})

	convey.Convey("Given ten days of the same mood, one reached by averaging", t, func() {
		start := utc("2024-06-01T12:00:00Z")
		var rows []Row
		for i := 0; i < 9; i++ {
			rows = append(rows, row(start.AddDate(0, 0, i), emotion.CategoryCalm, 0.3))
		}
		last := start.AddDate(0, 0, 9)
		rows = append(rows,
			row(last, emotion.CategoryCalm, 0.2),
			row(last.Add(time.Hour), emotion.CategoryCalm, 0.4),
		)
		b := Daily(rows, time.UTC)

		convey.So(b, convey.ShouldHaveLength, 10)
		for _, d := range b {
			convey.So(d.ZScore, convey.ShouldBeNil)
			convey.So(d.Anomaly, convey.ShouldBeFalse)
		}
	})
}

func TestDetectAnomalies(t *testing.T) {
	series := func(values ...float64) []Bucket {
		out := make([]Bucket, len(values))
		for i, v := range values {
			v := v
			out[i].MoodAvg = &v
		}
		return out
	}

	convey.Convey("Given per-bucket mood averages", t, func() {
		convey.Convey("A single spike in a longer series is flagged", func() {
			in := series(0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.99)
			out := DetectAnomalies(in)
			convey.So(*out[9].ZScore, convey.ShouldAlmostEqual, 3, 1e-9)
			convey.So(out[9].Anomaly, convey.ShouldBeTrue)
			convey.So(out[0].Anomaly, convey.ShouldBeFalse)
		})

		convey.Convey("The five-bucket example [.5 .5 .5 .5 .99] has |z| exactly 2, which the strict |z| > 2 rule does not flag", func() {
			out := DetectAnomalies(series(0.5, 0.5, 0.5, 0.5, 0.99))
			convey.So(*out[4].ZScore, convey.ShouldAlmostEqual, 2, 1e-9)
			convey.So(out[4].Anomaly, convey.ShouldBeFalse)
		})

		convey.Convey("A flat series has no z-scores", func() {
			out := DetectAnomalies(series(0.4, 0.4, 0.4))
			for _, b := range out {
				convey.So(b.ZScore, convey.ShouldBeNil)
				convey.So(b.Anomaly, convey.ShouldBeFalse)
			}
		})

		convey.Convey("Averages equal up to rounding count as flat", func() {
			lo, hi := 0.2, 0.4
			noisy := (lo + hi) / 2
			convey.So(noisy, convey.ShouldNotEqual, 0.3)

			out := DetectAnomalies(series(0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, noisy))
			for _, b := range out {
				convey.So(b.ZScore, convey.ShouldBeNil)
				convey.So(b.Anomaly, convey.ShouldBeFalse)
			}
		})

		convey.Convey("Buckets without mood are skipped", func() {
			in := append(series(0.2, 0.8), Bucket{})
			out := DetectAnomalies(in)
			convey.So(out[2].ZScore, convey.ShouldBeNil)
			convey.So(*out[0].ZScore, convey.ShouldAlmostEqual, -1, 1e-9)
			convey.So(in[0].ZScore, convey.ShouldBeNil)
		})
	})
}

func TestCompareTrends(t *testing.T) {
	convey.Convey("Given current and previous windows", t, func() {
		now := utc("2024-07-01T00:00:00Z")
		cur, prev := TrendWindows(now, 30)

		convey.So(cur.Start.Equal(utc("2024-06-01T00:00:00Z")), convey.ShouldBeTrue)
		convey.So(prev.End.Equal(cur.Start), convey.ShouldBeTrue)
		convey.So(prev.Start.Equal(utc("2024-05-02T00:00:00Z")), convey.ShouldBeTrue)

		convey.Convey("A category new in the current window reports no change", func() {
			var current []Row
			for i := 0; i < 10; i++ {
				current = append(current, row(now.Add(-time.Hour), emotion.CategoryHappy, 0.8))
			}
			got := CompareTrends(current, nil)
			convey.So(got, convey.ShouldResemble, []TrendRow{
				{Category: emotion.CategoryHappy, Current: 10, Previous: 0, Change: 0},
			})
		})

		convey.Convey("Changes are percentages rounded to two decimals", func() {
			rows := []Row{
				row(now.Add(-time.Hour), emotion.CategorySad, 0.2),
				row(now.Add(-2*time.Hour), emotion.CategorySad, 0.2),
				row(now.Add(-24*time.Hour), emotion.CategoryHappy, 0.8),
				row(cur.Start.Add(-time.Hour), emotion.CategorySad, 0.2),
				row(cur.Start.Add(-2*time.Hour), emotion.CategorySad, 0.2),
				row(cur.Start.Add(-3*time.Hour), emotion.CategorySad, 0.2),
				row(cur.Start.Add(-4*time.Hour), emotion.CategoryCalm, 0.6),
				row(prev.Start.Add(-time.Hour), emotion.CategoryHappy, 0.8),
			}
			c, p := SplitWindows(rows, cur, prev)
			convey.So(c, convey.ShouldHaveLength, 3)
			convey.So(p, convey.ShouldHaveLength, 4)

			got := CompareTrends(c, p)
			convey.So(got, convey.ShouldHaveLength, 2)
			convey.So(got[0].Category, convey.ShouldEqual, emotion.CategoryHappy)
			convey.So(got[0].Change, convey.ShouldEqual, 0.0)
			convey.So(got[1].Category, convey.ShouldEqual, emotion.CategorySad)
			convey.So(got[1].Previous, convey.ShouldEqual, 3)
			convey.So(got[1].Change, convey.ShouldEqual, -33.33)
		})
	})
}
