package aggregate

import (
	"sort"
	"time"

	"github.com/justestif/moodlens/internal/emotion"
)

type bucketKey struct {
	start    time.Time
	category emotion.Category
}

// accumulator builds buckets keyed by period and, optionally, category.
type accumulator struct {
	g       Granularity
	loc     *time.Location
	buckets map[bucketKey]*Bucket
	tallies map[time.Time]tally
}

func newAccumulator(g Granularity, loc *time.Location) *accumulator {
	if loc == nil {
		loc = time.UTC
	}
	return &accumulator{
		g:       g,
		loc:     loc,
		buckets: make(map[bucketKey]*Bucket),
		tallies: make(map[time.Time]tally),
	}
}

func (a *accumulator) bucket(start time.Time, c emotion.Category) *Bucket {
	k := bucketKey{start: start, category: c}
	b, ok := a.buckets[k]
	if !ok {
		b = &Bucket{Start: start, Key: start.Format(keyLayout), Category: c}
		a.buckets[k] = b
	}
	return b
}

func (a *accumulator) tally(start time.Time, c emotion.Category) {
	t, ok := a.tallies[start]
	if !ok {
		t = make(tally)
		a.tallies[start] = t
	}
	t.add(c)
}

// result finalizes averages and dominant categories, ordered by period then category.
func (a *accumulator) result() []Bucket {
	out := make([]Bucket, 0, len(a.buckets))
	for _, b := range a.buckets {
		b.MoodAvg = avg(b.MoodSum, b.WeightSum)
		if t, ok := a.tallies[b.Start]; ok {
			b.Dominant = t.dominant()
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].Category.Ordinal() < out[j].Category.Ordinal()
	})
	return out
}

// ByBucket groups classified rows by period and category. Mood is the plain
// mean over the bucket's events. Unclassified rows are ignored.
func ByBucket(rows []Row, g Granularity, loc *time.Location) []Bucket {
	acc := newAccumulator(g, loc)
	for _, r := range rows {
		if !r.Classified() {
			continue
		}
		start := g.Start(r.PlayedAt, acc.loc)
		b := acc.bucket(start, r.Category)
		b.Count++
		b.MsPlayed += int64(r.MsPlayed)
		b.MoodSum += *r.Mood
		b.WeightSum++
		acc.tally(start, r.Category)
	}
	return acc.result()
}

// Weighted groups classified rows by period and category, weighting each
// mood by the fraction of the track that was played. Every classified row is
// counted, but only eligible rows (at least 30s long, not speech) contribute
// to the weighted mood.
func Weighted(rows []Row, g Granularity, loc *time.Location) []Bucket {
	acc := newAccumulator(g, loc)
	for _, r := range rows {
		if !r.Classified() {
			continue
		}
		start := g.Start(r.PlayedAt, acc.loc)
		b := acc.bucket(start, r.Category)
		b.Count++
		b.MsPlayed += int64(r.MsPlayed)
		acc.tally(start, r.Category)
		if r.eligible() {
			w := r.weight()
			b.MoodSum += *r.Mood * w
			b.WeightSum += w
		}
	}
	return acc.result()
}

// MoodTrend produces one bucket per period across all categories. Count and
// MsPlayed cover every row; mood covers classified rows, and with weighted
// set only eligible rows weighted by completion.
func MoodTrend(rows []Row, g Granularity, loc *time.Location, weighted bool) []Bucket {
	acc := newAccumulator(g, loc)
	for _, r := range rows {
		start := g.Start(r.PlayedAt, acc.loc)
		b := acc.bucket(start, "")
		b.Count++
		b.MsPlayed += int64(r.MsPlayed)
		if !r.Classified() {
			continue
		}
		acc.tally(start, r.Category)
		switch {
		case !weighted:
			b.MoodSum += *r.Mood
			b.WeightSum++
		case r.eligible():
			w := r.weight()
			b.MoodSum += *r.Mood * w
			b.WeightSum += w
		}
	}
	return acc.result()
}

// Daily is the day heatmap: one bucket per local day with mean mood,
// dominant category and anomaly flags.
func Daily(rows []Row, loc *time.Location) []Bucket {
	return DetectAnomalies(MoodTrend(rows, Day, loc, false))
}
