package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/justestif/moodlens/internal/aggregate"
	"github.com/justestif/moodlens/internal/clustering"
	"github.com/justestif/moodlens/internal/emotion"
	"github.com/justestif/moodlens/internal/model"
)

// Query selects the events behind a read model. Zero times are unbounded.
type Query struct {
	Since  time.Time
	Until  time.Time
	Source model.Source
	// Location overrides the user's timezone for bucketing.
	Location *time.Location
}

// ranges maps range keys to a lookback in days. Zero means all time.
var ranges = map[string]int{
	"7d":   7,
	"30d":  30,
	"90d":  90,
	"365d": 365,
	"all":  0,
}

// RangeSince resolves a range key (7d, 30d, 90d, 365d or all) to the start of
// the window ending at now. Empty means all; all yields the zero time.
func RangeSince(key string, now time.Time) (time.Time, error) {
	if key == "" {
		key = "all"
	}
	days, ok := ranges[key]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown range %q", key)
	}
	if days == 0 {
		return time.Time{}, nil
	}
	return now.AddDate(0, 0, -days), nil
}

// snapshot is one consistent read of a user's events for a query.
type snapshot struct {
	plays []model.Play
	rows  []aggregate.Row
	loc   *time.Location
}

func (s *Service) load(ctx context.Context, userID string, q Query) (*snapshot, error) {
	loc := q.Location
	if loc == nil {
		var err error
		if loc, err = s.location(ctx, userID); err != nil {
			return nil, err
		}
	}
	plays, err := s.store.FindPlays(ctx, model.EventFilter{
		UserID: userID,
		Since:  q.Since,
		Until:  q.Until,
		Source: q.Source,
	})
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	rows := make([]aggregate.Row, len(plays))
	for i, p := range plays {
		rows[i] = rowOf(p)
	}
	return &snapshot{plays: plays, rows: rows, loc: loc}, nil
}

// rowOf flattens a play for the aggregators.
func rowOf(p model.Play) aggregate.Row {
	r := aggregate.Row{
		PlayedAt: p.PlayedAt,
		MsPlayed: p.MsPlayed,
		TrackID:  p.TrackID,
	}
	if p.Track != nil {
		r.TrackName = p.Track.Name
		r.Artist = p.Track.Artist
		r.DurationMs = p.Track.DurationMs
	}
	if d := p.Descriptor; d != nil {
		r.Speechiness = d.Speechiness
		if r.DurationMs == nil {
			r.DurationMs = d.DurationMs
		}
	}
	if c := p.Classification; c != nil {
		mood := c.Mood
		r.Category = c.Category
		r.Mood = &mood
	}
	return r
}

// Buckets returns per-category counts for each period. A non-empty category
// restricts the result to that category.
func (s *Service) Buckets(ctx context.Context, userID string, q Query, g aggregate.Granularity, category emotion.Category) ([]aggregate.Bucket, error) {
	snap, err := s.load(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	buckets := aggregate.ByBucket(snap.rows, g, snap.loc)
	if category == "" {
		return buckets, nil
	}
	out := buckets[:0]
	for _, b := range buckets {
		if b.Category == category {
			out = append(out, b)
		}
	}
	return out, nil
}

// Weighted returns per-category buckets weighted by the share of each track
// that was played.
func (s *Service) Weighted(ctx context.Context, userID string, q Query, g aggregate.Granularity) ([]aggregate.Bucket, error) {
	snap, err := s.load(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	return aggregate.Weighted(snap.rows, g, snap.loc), nil
}

// MoodTrend returns one mood average per period with anomaly flags.
func (s *Service) MoodTrend(ctx context.Context, userID string, q Query, g aggregate.Granularity, weighted bool) ([]aggregate.Bucket, error) {
	snap, err := s.load(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	return aggregate.DetectAnomalies(aggregate.MoodTrend(snap.rows, g, snap.loc, weighted)), nil
}

// Heatmap returns one record per local day with its dominant category and
// anomaly flag.
func (s *Service) Heatmap(ctx context.Context, userID string, q Query) ([]aggregate.Bucket, error) {
	snap, err := s.load(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	return aggregate.Daily(snap.rows, snap.loc), nil
}

// WeekdayHour returns the weekday x hour listening matrix.
func (s *Service) WeekdayHour(ctx context.Context, userID string, q Query) ([]aggregate.Cell, error) {
	snap, err := s.load(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	return aggregate.WeekdayHour(snap.rows, snap.loc), nil
}

// SlotTracks returns the most played tracks in one weekday x hour cell.
func (s *Service) SlotTracks(ctx context.Context, userID string, q Query, weekday, hour, n int) ([]aggregate.TrackCount, error) {
	if weekday < 0 || weekday > 6 || hour < 0 || hour > 23 {
		return nil, fmt.Errorf("invalid slot %d/%d", weekday, hour)
	}
	snap, err := s.load(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	return aggregate.TopTracksInSlot(snap.rows, snap.loc, weekday, hour, n), nil
}

// Calendar returns plays and listening time per local day.
func (s *Service) Calendar(ctx context.Context, userID string, q Query) ([]aggregate.CalendarDay, error) {
	snap, err := s.load(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	return aggregate.Calendar(snap.rows, snap.loc), nil
}

// Day breaks down one local date (YYYY-MM-DD) by category and artist. The
// query's own window is replaced by that date in the user's timezone.
func (s *Service) Day(ctx context.Context, userID, date string, q Query) (aggregate.DayBreakdown, error) {
	loc := q.Location
	if loc == nil {
		var err error
		if loc, err = s.location(ctx, userID); err != nil {
			return aggregate.DayBreakdown{}, err
		}
	}
	start, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return aggregate.DayBreakdown{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD", date)
	}
	q.Since = start
	q.Until = start.AddDate(0, 0, 1)
	q.Location = loc

	snap, err := s.load(ctx, userID, q)
	if err != nil {
		return aggregate.DayBreakdown{}, err
	}
	return aggregate.DayDetail(snap.rows, snap.loc, date), nil
}

// Share returns listening time per category.
func (s *Service) Share(ctx context.Context, userID string, q Query) ([]aggregate.Share, error) {
	snap, err := s.load(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	return aggregate.ShareByCategory(snap.rows), nil
}

// Trends compares category counts in the last days with the days before.
// Both windows are read in one query.
func (s *Service) Trends(ctx context.Context, userID string, days int, source model.Source) ([]aggregate.TrendRow, error) {
	if days <= 0 {
		return nil, fmt.Errorf("invalid trend window %d", days)
	}
	current, previous := aggregate.TrendWindows(s.now(), days)
	snap, err := s.load(ctx, userID, Query{Since: previous.Start, Until: current.End, Source: source, Location: time.UTC})
	if err != nil {
		return nil, err
	}
	cur, prev := aggregate.SplitWindows(snap.rows, current, previous)
	return aggregate.CompareTrends(cur, prev), nil
}

// Profile clusters the user's classified plays into mood groups.
func (s *Service) Profile(ctx context.Context, userID string, q Query, cfg clustering.Config) ([]clustering.Cluster, []clustering.Point, error) {
	snap, err := s.load(ctx, userID, q)
	if err != nil {
		return nil, nil, err
	}
	var points []clustering.Point
	for _, p := range snap.plays {
		if p.Classification == nil || p.Descriptor == nil {
			continue
		}
		f := features(p)
		if emotion.IsSpeech(f.Speechiness) {
			continue
		}
		pt := clustering.Point{
			TrackID:      p.TrackID,
			PlayedAt:     p.PlayedAt,
			Valence:      f.Valence,
			Arousal:      f.Arousal,
			Danceability: f.Danceability,
			Acousticness: f.Acousticness,
		}
		if p.Track != nil {
			pt.Name = p.Track.Name
			pt.Artist = p.Track.Artist
		}
		points = append(points, pt)
	}
	clusters, outliers := clustering.Profile(points, cfg)
	return clusters, outliers, nil
}
