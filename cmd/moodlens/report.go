package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/justestif/moodlens/internal/aggregate"
	"github.com/justestif/moodlens/internal/clustering"
	"github.com/justestif/moodlens/internal/model"
	"github.com/justestif/moodlens/internal/pipeline"
)

var reportKinds = []string{"mood", "buckets", "weighted", "heatmap", "weekday-hour", "calendar", "day", "share", "trends", "profile"}

type reportFlags struct {
	rangeKey    string
	granularity string
	source      string
	tz          string
	days        int
	weighted    bool
	clusters    int
	date        string
}

func newReportCmd(opts *options) *cobra.Command {
	f := &reportFlags{}
	cmd := &cobra.Command{
		Use:       "report [kind]",
		Short:     "Prints a read model as a table",
		Long:      fmt.Sprintf("Prints one of: %v.", reportKinds),
		Args:      cobra.ExactArgs(1),
		ValidArgs: reportKinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := opts.requireUser()
			if err != nil {
				return err
			}
			q, err := f.query()
			if err != nil {
				return err
			}
			g, err := aggregate.ParseGranularity(f.granularity)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, svc, out := cmd.Context(), a.svc, cmd.OutOrStdout()
			switch args[0] {
			case "mood":
				buckets, err := svc.MoodTrend(ctx, user, q, g, f.weighted)
				if err != nil {
					return err
				}
				return renderTrendBuckets(out, buckets)
			case "heatmap":
				buckets, err := svc.Heatmap(ctx, user, q)
				if err != nil {
					return err
				}
				return renderTrendBuckets(out, buckets)
			case "buckets":
				buckets, err := svc.Buckets(ctx, user, q, g, "")
				if err != nil {
					return err
				}
				return renderCategoryBuckets(out, buckets)
			case "weighted":
				buckets, err := svc.Weighted(ctx, user, q, g)
				if err != nil {
					return err
				}
				return renderCategoryBuckets(out, buckets)
			case "weekday-hour":
				cells, err := svc.WeekdayHour(ctx, user, q)
				if err != nil {
					return err
				}
				return renderCells(out, cells)
			case "calendar":
				days, err := svc.Calendar(ctx, user, q)
				if err != nil {
					return err
				}
				return renderCalendar(out, days)
			case "day":
				if f.date == "" {
					return fmt.Errorf("the day report needs --date YYYY-MM-DD")
				}
				day, err := svc.Day(ctx, user, f.date, q)
				if err != nil {
					return err
				}
				return renderDay(out, day)
			case "share":
				shares, err := svc.Share(ctx, user, q)
				if err != nil {
					return err
				}
				return renderShare(out, shares)
			case "trends":
				rows, err := svc.Trends(ctx, user, f.days, q.Source)
				if err != nil {
					return err
				}
				return renderTrends(out, rows)
			case "profile":
				cfg := clustering.DefaultConfig()
				cfg.NumClusters = f.clusters
				profile, outliers, err := svc.Profile(ctx, user, q, cfg)
				if err != nil {
					return err
				}
				_, err = io.WriteString(out, clustering.FormatSummary(profile, outliers))
				return err
			}
			return fmt.Errorf("unknown report %q, want one of %v", args[0], reportKinds)
		},
	}
	cmd.Flags().StringVarP(&f.rangeKey, "range", "r", "all", "window: 7d, 30d, 90d, 365d, all")
	cmd.Flags().StringVarP(&f.granularity, "granularity", "g", "day", "bucket width: day, week, month")
	cmd.Flags().StringVar(&f.source, "source", "", "only events from this source")
	cmd.Flags().StringVar(&f.tz, "tz", "", "bucket in this IANA timezone instead of the user's")
	cmd.Flags().StringVar(&f.date, "date", "", "local date for the day report (YYYY-MM-DD)")
	cmd.Flags().IntVar(&f.days, "days", 30, "trend window in days")
	cmd.Flags().BoolVar(&f.weighted, "weighted", false, "weight mood by listening completion")
	cmd.Flags().IntVarP(&f.clusters, "clusters", "k", clustering.DefaultConfig().NumClusters, "number of mood clusters")
	return cmd
}

func (f *reportFlags) query() (pipeline.Query, error) {
	var q pipeline.Query
	since, err := pipeline.RangeSince(f.rangeKey, time.Now())
	if err != nil {
		return q, err
	}
	q.Since = since
	if f.source != "" {
		if q.Source, err = model.ParseSource(f.source); err != nil {
			return q, err
		}
	}
	if f.tz != "" {
		if q.Location, err = time.LoadLocation(f.tz); err != nil {
			return q, fmt.Errorf("unknown timezone %q", f.tz)
		}
	}
	return q, nil
}

func render(out io.Writer, header []any, rows [][]string) error {
	table := tablewriter.NewWriter(out)
	table.Header(header...)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("rendering table: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}
	return nil
}

func moodString(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 3, 64)
}

func minutes(ms int64) string {
	return strconv.FormatInt(ms/60_000, 10)
}

func renderTrendBuckets(out io.Writer, buckets []aggregate.Bucket) error {
	rows := make([][]string, 0, len(buckets))
	for _, b := range buckets {
		flag := ""
		if b.Anomaly {
			flag = "!"
		}
		rows = append(rows, []string{
			b.Key, strconv.Itoa(b.Count), minutes(b.MsPlayed), moodString(b.MoodAvg),
			string(b.Dominant), moodString(b.ZScore), flag,
		})
	}
	return render(out, []any{"Period", "Plays", "Minutes", "Mood", "Dominant", "Z", "Anomaly"}, rows)
}

func renderCategoryBuckets(out io.Writer, buckets []aggregate.Bucket) error {
	rows := make([][]string, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, []string{
			b.Key, string(b.Category), strconv.Itoa(b.Count), minutes(b.MsPlayed), moodString(b.MoodAvg),
		})
	}
	return render(out, []any{"Period", "Category", "Plays", "Minutes", "Mood"}, rows)
}

func renderCells(out io.Writer, cells []aggregate.Cell) error {
	rows := make([][]string, 0, len(cells))
	for _, c := range cells {
		rows = append(rows, []string{
			time.Weekday(c.Weekday).String(), fmt.Sprintf("%02d:00", c.Hour),
			strconv.Itoa(c.Count), minutes(c.MsPlayed), string(c.Dominant),
		})
	}
	return render(out, []any{"Weekday", "Hour", "Plays", "Minutes", "Dominant"}, rows)
}

func renderCalendar(out io.Writer, days []aggregate.CalendarDay) error {
	rows := make([][]string, 0, len(days))
	for _, d := range days {
		rows = append(rows, []string{d.Date, strconv.Itoa(d.Plays), minutes(d.MsPlayed)})
	}
	return render(out, []any{"Date", "Plays", "Minutes"}, rows)
}

func renderDay(out io.Writer, day aggregate.DayBreakdown) error {
	fmt.Fprintf(out, "%s: %d classified plays\n", day.Date, day.Total)
	if day.Total == 0 {
		return nil
	}
	rows := make([][]string, 0, day.Total)
	for _, c := range day.Categories {
		for _, t := range c.Tracks {
			rows = append(rows, []string{string(c.Category), t.PlayedAt.Format("15:04"), t.Name, t.Artist})
		}
	}
	if err := render(out, []any{"Category", "Time", "Track", "Artist"}, rows); err != nil {
		return err
	}
	artists := make([][]string, 0, len(day.TopArtists))
	for _, a := range day.TopArtists {
		artists = append(artists, []string{a.Artist, strconv.Itoa(a.Count)})
	}
	return render(out, []any{"Artist", "Plays"}, artists)
}

func renderShare(out io.Writer, shares []aggregate.Share) error {
	rows := make([][]string, 0, len(shares))
	for _, s := range shares {
		rows = append(rows, []string{string(s.Category), strconv.Itoa(s.Count), minutes(s.MsPlayed)})
	}
	return render(out, []any{"Category", "Plays", "Minutes"}, rows)
}

func renderTrends(out io.Writer, trends []aggregate.TrendRow) error {
	rows := make([][]string, 0, len(trends))
	for _, t := range trends {
		rows = append(rows, []string{
			string(t.Category), strconv.Itoa(t.Current), strconv.Itoa(t.Previous),
			strconv.FormatFloat(t.Change, 'f', 2, 64) + "%",
		})
	}
	return render(out, []any{"Category", "Current", "Previous", "Change"}, rows)
}
