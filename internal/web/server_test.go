package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/moodlens/internal/aggregate"
	"github.com/justestif/moodlens/internal/emotion"
	"github.com/justestif/moodlens/internal/metrics"
	"github.com/justestif/moodlens/internal/model"
	"github.com/justestif/moodlens/internal/pipeline"
	"github.com/justestif/moodlens/internal/sqlite"
)

func ptr[T any](v T) *T { return &v }

// newTestServer returns a server over an in-memory store holding three
// recent plays of one upbeat track for user u1.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := sqlite.Open(sqlite.Memory)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	if err := store.UpsertUser(ctx, &model.User{ID: "u1", DisplayName: "One"}); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	if err := store.UpsertTracks(ctx, []model.Track{{ID: "t1", Name: "Sunny", Artist: "A", DurationMs: ptr(200_000)}}); err != nil {
		t.Fatalf("UpsertTracks() error = %v", err)
	}
	if err := store.UpsertDescriptors(ctx, []model.Descriptor{{
		TrackID:     "t1",
		Valence:     ptr(0.9),
		Energy:      ptr(0.9),
		Speechiness: ptr(0.05),
	}}); err != nil {
		t.Fatalf("UpsertDescriptors() error = %v", err)
	}
	now := time.Now().UTC()
	var events []model.Event
	for i := 1; i <= 3; i++ {
		events = append(events, model.Event{
			ID:       uuid.New(),
			UserID:   "u1",
			TrackID:  "t1",
			PlayedAt: now.Add(-time.Duration(i) * time.Hour),
			MsPlayed: 150_000,
			Source:   model.SourceSync,
		})
	}
	if _, err := store.InsertEvents(ctx, events); err != nil {
		t.Fatalf("InsertEvents() error = %v", err)
	}

	rec := metrics.New()
	srv, err := NewServer(ServerConfig{
		Service: pipeline.New(store, pipeline.WithMetrics(rec)),
		Metrics: rec,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv
}

func do(t *testing.T, srv *Server, method, target, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decoding %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestNewServer_RequiresService(t *testing.T) {
	if _, err := NewServer(ServerConfig{}); err == nil {
		t.Error("NewServer() without service should fail")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	if rr := do(t, srv, http.MethodGet, "/healthz", "", ""); rr.Code != http.StatusOK {
		t.Errorf("/healthz status = %d", rr.Code)
	}
	rr := do(t, srv, http.MethodGet, "/metrics", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "moodlens_http_requests_total") {
		t.Errorf("/metrics missing request counter:\n%s", rr.Body.String())
	}
}

func TestRequireUser(t *testing.T) {
	srv := newTestServer(t)
	rr := do(t, srv, http.MethodGet, "/api/calendar", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestQueryValidation(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name   string
		target string
	}{
		{"unknown range", "/api/calendar?range=2w"},
		{"unknown source", "/api/calendar?source=radio"},
		{"unknown timezone", "/api/calendar?tz=Mars/Base"},
		{"unknown granularity", "/api/buckets?granularity=hour"},
		{"unknown category", "/api/buckets?category=Bored"},
		{"bad slot", "/api/weekday-hour/9/1"},
		{"bad trend days", "/api/trends?days=-3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, tt.target, "u1", "")
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (%s)", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestReclassifyThenRead(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/jobs/reclassify", "u1", `{"mode":"fixed"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("reclassify status = %d: %s", rr.Code, rr.Body.String())
	}
	res := decode[pipeline.BatchResult](t, rr)
	if res.Processed != 3 || res.Created != 3 {
		t.Errorf("reclassify = %+v, want 3 created", res)
	}

	target := "/api/buckets?range=7d&granularity=day&category=" + url.QueryEscape(string(emotion.CategoryHappy))
	rr = do(t, srv, http.MethodGet, target, "u1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("buckets status = %d: %s", rr.Code, rr.Body.String())
	}
	buckets := decode[[]aggregate.Bucket](t, rr)
	total := 0
	for _, b := range buckets {
		if b.Category != emotion.CategoryHappy {
			t.Errorf("bucket category = %s", b.Category)
		}
		total += b.Count
	}
	if total != 3 {
		t.Errorf("happy plays = %d, want 3", total)
	}

	rr = do(t, srv, http.MethodGet, "/api/share?source=oauth", "u1", "")
	shares := decode[[]aggregate.Share](t, rr)
	if len(shares) != 1 || shares[0].MsPlayed != 450_000 {
		t.Errorf("share = %+v, want 450000 ms of Happy", shares)
	}

	rr = do(t, srv, http.MethodGet, "/api/trends?days=7", "u1", "")
	trends := decode[[]aggregate.TrendRow](t, rr)
	if len(trends) != 1 || trends[0].Current != 3 || trends[0].Change != 0 {
		t.Errorf("trends = %+v, want 3 current plays and no change", trends)
	}

	rr = do(t, srv, http.MethodPost, "/api/jobs/fill-missing", "u1", "")
	if res := decode[pipeline.BatchResult](t, rr); res.Processed != 0 {
		t.Errorf("fill-missing after reclassify = %+v, want nothing to do", res)
	}

	rr = do(t, srv, http.MethodDelete, "/api/data", "u1", "")
	if got := decode[map[string]int64](t, rr); got["deletedEvents"] != 3 {
		t.Errorf("delete = %v, want 3 events", got)
	}
}

func TestJobErrors(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name   string
		target string
		user   string
		body   string
		want   int
	}{
		{"adaptive without history", "/api/jobs/reclassify", "nobody", `{"mode":"adaptive"}`, http.StatusUnprocessableEntity},
		{"ai only without provider", "/api/jobs/reclassify", "u1", `{"ai":"only"}`, http.StatusServiceUnavailable},
		{"no catalog", "/api/jobs/backfill-descriptors", "u1", `{"days":7}`, http.StatusServiceUnavailable},
		{"bad mode", "/api/jobs/reclassify", "u1", `{"mode":"random"}`, http.StatusBadRequest},
		{"bad json", "/api/jobs/fill-missing", "u1", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, tt.target, tt.user, tt.body)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestImport(t *testing.T) {
	srv := newTestServer(t)
	body := `[{"ts":"2024-03-04T10:00:00Z","ms_played":1000,
		"master_metadata_track_name":"Rain","master_metadata_album_artist_name":"B",
		"spotify_track_uri":"spotify:track:t2"}]`

	rr := do(t, srv, http.MethodPost, "/api/import", "u2", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if res := decode[pipeline.ImportResult](t, rr); res.Inserted != 1 {
		t.Errorf("import = %+v, want 1 inserted", res)
	}

	rr = do(t, srv, http.MethodPost, "/api/import", "u2", `[]`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty export status = %d, want 400", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/api/calendar", "u2", "")
	days := decode[[]aggregate.CalendarDay](t, rr)
	if len(days) != 1 || days[0].Date != "2024-03-04" {
		t.Errorf("calendar = %+v", days)
	}
}

func TestDay(t *testing.T) {
	srv := newTestServer(t)
	if rr := do(t, srv, http.MethodPost, "/api/jobs/reclassify", "u1", `{"mode":"fixed"}`); rr.Code != http.StatusOK {
		t.Fatalf("reclassify status = %d: %s", rr.Code, rr.Body.String())
	}

	now := time.Now().UTC()
	seen := make(map[string]bool)
	total := 0
	for i := 1; i <= 3; i++ {
		date := now.Add(-time.Duration(i) * time.Hour).Format("2006-01-02")
		if seen[date] {
			continue
		}
		seen[date] = true

		rr := do(t, srv, http.MethodGet, "/api/day/"+date+"?tz=UTC", "u1", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("day status = %d: %s", rr.Code, rr.Body.String())
		}
		day := decode[aggregate.DayBreakdown](t, rr)
		if day.Date != date || len(day.TopArtists) != 1 || day.TopArtists[0].Artist != "A" {
			t.Errorf("day %s = %+v", date, day)
		}
		total += day.Total
	}
	if total != 3 {
		t.Errorf("plays across days = %d, want 3", total)
	}

	if rr := do(t, srv, http.MethodGet, "/api/day/yesterday", "u1", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("invalid date status = %d, want 400", rr.Code)
	}
}
