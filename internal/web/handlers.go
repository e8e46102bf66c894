package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/justestif/moodlens/internal/aggregate"
	"github.com/justestif/moodlens/internal/clustering"
	"github.com/justestif/moodlens/internal/emotion"
	"github.com/justestif/moodlens/internal/ingest"
	"github.com/justestif/moodlens/internal/model"
	"github.com/justestif/moodlens/internal/pipeline"
)

// UserHeader carries the caller's user ID.
const UserHeader = "X-User-ID"

type ctxKey struct{}

// requireUser rejects requests without a user ID and stores it in the context.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserHeader))
		if id == "" {
			writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

// Handlers contains the API handlers.
type Handlers struct {
	svc    *pipeline.Service
	logger *slog.Logger
	now    func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc *pipeline.Service, logger *slog.Logger) *Handlers {
	return &Handlers{svc: svc, logger: logger, now: time.Now}
}

// query parses range, source and tz from the URL.
func (h *Handlers) query(r *http.Request) (pipeline.Query, error) {
	var q pipeline.Query
	v := r.URL.Query()

	since, err := pipeline.RangeSince(v.Get("range"), h.now())
	if err != nil {
		return q, err
	}
	q.Since = since

	switch src := v.Get("source"); src {
	case "", "all":
	case "oauth":
		q.Source = model.SourceSync
	default:
		s, err := model.ParseSource(src)
		if err != nil {
			return q, err
		}
		q.Source = s
	}

	if tz := v.Get("tz"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return q, fmt.Errorf("unknown timezone %q", tz)
		}
		q.Location = loc
	}
	return q, nil
}

func granularity(r *http.Request) (aggregate.Granularity, error) {
	return aggregate.ParseGranularity(r.URL.Query().Get("granularity"))
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return n, nil
}

// Heatmap handles GET /api/heatmap.
func (h *Handlers) Heatmap(w http.ResponseWriter, r *http.Request) {
	q, err := h.query(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.svc.Heatmap(r.Context(), userID(r), q)
	h.respond(w, out, err)
}

// Buckets handles GET /api/buckets.
func (h *Handlers) Buckets(w http.ResponseWriter, r *http.Request) {
	q, err := h.query(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g, err := granularity(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var category emotion.Category
	if c := r.URL.Query().Get("category"); c != "" {
		parsed, ok := emotion.ParseCategory(c)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown category %q", c))
			return
		}
		category = parsed
	}
	out, err := h.svc.Buckets(r.Context(), userID(r), q, g, category)
	h.respond(w, out, err)
}

// Weighted handles GET /api/weighted.
func (h *Handlers) Weighted(w http.ResponseWriter, r *http.Request) {
	q, err := h.query(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g, err := granularity(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.svc.Weighted(r.Context(), userID(r), q, g)
	h.respond(w, out, err)
}

// MoodTrend handles GET /api/mood.
func (h *Handlers) MoodTrend(w http.ResponseWriter, r *http.Request) {
	q, err := h.query(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g, err := granularity(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	weighted := r.URL.Query().Get("weighted") == "true"
	out, err := h.svc.MoodTrend(r.Context(), userID(r), q, g, weighted)
	h.respond(w, out, err)
}

// WeekdayHour handles GET /api/weekday-hour.
func (h *Handlers) WeekdayHour(w http.ResponseWriter, r *http.Request) {
	q, err := h.query(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.svc.WeekdayHour(r.Context(), userID(r), q)
	h.respond(w, out, err)
}

// SlotTracks handles GET /api/weekday-hour/{weekday}/{hour}.
func (h *Handlers) SlotTracks(w http.ResponseWriter, r *http.Request) {
	q, err := h.query(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	weekday, err1 := strconv.Atoi(chi.URLParam(r, "weekday"))
	hour, err2 := strconv.Atoi(chi.URLParam(r, "hour"))
	limit, err3 := intParam(r, "limit", 10)
	if err := errors.Join(err1, err2, err3); err != nil {
		writeError(w, http.StatusBadRequest, "invalid slot parameters")
		return
	}
	out, err := h.svc.SlotTracks(r.Context(), userID(r), q, weekday, hour, limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respond(w, out, nil)
}

// Trends handles GET /api/trends.
func (h *Handlers) Trends(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", 30)
	if err != nil || days <= 0 {
		writeError(w, http.StatusBadRequest, "days must be a positive integer")
		return
	}
	q, err := h.query(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.svc.Trends(r.Context(), userID(r), days, q.Source)
	h.respond(w, out, err)
}

// Calendar handles GET /api/calendar.
func (h *Handlers) Calendar(w http.ResponseWriter, r *http.Request) {
	q, err := h.query(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.svc.Calendar(r.Context(), userID(r), q)
	h.respond(w, out, err)
}

// Day handles GET /api/day/{date}.
func (h *Handlers) Day(w http.ResponseWriter, r *http.Request) {
	q, err := h.query(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.svc.Day(r.Context(), userID(r), chi.URLParam(r, "date"), q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respond(w, out, nil)
}

// Share handles GET /api/share.
func (h *Handlers) Share(w http.ResponseWriter, r *http.Request) {
	q, err := h.query(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.svc.Share(r.Context(), userID(r), q)
	h.respond(w, out, err)
}

// profileResponse is the body of GET /api/profile.
type profileResponse struct {
	Clusters []clustering.Cluster `json:"clusters"`
	Outliers int                  `json:"outliers"`
}

// Profile handles GET /api/profile.
func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	q, err := h.query(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg := clustering.DefaultConfig()
	if cfg.NumClusters, err = intParam(r, "k", cfg.NumClusters); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	clusters, outliers, err := h.svc.Profile(r.Context(), userID(r), q, cfg)
	if clusters == nil {
		clusters = []clustering.Cluster{}
	}
	h.respond(w, profileResponse{Clusters: clusters, Outliers: len(outliers)}, err)
}

// reclassifyRequest is the body of POST /api/jobs/reclassify.
type reclassifyRequest struct {
	Mode  string     `json:"mode"`
	AI    string     `json:"ai"`
	Since *time.Time `json:"since"`
	Until *time.Time `json:"until"`
	Limit int        `json:"limit"`
}

// Reclassify handles POST /api/jobs/reclassify.
func (h *Handlers) Reclassify(w http.ResponseWriter, r *http.Request) {
	var req reclassifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	mode, err := pipeline.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	aiMode, err := pipeline.ParseAIMode(req.AI)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := pipeline.ReclassifyOptions{Mode: mode, AI: aiMode, Limit: req.Limit}
	if req.Since != nil {
		opts.Since = *req.Since
	}
	if req.Until != nil {
		opts.Until = *req.Until
	}
	res, err := h.svc.Reclassify(r.Context(), userID(r), opts)
	h.respond(w, res, err)
}

// fillRequest is the body of POST /api/jobs/fill-missing.
type fillRequest struct {
	Limit int    `json:"limit"`
	AI    string `json:"ai"`
}

// FillMissing handles POST /api/jobs/fill-missing.
func (h *Handlers) FillMissing(w http.ResponseWriter, r *http.Request) {
	var req fillRequest
	if !decodeBody(w, r, &req) {
		return
	}
	aiMode, err := pipeline.ParseAIMode(req.AI)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.FillMissing(r.Context(), userID(r), pipeline.FillOptions{Limit: req.Limit, AI: aiMode})
	h.respond(w, res, err)
}

// backfillRequest is the body of POST /api/jobs/backfill-descriptors.
type backfillRequest struct {
	Days int `json:"days"`
}

// BackfillDescriptors handles POST /api/jobs/backfill-descriptors.
func (h *Handlers) BackfillDescriptors(w http.ResponseWriter, r *http.Request) {
	req := backfillRequest{Days: 30}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.BackfillDescriptors(r.Context(), userID(r), req.Days)
	h.respond(w, res, err)
}

// maxImportBytes bounds an uploaded history export.
const maxImportBytes = 64 << 20

// Import handles POST /api/import with a streaming history export as the body.
func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	recs, err := ingest.ParseStreamingHistory(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.Import(r.Context(), userID(r), recs, model.SourceUpload)
	h.respond(w, res, err)
}

// DeleteData handles DELETE /api/data.
func (h *Handlers) DeleteData(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.DeleteUserData(r.Context(), userID(r))
	h.respond(w, map[string]int64{"deletedEvents": n}, err)
}

// decodeBody decodes an optional JSON body. An empty body keeps v's defaults.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// respond writes v, or maps err to a status code.
func (h *Handlers) respond(w http.ResponseWriter, v any, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, v)
		return
	}
	switch {
	case errors.Is(err, emotion.ErrInsufficientData):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, pipeline.ErrNoCatalog), errors.Is(err, pipeline.ErrNoSuggester):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusRequestTimeout, "request cancelled")
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
