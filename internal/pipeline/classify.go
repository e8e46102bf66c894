package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"

	"github.com/justestif/moodlens/internal/ai"
	"github.com/justestif/moodlens/internal/emotion"
	"github.com/justestif/moodlens/internal/model"
)

// Mode selects the classification policy for a batch.
type Mode string

// Classification modes.
const (
	ModeFixed    Mode = "fixed"
	ModeAdaptive Mode = "adaptive"
	ModeSoft     Mode = "soft"
)

// ParseMode validates a mode string. Empty means fixed.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeFixed:
		return ModeFixed, nil
	case ModeAdaptive, ModeSoft:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// AIMode controls whether external suggestions are consulted.
type AIMode string

// AI modes.
const (
	AIOff  AIMode = "off"
	AIAuto AIMode = "auto"
	AIOnly AIMode = "only"
)

// ParseAIMode validates an AI mode string. Empty means off.
func ParseAIMode(s string) (AIMode, error) {
	switch AIMode(s) {
	case "", AIOff:
		return AIOff, nil
	case AIAuto, AIOnly:
		return AIMode(s), nil
	}
	return "", fmt.Errorf("unknown ai mode %q", s)
}

// ReclassifyOptions scope a reclassification run.
type ReclassifyOptions struct {
	Mode Mode
	AI   AIMode
	// Since defaults to 30 days before now; Until to no upper bound.
	Since time.Time
	Until time.Time
	// Limit caps the number of events, newest first.
	Limit int
}

// FillOptions scope a fill-missing run.
type FillOptions struct {
	Limit int
	AI    AIMode
}

// BatchResult counts the outcome of a batch job. Every examined event lands
// in exactly one of Created, Updated, Skipped or Errors.
type BatchResult struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// Job names used in logs and metrics.
const (
	jobReclassify = "reclassify"
	jobFill       = "fill_missing"
	jobBackfill   = "backfill_descriptors"
)

// classifier turns normalized features into a result and the method that produced it.
type classifier func(f emotion.Features) (emotion.Result, model.Method)

func fixedClassifier(f emotion.Features) (emotion.Result, model.Method) {
	return emotion.Classify(f), model.MethodFixed
}

func adaptiveClassifier(cuts emotion.CutPoints) classifier {
	return func(f emotion.Features) (emotion.Result, model.Method) {
		return emotion.ClassifyWithCuts(f, cuts), model.MethodAdaptive
	}
}

func softClassifier(cuts emotion.CutPoints) classifier {
	return func(f emotion.Features) (emotion.Result, model.Method) {
		if emotion.IsSpeech(f.Speechiness) {
			return emotion.Classify(f), model.MethodSoft
		}
		p := emotion.SoftClassify(f, cuts)
		top := p.Top()
		return emotion.Result{
			Label:      top.Label(),
			Category:   top,
			Valence:    f.Valence,
			Arousal:    f.Arousal,
			Mood:       p.Mood,
			Confidence: p.Confidence,
		}, model.MethodSoft
	}
}

// Reclassify recomputes the classification of a user's events in a window.
// Adaptive and soft modes estimate cut points from the user's whole history
// and fail with emotion.ErrInsufficientData when there is none.
func (s *Service) Reclassify(ctx context.Context, userID string, opts ReclassifyOptions) (BatchResult, error) {
	start := s.now()
	if opts.Mode == "" {
		opts.Mode = ModeFixed
	}
	if opts.AI == "" {
		opts.AI = AIOff
	}
	if opts.AI == AIOnly && !ai.Enabled(s.suggester) {
		return BatchResult{}, ErrNoSuggester
	}
	if opts.Since.IsZero() {
		opts.Since = start.AddDate(0, 0, -DefaultReclassifyDays)
	}
	if opts.Limit <= 0 {
		opts.Limit = s.reclassifyLimit
	}

	classify := classifier(fixedClassifier)
	if opts.Mode != ModeFixed {
		samples, err := s.store.CutSamples(ctx, userID)
		if err != nil {
			return BatchResult{}, fmt.Errorf("loading cut samples: %w", err)
		}
		cuts, err := emotion.EstimateCutsN(samples, emotion.AxisEnergy, s.minSamples)
		if err != nil {
			return BatchResult{}, fmt.Errorf("estimating cuts for %s: %w", userID, err)
		}
		s.logger.Debug("estimated cut points", "user", userID, "samples", len(samples),
			"v_lo", cuts.VLo, "v_hi", cuts.VHi, "e_lo", cuts.ELo, "e_hi", cuts.EHi)
		if opts.Mode == ModeAdaptive {
			classify = adaptiveClassifier(cuts)
		} else {
			classify = softClassifier(cuts)
		}
	}

	plays, err := s.store.FindPlays(ctx, model.EventFilter{
		UserID: userID,
		Since:  opts.Since,
		Until:  opts.Until,
		Limit:  opts.Limit,
	})
	if err != nil {
		return BatchResult{}, fmt.Errorf("loading events: %w", err)
	}

	res, err := s.classifyPlays(ctx, jobReclassify, plays, classify, opts.AI)
	s.metrics.JobDuration(jobReclassify, s.now().Sub(start))
	s.logger.Info("reclassified events", "user", userID, "mode", opts.Mode, "ai", opts.AI,
		"processed", res.Processed, "created", res.Created, "updated", res.Updated,
		"skipped", res.Skipped, "errors", res.Errors)
	return res, err
}

// FillMissing classifies events that have descriptors but no classification,
// using the fixed policy.
func (s *Service) FillMissing(ctx context.Context, userID string, opts FillOptions) (BatchResult, error) {
	start := s.now()
	if opts.AI == "" {
		opts.AI = AIOff
	}
	if opts.AI == AIOnly && !ai.Enabled(s.suggester) {
		return BatchResult{}, ErrNoSuggester
	}
	if opts.Limit <= 0 {
		opts.Limit = s.fillLimit
	}

	plays, err := s.store.FindPlays(ctx, model.EventFilter{
		UserID:       userID,
		Unclassified: true,
		Limit:        opts.Limit,
	})
	if err != nil {
		return BatchResult{}, fmt.Errorf("loading unclassified events: %w", err)
	}

	res, err := s.classifyPlays(ctx, jobFill, plays, fixedClassifier, opts.AI)
	s.metrics.JobDuration(jobFill, s.now().Sub(start))
	s.logger.Info("filled missing classifications", "user", userID,
		"processed", res.Processed, "created", res.Created, "skipped", res.Skipped, "errors", res.Errors)
	return res, err
}

// item is one play queued for classification.
type item struct {
	play     model.Play
	features emotion.Features
	result   emotion.Result
	method   model.Method
}

// features normalizes a play's descriptor. The track duration stands in for
// a missing descriptor duration.
func features(p model.Play) emotion.Features {
	raw := p.Descriptor.Raw()
	if raw.DurationMs == nil && p.Track != nil {
		raw.DurationMs = p.Track.DurationMs
	}
	return emotion.Normalize(raw, emotion.ClassifierDefaults())
}

func (s *Service) classifyPlays(ctx context.Context, job string, plays []model.Play, classify classifier, aiMode AIMode) (BatchResult, error) {
	res := BatchResult{Processed: len(plays)}

	items := make([]item, 0, len(plays))
	for _, p := range plays {
		if p.Descriptor == nil {
			res.Skipped++
			continue
		}
		f := features(p)
		r, m := classify(f)
		items = append(items, item{play: p, features: f, result: r, method: m})
	}

	if aiMode != AIOff && ai.Enabled(s.suggester) {
		suggestions, err := s.suggestAll(ctx, items)
		if err != nil {
			return res, err
		}
		kept := items[:0]
		for i, it := range items {
			sg := suggestions[i]
			if aiMode == AIOnly && !sg.usable() {
				res.Skipped++
				continue
			}
			kept = append(kept, s.applySuggestion(it, sg))
		}
		items = kept
	}

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			s.metrics.Skipped(job, res.Skipped)
			return res, err
		}
		c := model.NewClassification(it.play.ID, it.result, it.method)
		created, err := s.writeClassification(ctx, c)
		if err != nil {
			res.Errors++
			s.metrics.WriteError(job)
			s.logger.Warn("writing classification failed", "job", job, "event", it.play.ID, "error", err)
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
		s.metrics.Classified(string(c.Method), string(c.Category))
	}
	s.metrics.Skipped(job, res.Skipped)
	return res, nil
}

// writeClassification upserts c, retrying transient store failures.
func (s *Service) writeClassification(ctx context.Context, c model.Classification) (bool, error) {
	var created bool
	err := retry.Do(
		func() error {
			var err error
			created, err = s.store.UpsertClassification(ctx, c)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(s.writeAttempts),
		retry.Delay(s.writeDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
	)
	return created, err
}
