package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"

	"github.com/justestif/moodlens/internal/emotion"
	"github.com/justestif/moodlens/internal/model"
)

// BackfillDescriptors fetches catalog descriptors for tracks the user played
// in the last days that have none yet. Days <= 0 covers the whole history.
//
// Missing fields are filled with catalog defaults before storing. Tracks the
// catalog does not know are counted as skipped; tracks in a batch that failed
// are counted as errors and left for the next run.
func (s *Service) BackfillDescriptors(ctx context.Context, userID string, days int) (BatchResult, error) {
	if s.catalog == nil {
		return BatchResult{}, ErrNoCatalog
	}
	start := s.now()

	var since time.Time
	if days > 0 {
		since = start.AddDate(0, 0, -days)
	}
	tracks, err := s.store.TracksMissingDescriptors(ctx, userID, since, s.fillLimit)
	if err != nil {
		return BatchResult{}, fmt.Errorf("loading tracks without descriptors: %w", err)
	}

	res := BatchResult{Processed: len(tracks)}
	for lo := 0; lo < len(tracks); lo += s.catalogBatch {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		hi := min(lo+s.catalogBatch, len(tracks))
		ids := make([]string, 0, hi-lo)
		for _, t := range tracks[lo:hi] {
			ids = append(ids, t.ID)
		}

		found, fetchErr := s.catalog.FetchDescriptors(ctx, ids)
		if fetchErr != nil {
			s.logger.Warn("catalog batch incomplete", "user", userID, "tracks", len(ids),
				"found", len(found), "error", fetchErr)
		}

		batch := make([]model.Descriptor, 0, len(found))
		for _, id := range ids {
			d, ok := found[id]
			if !ok {
				if fetchErr != nil {
					res.Errors++
				} else {
					res.Skipped++
				}
				continue
			}
			batch = append(batch, model.Filled(id, emotion.Normalize(d.Raw(), emotion.CatalogDefaults())))
		}
		if len(batch) == 0 {
			continue
		}

		if err := s.writeDescriptors(ctx, batch); err != nil {
			res.Errors += len(batch)
			s.metrics.WriteError(jobBackfill)
			s.logger.Warn("writing descriptors failed", "user", userID, "tracks", len(batch), "error", err)
			continue
		}
		res.Created += len(batch)
	}

	s.metrics.Skipped(jobBackfill, res.Skipped)
	s.metrics.JobDuration(jobBackfill, s.now().Sub(start))
	s.logger.Info("backfilled descriptors", "user", userID, "tracks", res.Processed,
		"stored", res.Created, "missing", res.Skipped, "errors", res.Errors)
	return res, nil
}

func (s *Service) writeDescriptors(ctx context.Context, ds []model.Descriptor) error {
	return retry.Do(
		func() error { return s.store.UpsertDescriptors(ctx, ds) },
		retry.Context(ctx),
		retry.Attempts(s.writeAttempts),
		retry.Delay(s.writeDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}
