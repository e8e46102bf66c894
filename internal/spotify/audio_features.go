package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/zmb3/spotify/v2"

	"github.com/justestif/moodlens/internal/model"
)

// FetchDescriptors retrieves audio descriptors for the given track IDs.
// Tracks the catalog has no features for are omitted from the result.
// When a batch fails after retries the descriptors gathered so far are
// returned together with an error wrapping ErrUnavailable.
func (c *Catalog) FetchDescriptors(ctx context.Context, ids []string) (map[string]model.Descriptor, error) {
	out := make(map[string]model.Descriptor, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var failed []error
	total := len(ids)
	for i := 0; i < total; i += c.batchSize {
		end := min(i+c.batchSize, total)
		batch := make([]spotify.ID, 0, end-i)
		for _, id := range ids[i:end] {
			batch = append(batch, spotify.ID(id))
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return out, err
		}

		c.logger.Debug("fetching audio features", "from", i+1, "to", end, "total", total)
		start := time.Now()
		features, err := c.fetchBatch(ctx, batch)
		if err != nil {
			c.metrics.CatalogBatch(time.Since(start), len(batch))
			c.logger.Warn("audio feature batch failed", "from", i+1, "to", end, "error", err)
			failed = append(failed, fmt.Errorf("batch %d-%d: %w", i+1, end, err))
			continue
		}

		found := 0
		for _, f := range features {
			if f == nil {
				continue // track has no audio features
			}
			d := descriptorFrom(f)
			out[d.TrackID] = d
			found++
		}
		c.metrics.CatalogBatch(time.Since(start), len(batch)-found)
	}

	if len(failed) > 0 {
		return out, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(failed...))
	}
	return out, nil
}

func (c *Catalog) fetchBatch(ctx context.Context, ids []spotify.ID) ([]*spotify.AudioFeatures, error) {
	var features []*spotify.AudioFeatures
	err := retry.Do(
		func() error {
			reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			var err error
			features, err = c.api.GetAudioFeatures(reqCtx, ids...)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
	)
	return features, err
}

// retryable reports whether a request error is worth retrying: rate limits,
// server errors and transport failures are; other API errors are not.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	}
	return true
}

// descriptorFrom converts Spotify audio features to a descriptor.
func descriptorFrom(f *spotify.AudioFeatures) model.Descriptor {
	f64 := func(v float32) *float64 {
		x := float64(v)
		return &x
	}
	duration := int(f.Duration)
	mode := int(f.Mode)
	return model.Descriptor{
		TrackID:      f.ID.String(),
		DurationMs:   &duration,
		Valence:      f64(f.Valence),
		Energy:       f64(f.Energy),
		Danceability: f64(f.Danceability),
		Acousticness: f64(f.Acousticness),
		Speechiness:  f64(f.Speechiness),
		Tempo:        f64(f.Tempo),
		Loudness:     f64(f.Loudness),
		Mode:         &mode,
	}
}
