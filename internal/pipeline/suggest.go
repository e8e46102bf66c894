package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/justestif/moodlens/internal/ai"
	"github.com/justestif/moodlens/internal/emotion"
	"github.com/justestif/moodlens/internal/model"
)

// suggestion is the external opinion on one item.
type suggestion struct {
	value *emotion.Suggestion
	err   error
	// speech items never go to the provider.
	speech bool
}

// usable reports whether the item may be written under AIOnly.
func (sg suggestion) usable() bool {
	if sg.speech {
		return true
	}
	return sg.err == nil && sg.value != nil && sg.value.Category != ""
}

// suggestAll asks the suggester about every non-speech item with a bounded
// worker pool. Results are returned in input order; individual failures are
// captured per item rather than failing the batch.
func (s *Service) suggestAll(ctx context.Context, items []item) ([]suggestion, error) {
	results := make([]suggestion, len(items))
	if len(items) == 0 {
		return results, nil
	}

	type workItem struct {
		index int
		item  item
	}
	workCh := make(chan workItem, len(items))
	for i, it := range items {
		workCh <- workItem{index: i, item: it}
	}
	close(workCh)

	var wg sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for work := range workCh {
				select {
				case <-ctx.Done():
					results[work.index] = suggestion{err: ctx.Err()}
					continue
				default:
				}
				results[work.index] = s.suggestOne(ctx, work.item)
			}
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return results, ctx.Err()
	}
	return results, nil
}

func (s *Service) suggestOne(ctx context.Context, it item) suggestion {
	if it.result.Speech() {
		return suggestion{speech: true}
	}
	sg, err := s.suggester.Suggest(ctx, s.trackMeta(ctx, it.play), it.features)
	if err != nil {
		return suggestion{err: err}
	}
	return suggestion{value: &sg}
}

// trackMeta collects the metadata sent with a suggestion request. Tag lookup
// failures only cost context and are not reported.
func (s *Service) trackMeta(ctx context.Context, p model.Play) ai.TrackMeta {
	meta := ai.TrackMeta{Name: p.TrackID}
	if p.Track == nil {
		return meta
	}
	meta.Name = p.Track.Name
	if p.Track.Artist != "" {
		meta.Artists = []string{p.Track.Artist}
	}
	if s.tagger != nil && p.Track.Artist != "" {
		tags, err := s.tagger.TopTagNames(ctx, p.Track.Artist, p.Track.Name, maxTags)
		if err != nil {
			s.logger.Debug("tag lookup failed", "track", p.TrackID, "error", err)
		} else {
			meta.Tags = tags
		}
	}
	return meta
}

// applySuggestion reconciles a suggestion with the item's deterministic
// result. The item is marked as AI-classified only when the external
// category was kept.
func (s *Service) applySuggestion(it item, sg suggestion) item {
	switch {
	case sg.speech:
		return it
	case sg.err != nil:
		outcome := "unavailable"
		if errors.Is(sg.err, ai.ErrTimeout) {
			outcome = "timeout"
		}
		s.metrics.AIOutcome(outcome)
		s.logger.Debug("suggestion failed", "event", it.play.ID, "error", sg.err)
		return it
	case sg.value == nil:
		return it
	}

	rec := emotion.Reconcile(sg.value, it.features.Valence, it.features.Energy)
	s.metrics.AIOutcome(rec.Outcome.String())
	it.result = emotion.ApplySuggestion(it.result, rec)
	if rec.Outcome == emotion.OutcomeExternal {
		it.method = model.MethodAI
	}
	return it
}
