package emotion

import (
	"math"
	"testing"
)

func TestSoftClassify(t *testing.T) {
	cuts := CutPoints{VLo: 0.33, VHi: 0.66, ELo: 0.33, EHi: 0.66}

	t.Run("probabilities sum to one", func(t *testing.T) {
		got := SoftClassify(Features{Valence: 0.7, Arousal: 0.2, Danceability: 0.4}, cuts)
		sum := 0.0
		for _, p := range got.Probs {
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("sum = %v, want 1", sum)
		}
		if len(got.Probs) != 5 {
			t.Errorf("len(Probs) = %d, want 5", len(got.Probs))
		}
	})

	t.Run("nearest centroid wins", func(t *testing.T) {
		got := SoftClassify(Features{Valence: 0.66, Arousal: 0.66}, cuts)
		if got.Top() != CategoryHappy {
			t.Errorf("Top() = %s, want %s", got.Top(), CategoryHappy)
		}
		got = SoftClassify(Features{Valence: 0.3, Arousal: 0.3}, cuts)
		if got.Top() != CategorySad {
			t.Errorf("Top() = %s, want %s", got.Top(), CategorySad)
		}
	})

	t.Run("center is neutral with low confidence", func(t *testing.T) {
		got := SoftClassify(Features{Valence: 0.5, Arousal: 0.5}, cuts)
		if got.Top() != CategoryNeutral {
			t.Errorf("Top() = %s, want Neutral", got.Top())
		}
		if got.Confidence != 0 {
			t.Errorf("Confidence = %v, want 0", got.Confidence)
		}
	})

	t.Run("speech", func(t *testing.T) {
		got := SoftClassify(Features{Valence: 0.9, Arousal: 0.9, Speechiness: 0.7}, cuts)
		if got.Probs[CategoryNeutral] != 1 || got.Confidence != 0.6 || got.Mood != 0.5 {
			t.Errorf("speech probs = %+v", got)
		}
	})
}
