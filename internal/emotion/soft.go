package emotion

import (
	"math"

	"github.com/muesli/clusters"
)

const (
	softSharpness      = 6.0
	softSpeechConf     = 0.6
	softSpeechMood     = 0.5
	neutralConfPenalty = 5.0
)

// SoftProbs is a probability distribution over categories.
type SoftProbs struct {
	Probs      map[Category]float64
	Confidence float64
	Mood       float64
}

// Top returns the most probable category; ties resolve to the lowest ordinal.
func (s SoftProbs) Top() Category {
	best := CategoryNeutral
	bestP := -1.0
	for _, c := range categories {
		if p := s.Probs[c]; p > bestP {
			best, bestP = c, p
		}
	}
	return best
}

// SoftClassify scores f against the centroids implied by the cut points.
// Affinity decays exponentially with distance; Neutral competes through its
// own affinity to the center of the plane.
func SoftClassify(f Features, c CutPoints) SoftProbs {
	if IsSpeech(f.Speechiness) {
		return SoftProbs{
			Probs: map[Category]float64{
				CategoryHappy: 0, CategoryCalm: 0, CategorySad: 0, CategoryTense: 0,
				CategoryNeutral: 1,
			},
			Confidence: softSpeechConf,
			Mood:       softSpeechMood,
		}
	}

	point := clusters.Coordinates{f.Valence, f.Arousal}
	centroids := map[Category]clusters.Coordinates{
		CategoryHappy: {c.VHi, c.EHi},
		CategoryCalm:  {c.VHi, c.ELo},
		CategorySad:   {c.VLo, c.ELo},
		CategoryTense: {c.VLo, c.EHi},
	}

	aff := make(map[Category]float64, len(categories))
	sum := 0.0
	for cat, centroid := range centroids {
		// Distance on Coordinates is squared Euclidean.
		d := math.Sqrt(point.Distance(centroid))
		aff[cat] = math.Exp(-softSharpness * d)
		sum += aff[cat]
	}
	neutral := math.Exp(-softSharpness*math.Abs(f.Valence-center)) * math.Exp(-softSharpness*math.Abs(f.Arousal-center))
	aff[CategoryNeutral] = neutral
	sum += neutral

	probs := make(map[Category]float64, len(aff))
	for cat, a := range aff {
		probs[cat] = a / sum
	}
	return SoftProbs{
		Probs:      probs,
		Confidence: Clamp(1 - neutralConfPenalty*probs[CategoryNeutral]),
		Mood:       Mood(f.Valence, f.Arousal, f.Danceability, f.Speechiness),
	}
}
