package emotion

import "math"

// Suggestion is a best-effort category from an external provider.
type Suggestion struct {
	Category  Category `json:"category"`
	MoodScore *float64 `json:"moodScore,omitempty"`
}

// Outcome records which side of a reconciliation won.
type Outcome int

const (
	// OutcomeDeterministic means no suggestion was available.
	OutcomeDeterministic Outcome = iota
	// OutcomeExternal means the suggestion was kept.
	OutcomeExternal
	// OutcomeOverridden means the point was clearly inside a quadrant and the
	// suggestion disagreed, so the quadrant won.
	OutcomeOverridden
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExternal:
		return "external"
	case OutcomeOverridden:
		return "overridden"
	default:
		return "deterministic"
	}
}

// Reconciled is the merged category and optional mood score.
type Reconciled struct {
	Category  Category
	MoodScore *float64
	Outcome   Outcome
}

// ReconcilePolicy holds the quadrant thresholds and the tolerance band within
// which an external suggestion is trusted.
type ReconcilePolicy struct {
	Hi, Lo float64
	Margin float64
}

// Strict is the reconciliation policy. Its thresholds are wider than
// Softened, leaving more room for external judgement.
var Strict = ReconcilePolicy{Hi: 0.66, Lo: 0.33, Margin: 0.06}

// Quadrant maps valence and energy to a category with p's thresholds only.
func (p ReconcilePolicy) Quadrant(valence, energy float64) Category {
	switch {
	case valence >= p.Hi && energy >= p.Hi:
		return CategoryHappy
	case valence >= p.Hi && energy <= p.Lo:
		return CategoryCalm
	case valence <= p.Lo && energy <= p.Lo:
		return CategorySad
	case valence <= p.Lo && energy >= p.Hi:
		return CategoryTense
	}
	return CategoryNeutral
}

// NearBoundary reports whether either coordinate lies strictly within the
// margin of either threshold.
func (p ReconcilePolicy) NearBoundary(valence, energy float64) bool {
	near := func(x, t float64) bool { return math.Abs(x-t) < p.Margin }
	return near(valence, p.Hi) || near(valence, p.Lo) || near(energy, p.Hi) || near(energy, p.Lo)
}

// Reconcile merges s with the Strict quadrant of (valence, energy).
func Reconcile(s *Suggestion, valence, energy float64) Reconciled {
	return Strict.Reconcile(s, valence, energy)
}

// Reconcile merges s with the quadrant of (valence, energy). A nil suggestion
// or one without a category yields the quadrant alone.
func (p ReconcilePolicy) Reconcile(s *Suggestion, valence, energy float64) Reconciled {
	q := p.Quadrant(valence, energy)
	if s == nil || s.Category == "" {
		return Reconciled{Category: q, Outcome: OutcomeDeterministic}
	}
	if q == CategoryNeutral {
		return Reconciled{Category: s.Category, MoodScore: s.MoodScore, Outcome: OutcomeExternal}
	}
	if !p.NearBoundary(valence, energy) && s.Category != q {
		return Reconciled{Category: q, MoodScore: s.MoodScore, Outcome: OutcomeOverridden}
	}
	return Reconciled{Category: s.Category, MoodScore: s.MoodScore, Outcome: OutcomeExternal}
}

// ApplySuggestion folds a reconciled suggestion into a deterministic result.
// A Neutral reconciliation keeps the deterministic category; a mood score,
// when present, replaces the computed mood.
func ApplySuggestion(base Result, r Reconciled) Result {
	out := base
	if base.Speech() {
		return out
	}
	if r.Category != CategoryNeutral && r.Category != "" {
		out.Category = r.Category
		out.Label = r.Category.Label()
	}
	if r.MoodScore != nil && !math.IsNaN(*r.MoodScore) {
		out.Mood = Clamp(*r.MoodScore)
	}
	return out
}
