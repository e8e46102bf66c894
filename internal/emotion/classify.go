package emotion

import "math"

// Guardrail and scoring constants shared by every policy.
const (
	SpeechThreshold    = 0.66
	speechMood         = 0.0
	speechConfidence   = 0.9
	ShortClipMs        = 30_000
	shortClipMaxConf   = 0.7
	confidenceFloor    = 0.55
	confidenceSpan     = 0.45
	confidenceDistance = 0.5
	center             = 0.5
)

// Policy is a threshold parameter set for the quadrant classifier.
// Fixed and adaptive classification are the same procedure with different policies.
type Policy struct {
	VLo, VHi float64 // valence thresholds
	ALo, AHi float64 // arousal thresholds

	// Split decides the twin when only one axis is decisive.
	Split float64
	// DeadZone is the radius around (0.5, 0.5) that stays Neutral in the tertiary pass.
	DeadZone float64

	Secondary bool
	Tertiary  bool
}

// Softened is the default fixed policy. Its thresholds sit closer to the
// center than a 33/66 split so fewer tracks land in Neutral.
var Softened = Policy{
	VLo: 0.42, VHi: 0.58,
	ALo: 0.42, AHi: 0.58,
	Split:     0.5,
	DeadZone:  0.08,
	Secondary: true,
	Tertiary:  true,
}

// AdaptivePolicy uses a user's cut points with primary rules only.
func AdaptivePolicy(c CutPoints) Policy {
	return Policy{
		VLo: c.VLo, VHi: c.VHi,
		ALo: c.ELo, AHi: c.EHi,
		Split:    center,
		DeadZone: 0,
	}
}

// Result is the output of one classification.
type Result struct {
	Label      Label
	Category   Category
	Valence    float64
	Arousal    float64
	Mood       float64
	Confidence float64
}

// Speech reports whether the result came from the speech guardrail.
func (r Result) Speech() bool { return r.Label == LabelSpeech }

// Mood is the continuous mood score used for charts.
func Mood(valence, arousal, danceability, speechiness float64) float64 {
	return Clamp(0.5*valence + 0.3*arousal + 0.15*danceability - 0.1*speechiness)
}

// IsSpeech reports whether speechiness triggers the guardrail.
func IsSpeech(speechiness float64) bool { return speechiness >= SpeechThreshold }

// Classify labels f with the Softened policy.
func Classify(f Features) Result {
	return ClassifyPolicy(f, Softened)
}

// ClassifyWithCuts labels f against a user's cut points.
// Points outside the four primary quadrants are Neutral.
func ClassifyWithCuts(f Features, c CutPoints) Result {
	return ClassifyPolicy(f, AdaptivePolicy(c))
}

// ClassifyPolicy runs the speech guardrail, the quadrant rules enabled by p
// and the confidence heuristic.
func ClassifyPolicy(f Features, p Policy) Result {
	v, a := f.Valence, f.Arousal
	if IsSpeech(f.Speechiness) {
		return Result{
			Label:      LabelSpeech,
			Category:   CategoryNeutral,
			Valence:    v,
			Arousal:    a,
			Mood:       speechMood,
			Confidence: speechConfidence,
		}
	}

	label := primary(v, a, p)
	if label == LabelNeutral && p.Secondary {
		label = secondary(v, a, p)
	}
	if label == LabelNeutral && p.Tertiary {
		label = tertiary(v, a, p.DeadZone)
	}

	dv := math.Min(math.Abs(v-p.VHi), math.Abs(v-p.VLo))
	da := math.Min(math.Abs(a-p.AHi), math.Abs(a-p.ALo))
	conf := Clamp(confidenceFloor + confidenceSpan*math.Min(dv, da)/confidenceDistance)
	if f.DurationMs != nil && *f.DurationMs < ShortClipMs {
		conf = math.Min(conf, shortClipMaxConf)
	}

	return Result{
		Label:      label,
		Category:   label.Category(),
		Valence:    v,
		Arousal:    a,
		Mood:       Mood(v, a, f.Danceability, f.Speechiness),
		Confidence: conf,
	}
}

func primary(v, a float64, p Policy) Label {
	switch {
	case v >= p.VHi && a >= p.AHi:
		return LabelHappy
	case v >= p.VHi && a <= p.ALo:
		return LabelCalm
	case v <= p.VLo && a <= p.ALo:
		return LabelSad
	case v <= p.VLo && a >= p.AHi:
		return LabelTense
	}
	return LabelNeutral
}

// secondary handles points where exactly one axis is decisive.
func secondary(v, a float64, p Policy) Label {
	switch {
	case v >= p.VHi:
		if a >= p.Split {
			return LabelHappy
		}
		return LabelCalm
	case v <= p.VLo:
		if a >= p.Split {
			return LabelTense
		}
		return LabelSad
	case a >= p.AHi:
		if v >= p.Split {
			return LabelHappy
		}
		return LabelTense
	case a <= p.ALo:
		if v >= p.Split {
			return LabelCalm
		}
		return LabelSad
	}
	return LabelNeutral
}

// tertiary assigns by quadrant sign once the point leaves the dead zone.
func tertiary(v, a, dead float64) Label {
	dv, da := v-center, a-center
	if math.Abs(dv) <= dead && math.Abs(da) <= dead {
		return LabelNeutral
	}
	switch {
	case dv >= 0 && da >= 0:
		return LabelHappy
	case dv >= 0:
		return LabelCalm
	case da < 0:
		return LabelSad
	default:
		return LabelTense
	}
}
