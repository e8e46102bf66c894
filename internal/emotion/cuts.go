package emotion

import (
	"errors"
	"math"
	"sort"
)

// ErrInsufficientData is returned when cut points cannot be estimated.
var ErrInsufficientData = errors.New("insufficient data to estimate cut points")

// Cut percentiles.
const (
	LowPercentile  = 0.33
	HighPercentile = 0.66
)

// CutPoints are a user's 33rd and 66th percentiles of valence and of the
// second axis (energy or arousal).
type CutPoints struct {
	VLo float64 `json:"v_lo"`
	VHi float64 `json:"v_hi"`
	ELo float64 `json:"e_lo"`
	EHi float64 `json:"e_hi"`
}

// Axis selects the second dimension used for cut estimation.
type Axis int

const (
	AxisEnergy Axis = iota
	AxisArousal
)

// String returns the axis name.
func (a Axis) String() string {
	if a == AxisArousal {
		return "arousal"
	}
	return "energy"
}

// Sample is one population member for cut estimation.
type Sample struct {
	Valence float64
	Energy  float64
	Arousal float64
}

// SampleOf builds a Sample from normalized features.
func SampleOf(f Features) Sample {
	return Sample{Valence: f.Valence, Energy: f.Energy, Arousal: f.Arousal}
}

// EstimateCuts computes cut points over the population. Only an empty
// population is an error; identical values produce equal low and high cuts.
func EstimateCuts(samples []Sample, axis Axis) (CutPoints, error) {
	return EstimateCutsN(samples, axis, 1)
}

// EstimateCutsN is EstimateCuts with a minimum population size.
func EstimateCutsN(samples []Sample, axis Axis, minSize int) (CutPoints, error) {
	if minSize < 1 {
		minSize = 1
	}
	vs := make([]float64, 0, len(samples))
	es := make([]float64, 0, len(samples))
	for _, s := range samples {
		second := s.Energy
		if axis == AxisArousal {
			second = s.Arousal
		}
		if math.IsNaN(s.Valence) || math.IsNaN(second) {
			continue
		}
		vs = append(vs, s.Valence)
		es = append(es, second)
	}
	if len(vs) < minSize {
		return CutPoints{}, ErrInsufficientData
	}
	sort.Float64s(vs)
	sort.Float64s(es)
	return CutPoints{
		VLo: Percentile(vs, LowPercentile),
		VHi: Percentile(vs, HighPercentile),
		ELo: Percentile(es, LowPercentile),
		EHi: Percentile(es, HighPercentile),
	}, nil
}

// Percentile is the continuous percentile of sorted values using linear
// interpolation between the two nearest ranks at position p*(n-1).
// It returns NaN for an empty slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	p = Clamp(p)
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
