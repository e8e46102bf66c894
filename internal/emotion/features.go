// Package emotion classifies tracks into emotion categories from their audio descriptors.
//
// Everything in this package is a pure function over plain values: descriptors
// are normalized into Features, Features are mapped to a Result by a Policy,
// and external suggestions are merged in by Reconcile.
package emotion

import "math"

// RawFeatures holds descriptor values as delivered by a catalog.
// Nil fields are unknown and receive defaults during normalization.
type RawFeatures struct {
	Valence      *float64
	Energy       *float64
	Danceability *float64
	Acousticness *float64
	Speechiness  *float64
	Tempo        *float64 // BPM
	Loudness     *float64 // dB, typically -60..0
	Mode         *int
	DurationMs   *int
}

// Features is a complete, range-clamped descriptor set with derived arousal.
type Features struct {
	Valence      float64
	Energy       float64
	Danceability float64
	Acousticness float64
	Speechiness  float64
	Tempo        float64
	Loudness     *float64 // nil means unknown; arousal assumes -30 dB
	Mode         int
	DurationMs   *int // nil means unknown
	Arousal      float64
}

// Defaults are the values substituted for missing descriptors.
type Defaults struct {
	Valence      float64
	Energy       float64
	Danceability float64
	Acousticness float64
	Speechiness  float64
	Tempo        float64
	Mode         int
	Loudness     *float64
}

// defaultLoudnessDb is assumed by the arousal formula when loudness is unknown.
const defaultLoudnessDb = -30.0

// ClassifierDefaults are used when classifying partially known tracks.
func ClassifierDefaults() Defaults {
	return Defaults{
		Valence:      0.5,
		Energy:       0.5,
		Danceability: 0.5,
		Acousticness: 0.5,
		Speechiness:  0.0,
		Tempo:        120,
		Mode:         1,
	}
}

// CatalogDefaults are used when persisting descriptors fetched from a catalog
// that omitted some fields.
func CatalogDefaults() Defaults {
	loudness := -10.0
	return Defaults{
		Valence:      0.5,
		Energy:       0.5,
		Danceability: 0.5,
		Acousticness: 0.5,
		Speechiness:  0.1,
		Tempo:        120,
		Mode:         1,
		Loudness:     &loudness,
	}
}

// Clamp limits x to [0, 1].
func Clamp(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// Normalize fills missing descriptors from d, clamps unit-range descriptors
// to [0, 1] and derives arousal. NaN and infinite values count as missing.
func Normalize(raw RawFeatures, d Defaults) Features {
	f := Features{
		Valence:      Clamp(orDefault(raw.Valence, d.Valence)),
		Energy:       Clamp(orDefault(raw.Energy, d.Energy)),
		Danceability: Clamp(orDefault(raw.Danceability, d.Danceability)),
		Acousticness: Clamp(orDefault(raw.Acousticness, d.Acousticness)),
		Speechiness:  Clamp(orDefault(raw.Speechiness, d.Speechiness)),
		Tempo:        orDefault(raw.Tempo, d.Tempo),
		Mode:         d.Mode,
		DurationMs:   raw.DurationMs,
	}
	if f.Tempo < 0 {
		f.Tempo = 0
	}
	if raw.Mode != nil && (*raw.Mode == 0 || *raw.Mode == 1) {
		f.Mode = *raw.Mode
	}
	switch {
	case valid(raw.Loudness):
		l := *raw.Loudness
		f.Loudness = &l
	case d.Loudness != nil:
		l := *d.Loudness
		f.Loudness = &l
	}
	f.Arousal = Arousal(f.Energy, f.Tempo, f.Acousticness, f.Loudness)
	return f
}

// Arousal derives activation from energy, tempo, acousticness and loudness.
// Energy dominates; tempo and loudness corroborate; acoustic instrumentation
// pulls arousal down.
func Arousal(energy, tempo, acousticness float64, loudness *float64) float64 {
	tempoNorm := Clamp((tempo - 60) / 140)
	db := defaultLoudnessDb
	if valid(loudness) {
		db = *loudness
	}
	loudnessNorm := Clamp((db + 60) / 60)
	return Clamp(0.6*energy + 0.2*tempoNorm + 0.1*(1-acousticness) + 0.1*loudnessNorm)
}

func orDefault(v *float64, def float64) float64 {
	if !valid(v) {
		return def
	}
	return *v
}

func valid(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
