package emotion

import (
	"errors"
	"math"
	"testing"
)

func TestPercentile(t *testing.T) {
	sorted := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 0.1},
		{1, 0.9},
		{0.5, 0.5},
		{0.33, 0.364},
		{0.66, 0.628},
	}
	for _, tt := range tests {
		if got := Percentile(sorted, tt.p); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if !math.IsNaN(Percentile(nil, 0.5)) {
		t.Error("Percentile of empty slice should be NaN")
	}
	if got := Percentile([]float64{0.42}, 0.66); got != 0.42 {
		t.Errorf("single value percentile = %v", got)
	}
}

func TestEstimateCuts_Empty(t *testing.T) {
	_, err := EstimateCuts(nil, AxisEnergy)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestEstimateCuts_Uniform(t *testing.T) {
	var samples []Sample
	// insert out of order; the estimator sorts
	for _, v := range []float64{0.9, 0.1, 0.5, 0.3, 0.7, 0.2, 0.8, 0.4, 0.6} {
		samples = append(samples, Sample{Valence: v, Energy: 1 - v, Arousal: v / 2})
	}

	cuts, err := EstimateCuts(samples, AxisEnergy)
	if err != nil {
		t.Fatalf("EstimateCuts() error = %v", err)
	}
	if math.Abs(cuts.VLo-0.364) > 1e-9 || math.Abs(cuts.VHi-0.628) > 1e-9 {
		t.Errorf("valence cuts = %v/%v, want 0.364/0.628", cuts.VLo, cuts.VHi)
	}
	if math.Abs(cuts.ELo-0.364) > 1e-9 || math.Abs(cuts.EHi-0.628) > 1e-9 {
		t.Errorf("energy cuts = %v/%v, want 0.364/0.628", cuts.ELo, cuts.EHi)
	}

	cuts, err = EstimateCuts(samples, AxisArousal)
	if err != nil {
		t.Fatalf("EstimateCuts() error = %v", err)
	}
	if math.Abs(cuts.ELo-0.182) > 1e-9 || math.Abs(cuts.EHi-0.314) > 1e-9 {
		t.Errorf("arousal cuts = %v/%v, want 0.182/0.314", cuts.ELo, cuts.EHi)
	}
}

func TestEstimateCuts_ZeroVariance(t *testing.T) {
	samples := []Sample{{Valence: 0.4, Energy: 0.7}, {Valence: 0.4, Energy: 0.7}}
	cuts, err := EstimateCuts(samples, AxisEnergy)
	if err != nil {
		t.Fatalf("EstimateCuts() error = %v", err)
	}
	if cuts.VLo != 0.4 || cuts.VHi != 0.4 || cuts.ELo != 0.7 || cuts.EHi != 0.7 {
		t.Errorf("cuts = %+v, want equal cuts", cuts)
	}
}

func TestEstimateCutsN_MinSize(t *testing.T) {
	samples := []Sample{{Valence: 0.4, Energy: 0.7}, {Valence: math.NaN(), Energy: 0.1}}
	if _, err := EstimateCutsN(samples, AxisEnergy, 2); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("err = %v, want ErrInsufficientData", err)
	}
	if _, err := EstimateCutsN(samples, AxisEnergy, 1); err != nil {
		t.Errorf("err = %v, want nil", err)
	}
}

func TestEstimateCuts_Ordered(t *testing.T) {
	samples := []Sample{
		{Valence: 0.05, Energy: 0.9}, {Valence: 0.95, Energy: 0.2},
		{Valence: 0.4, Energy: 0.3}, {Valence: 0.6, Energy: 0.6},
	}
	cuts, err := EstimateCuts(samples, AxisEnergy)
	if err != nil {
		t.Fatal(err)
	}
	if cuts.VLo > cuts.VHi || cuts.ELo > cuts.EHi {
		t.Errorf("cuts not ordered: %+v", cuts)
	}
}
