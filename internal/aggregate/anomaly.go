package aggregate

import "math"

// AnomalyThreshold is the |z| above which a bucket is flagged.
const AnomalyThreshold = 2.0

// minStd is the smallest deviation treated as non-zero. Averages of equal
// moods can differ by rounding noise alone.
const minStd = 1e-9

// DetectAnomalies fills ZScore and Anomaly using the population mean and
// standard deviation of MoodAvg across the given buckets. Buckets without a
// mood are excluded from the statistics. When the deviation is zero (below
// minStd) no bucket gets a z-score. Statistics cover the whole slice, not a moving window.
func DetectAnomalies(buckets []Bucket) []Bucket {
	values := make([]float64, 0, len(buckets))
	for _, b := range buckets {
		if b.MoodAvg != nil {
			values = append(values, *b.MoodAvg)
		}
	}
	mean, std := meanStd(values)

	out := make([]Bucket, len(buckets))
	for i, b := range buckets {
		b.ZScore = nil
		b.Anomaly = false
		if b.MoodAvg != nil && std > minStd {
			z := (*b.MoodAvg - mean) / std
			b.ZScore = &z
			b.Anomaly = math.Abs(z) > AnomalyThreshold
		}
		out[i] = b
	}
	return out
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}
