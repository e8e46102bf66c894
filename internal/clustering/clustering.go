// Package clustering groups a listener's classified plays into mood clusters
// using k-means over audio features.
package clustering

import (
	"time"

	"github.com/muesli/clusters"
)

// Point is one classified play placed in feature space.
type Point struct {
	TrackID      string
	Name         string
	Artist       string
	PlayedAt     time.Time
	Valence      float64
	Arousal      float64
	Danceability float64
	Acousticness float64
}

// pointObservation wraps a Point to implement clusters.Observation.
type pointObservation struct {
	point  *Point
	coords clusters.Coordinates
}

func (o pointObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o pointObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// featureNames defines the dimensions used for clustering, in coordinate order.
var featureNames = []string{"valence", "arousal", "danceability", "acousticness"}

func coordinates(p *Point) clusters.Coordinates {
	return clusters.Coordinates{p.Valence, p.Arousal, p.Danceability, p.Acousticness}
}
