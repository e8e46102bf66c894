package clustering

import (
	"log/slog"
	"slices"
	"time"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/justestif/moodlens/internal/emotion"
)

// Config holds clustering parameters.
type Config struct {
	NumClusters    int // Number of clusters to create (default: 4)
	MinClusterSize int // Smaller clusters become outliers
}

// DefaultConfig returns the recommended default configuration.
func DefaultConfig() Config {
	return Config{
		NumClusters:    4,
		MinClusterSize: 3,
	}
}

// Cluster is a group of plays with a similar sound.
type Cluster struct {
	Name        string             `json:"name"`
	Category    emotion.Category   `json:"category"`
	Description string             `json:"description"`
	Centroid    map[string]float64 `json:"centroid"`
	Points      []Point            `json:"-"`
	Size        int                `json:"size"`
	Share       float64            `json:"share"` // fraction of clustered plays
	First       time.Time          `json:"first"`
	Last        time.Time          `json:"last"`
}

// Profile partitions points into mood clusters. It returns the clusters,
// largest first, and the points that did not fit any cluster.
func Profile(points []Point, cfg Config) ([]Cluster, []Point) {
	if len(points) == 0 {
		return nil, nil
	}
	def := DefaultConfig()
	if cfg.NumClusters <= 0 {
		cfg.NumClusters = def.NumClusters
	}
	if cfg.MinClusterSize <= 0 {
		cfg.MinClusterSize = def.MinClusterSize
	}

	if len(points) < cfg.NumClusters {
		return nil, slices.Clone(points)
	}

	var obs clusters.Observations
	for i := range points {
		p := &points[i]
		obs = append(obs, pointObservation{point: p, coords: coordinates(p)})
	}

	km := kmeans.New()
	result, err := km.Partition(obs, cfg.NumClusters)
	if err != nil {
		slog.Warn("k-means clustering failed", "error", err)
		return nil, slices.Clone(points)
	}

	var out []Cluster
	var outliers []Point
	clustered := 0
	for _, c := range result {
		var members []Point
		for _, o := range c.Observations {
			if po, ok := o.(pointObservation); ok {
				members = append(members, *po.point)
			}
		}
		if len(members) < cfg.MinClusterSize {
			outliers = append(outliers, members...)
			continue
		}

		slices.SortFunc(members, func(a, b Point) int {
			return a.PlayedAt.Compare(b.PlayedAt)
		})

		centroid := centroidOf(members)
		mood := describe(centroid)

		out = append(out, Cluster{
			Name:        mood.Name,
			Category:    mood.Category,
			Description: mood.Description,
			Centroid:    centroid,
			Points:      members,
			Size:        len(members),
			First:       members[0].PlayedAt,
			Last:        members[len(members)-1].PlayedAt,
		})
		clustered += len(members)
	}

	for i := range out {
		out[i].Share = float64(out[i].Size) / float64(clustered)
	}
	slices.SortFunc(out, func(a, b Cluster) int {
		return b.Size - a.Size
	})
	return out, outliers
}

// centroidOf is the mean of the members' coordinates. The partition's own
// Center is only refreshed when points move between clusters, so it can
// still hold the random seed.
func centroidOf(members []Point) map[string]float64 {
	sums := make(clusters.Coordinates, len(featureNames))
	for i := range members {
		for d, v := range coordinates(&members[i]) {
			sums[d] += v
		}
	}
	centroid := make(map[string]float64, len(featureNames))
	for d, name := range featureNames {
		centroid[name] = sums[d] / float64(len(members))
	}
	return centroid
}
