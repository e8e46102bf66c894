package clustering

import (
	"fmt"
	"strings"
)

const (
	sampleTrackCount = 3
	dateFormat       = "2006-01-02"
)

// FormatSummary returns a human-readable summary of mood clusters.
// Shows date range, play count, share and the first 3 distinct tracks for
// each cluster. Outliers are summarized by count only.
func FormatSummary(profile []Cluster, outliers []Point) string {
	var sb strings.Builder

	total := len(outliers)
	for _, c := range profile {
		total += c.Size
	}

	if len(profile) == 0 {
		sb.WriteString(fmt.Sprintf("No mood clusters found from %d plays", total))
		if len(outliers) > 0 {
			sb.WriteString(fmt.Sprintf(" (%d outliers skipped)", len(outliers)))
		}
		sb.WriteString("\n")
		return sb.String()
	}

	word := "cluster"
	if len(profile) > 1 {
		word = "clusters"
	}
	sb.WriteString(fmt.Sprintf("Found %d mood %s from %d plays", len(profile), word, total))
	if len(outliers) > 0 {
		sb.WriteString(fmt.Sprintf(" (%d outliers skipped)", len(outliers)))
	}
	sb.WriteString("\n")

	for i, c := range profile {
		sb.WriteString("\n")
		sb.WriteString(formatCluster(i+1, c))
	}
	return sb.String()
}

func formatCluster(num int, c Cluster) string {
	var sb strings.Builder

	playWord := "play"
	if c.Size > 1 {
		playWord = "plays"
	}
	sb.WriteString(fmt.Sprintf("%d. %s [%s]: %s to %s (%d %s, %.0f%%)\n",
		num, c.Name, c.Category, c.First.Format(dateFormat), c.Last.Format(dateFormat),
		c.Size, playWord, c.Share*100))

	var tracks []Point
	seen := make(map[string]bool)
	for _, p := range c.Points {
		if !seen[p.TrackID] {
			seen[p.TrackID] = true
			tracks = append(tracks, p)
		}
	}
	for _, p := range tracks[:min(sampleTrackCount, len(tracks))] {
		sb.WriteString(fmt.Sprintf("  • \"%s\" - %s\n", p.Name, p.Artist))
	}
	if remaining := len(tracks) - sampleTrackCount; remaining > 0 {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", remaining))
	}
	return sb.String()
}
