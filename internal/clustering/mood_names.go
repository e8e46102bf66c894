package clustering

import "github.com/justestif/moodlens/internal/emotion"

// acousticThreshold marks a cluster as predominantly acoustic.
const acousticThreshold = 0.6

// MoodDescription names a cluster for display.
type MoodDescription struct {
	Name        string
	Category    emotion.Category
	Description string
}

var moodNames = map[emotion.Category]MoodDescription{
	emotion.CategoryHappy: {
		Name:        "Upbeat Party",
		Description: "High-energy, positive vibes - perfect for dancing and celebrations",
	},
	emotion.CategoryCalm: {
		Name:        "Chill & Happy",
		Description: "Relaxed and uplifting - great for unwinding",
	},
	emotion.CategorySad: {
		Name:        "Reflective & Melancholy",
		Description: "Contemplative and introspective - ideal for quiet moments",
	},
	emotion.CategoryTense: {
		Name:        "Intense & Dark",
		Description: "Intense, driving energy with darker emotional tones",
	},
	emotion.CategoryNeutral: {
		Name:        "Balanced",
		Description: "Middle of the road - neither strongly positive nor energetic",
	},
}

// describe names a centroid by classifying it like a single track.
// Acousticness above 0.6 adds an "(Acoustic)" modifier.
func describe(centroid map[string]float64) MoodDescription {
	r := emotion.Classify(emotion.Features{
		Valence:      centroid["valence"],
		Arousal:      centroid["arousal"],
		Danceability: centroid["danceability"],
		Acousticness: centroid["acousticness"],
	})
	d := moodNames[r.Category]
	d.Category = r.Category
	if centroid["acousticness"] > acousticThreshold {
		d.Name += " (Acoustic)"
	}
	return d
}
