package ai

import (
	"encoding/json"
	"strings"

	"github.com/justestif/moodlens/internal/emotion"
)

const instructions = `You are an expert music mood analyst. Classify the song's overall emotional category using ONLY the provided metadata and audio features.
Return JSON with keys: category, moodScore.
Categories must be one of exactly: "Excited/Happy", "Calm/Content", "Sad/Melancholic", "Tense/Angry", "Neutral".
moodScore must be a number from 0 to 1 (0 = very negative, 1 = very positive).

Mapping guidance:
- High valence (>= 0.6) and high energy (>= 0.6) -> "Excited/Happy"
- High valence (>= 0.6) and low energy (< 0.6) -> "Calm/Content"
- Low valence (< 0.4) and high energy (>= 0.6) -> "Tense/Angry"
- Low valence (< 0.4) and low energy (< 0.6) -> "Sad/Melancholic"
- Otherwise -> "Neutral"
Use other features (danceability, speechiness, acousticness, tempo, loudness, mode) and tags only to disambiguate near-threshold cases. Do not invent categories beyond the list. Always follow the mapping guidance when valence and energy clearly indicate a bucket.`

type promptFeatures struct {
	Valence      float64  `json:"valence"`
	Energy       float64  `json:"energy"`
	Danceability float64  `json:"danceability"`
	Speechiness  float64  `json:"speechiness"`
	Acousticness float64  `json:"acousticness"`
	Tempo        float64  `json:"tempo"`
	Loudness     *float64 `json:"loudness,omitempty"`
	Mode         int      `json:"mode"`
}

// buildInput renders the user message for one track.
func buildInput(meta TrackMeta, f emotion.Features) string {
	var b strings.Builder
	if meta.Name != "" {
		b.WriteString("Track: " + meta.Name + "\n")
	}
	if len(meta.Artists) > 0 {
		b.WriteString("Artists: " + strings.Join(meta.Artists, ", ") + "\n")
	}
	if len(meta.Tags) > 0 {
		b.WriteString("Tags: " + strings.Join(meta.Tags, ", ") + "\n")
	}
	features, _ := json.Marshal(promptFeatures{
		Valence:      f.Valence,
		Energy:       f.Energy,
		Danceability: f.Danceability,
		Speechiness:  f.Speechiness,
		Acousticness: f.Acousticness,
		Tempo:        f.Tempo,
		Loudness:     f.Loudness,
		Mode:         f.Mode,
	})
	b.WriteString("Audio features: ")
	b.Write(features)
	b.WriteString("\n\nRespond as JSON like: {\"category\":\"Calm/Content\",\"moodScore\":0.64}")
	return b.String()
}
