package ingest

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const export = `[
  {"ts": "2024-03-04T10:00:00Z", "ms_played": 180000,
   "master_metadata_track_name": "Sunny", "master_metadata_album_artist_name": "A",
   "master_metadata_album_album_name": "Days", "spotify_track_uri": "spotify:track:abc"},
  {"ts": "2024-03-04T09:00:00Z", "ms_played": 1000,
   "master_metadata_track_name": "Rain", "master_metadata_album_artist_name": "B",
   "master_metadata_album_album_name": null, "spotify_track_uri": "spotify:track:def"},
  {"ts": "2024-03-04T10:00:00Z", "ms_played": 180000,
   "master_metadata_track_name": "Sunny", "master_metadata_album_artist_name": "A",
   "master_metadata_album_album_name": "Days", "spotify_track_uri": "spotify:track:abc"},
  {"ts": "2024-03-04T11:00:00Z", "ms_played": 600000,
   "master_metadata_track_name": null, "spotify_track_uri": null},
  {"ts": "2024-03-04T12:00:00Z", "ms_played": 5000,
   "master_metadata_track_name": "Local", "spotify_track_uri": "spotify:local:x"}
]`

func TestParseStreamingHistory(t *testing.T) {
	recs, err := ParseStreamingHistory(strings.NewReader(export))
	if err != nil {
		t.Fatalf("ParseStreamingHistory() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2: %+v", len(recs), recs)
	}
	if recs[0].TrackID != "def" || recs[0].Album != "" {
		t.Errorf("first record = %+v, want Rain sorted first", recs[0])
	}
	want := Record{
		PlayedAt:  time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
		MsPlayed:  180000,
		TrackID:   "abc",
		TrackName: "Sunny",
		Artist:    "A",
		Album:     "Days",
	}
	if recs[1] != want {
		t.Errorf("second record = %+v, want %+v", recs[1], want)
	}
}

func TestParseStreamingHistory_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		empty bool
	}{
		{"not json", `{`, false},
		{"bad timestamp", `[{"ts":"yesterday","ms_played":1,"master_metadata_track_name":"x","spotify_track_uri":"spotify:track:x"}]`, false},
		{"negative duration", `[{"ts":"2024-03-04T10:00:00Z","ms_played":-1,"master_metadata_track_name":"x","spotify_track_uri":"spotify:track:x"}]`, false},
		{"only episodes", `[{"ts":"2024-03-04T10:00:00Z","ms_played":1}]`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStreamingHistory(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, ErrEmpty) != tt.empty {
				t.Errorf("error = %v, ErrEmpty expected %v", err, tt.empty)
			}
		})
	}
}
