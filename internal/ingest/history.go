// Package ingest parses exported listening history into records ready for storage.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// ErrEmpty is returned when an export contains no playable tracks.
var ErrEmpty = errors.New("no track plays in export")

// trackURIPrefix marks catalog track URIs; episodes and local files lack it.
const trackURIPrefix = "spotify:track:"

// entry is one element of a streaming history export.
type entry struct {
	TS        string  `json:"ts"`
	MsPlayed  int     `json:"ms_played"`
	TrackName *string `json:"master_metadata_track_name"`
	Artist    *string `json:"master_metadata_album_artist_name"`
	Album     *string `json:"master_metadata_album_album_name"`
	TrackURI  *string `json:"spotify_track_uri"`
}

// Record is one track play taken from an export or a recent-plays sync.
type Record struct {
	PlayedAt  time.Time
	MsPlayed  int
	TrackID   string
	TrackName string
	Artist    string
	Album     string

	// DurationMs is the full track length, 0 when unknown.
	DurationMs int
}

// ParseStreamingHistory reads a JSON array in the extended streaming history
// format. Entries without a track name or catalog URI are dropped, and
// duplicates of the same track at the same instant are collapsed. Records
// are returned in play order.
func ParseStreamingHistory(r io.Reader) ([]Record, error) {
	var entries []entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding streaming history: %w", err)
	}

	seen := make(map[string]bool, len(entries))
	records := make([]Record, 0, len(entries))
	for i, e := range entries {
		if e.TrackName == nil || *e.TrackName == "" || e.TrackURI == nil {
			continue
		}
		id, ok := strings.CutPrefix(*e.TrackURI, trackURIPrefix)
		if !ok || id == "" {
			continue
		}
		playedAt, err := time.Parse(time.RFC3339, e.TS)
		if err != nil {
			return nil, fmt.Errorf("entry %d: invalid timestamp %q: %w", i, e.TS, err)
		}
		if e.MsPlayed < 0 {
			return nil, fmt.Errorf("entry %d: negative ms_played %d", i, e.MsPlayed)
		}

		key := e.TS + "|" + id
		if seen[key] {
			continue
		}
		seen[key] = true

		rec := Record{
			PlayedAt:  playedAt.UTC(),
			MsPlayed:  e.MsPlayed,
			TrackID:   id,
			TrackName: *e.TrackName,
		}
		if e.Artist != nil {
			rec.Artist = *e.Artist
		}
		if e.Album != nil {
			rec.Album = *e.Album
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].PlayedAt.Before(records[j].PlayedAt) })
	return records, nil
}
