package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/moodlens/internal/emotion"
	"github.com/justestif/moodlens/internal/model"
)

// DescriptorRepository handles audio descriptor operations.
type DescriptorRepository struct {
	pool *pgxpool.Pool
}

// UpsertBatch stores descriptors keyed by track ID. The last write wins.
func (r *DescriptorRepository) UpsertBatch(ctx context.Context, ds []model.Descriptor) error {
	if len(ds) == 0 {
		return nil
	}

	query := `
		INSERT INTO descriptors (track_id, duration_ms, valence, energy, danceability,
			acousticness, speechiness, tempo, loudness, mode, updated_at)
		SELECT *, NOW() FROM unnest($1::text[], $2::int[], $3::float8[], $4::float8[], $5::float8[],
			$6::float8[], $7::float8[], $8::float8[], $9::float8[], $10::int[])
		ON CONFLICT (track_id) DO UPDATE SET
			duration_ms = EXCLUDED.duration_ms,
			valence = EXCLUDED.valence,
			energy = EXCLUDED.energy,
			danceability = EXCLUDED.danceability,
			acousticness = EXCLUDED.acousticness,
			speechiness = EXCLUDED.speechiness,
			tempo = EXCLUDED.tempo,
			loudness = EXCLUDED.loudness,
			mode = EXCLUDED.mode,
			updated_at = NOW()
	`

	n := len(ds)
	ids := make([]string, n)
	durations := make([]*int, n)
	valences := make([]*float64, n)
	energies := make([]*float64, n)
	dance := make([]*float64, n)
	acoustic := make([]*float64, n)
	speech := make([]*float64, n)
	tempos := make([]*float64, n)
	loudness := make([]*float64, n)
	modes := make([]*int, n)
	for i, d := range ds {
		ids[i] = d.TrackID
		durations[i] = d.DurationMs
		valences[i] = d.Valence
		energies[i] = d.Energy
		dance[i] = d.Danceability
		acoustic[i] = d.Acousticness
		speech[i] = d.Speechiness
		tempos[i] = d.Tempo
		loudness[i] = d.Loudness
		modes[i] = d.Mode
	}

	_, err := r.pool.Exec(ctx, query, ids, durations, valences, energies, dance, acoustic, speech, tempos, loudness, modes)
	if err != nil {
		return fmt.Errorf("batch upserting descriptors: %w", err)
	}
	return nil
}

// CutSamples returns one sample per play of the user whose track has known
// valence and energy.
func (r *DescriptorRepository) CutSamples(ctx context.Context, userID string) ([]emotion.Sample, error) {
	query := `
		SELECT d.valence, d.energy, d.acousticness, d.tempo, d.loudness
		FROM events e
		JOIN descriptors d ON d.track_id = e.track_id
		WHERE e.user_id = $1 AND d.valence IS NOT NULL AND d.energy IS NOT NULL
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying cut samples: %w", err)
	}
	defer rows.Close()

	var samples []emotion.Sample
	for rows.Next() {
		var raw emotion.RawFeatures
		if err := rows.Scan(&raw.Valence, &raw.Energy, &raw.Acousticness, &raw.Tempo, &raw.Loudness); err != nil {
			return nil, fmt.Errorf("scanning cut sample: %w", err)
		}
		samples = append(samples, emotion.SampleOf(emotion.Normalize(raw, emotion.ClassifierDefaults())))
	}
	return samples, rows.Err()
}
