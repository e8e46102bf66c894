package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/moodlens/internal/model"
)

// ClassificationRepository handles classification operations.
type ClassificationRepository struct {
	pool *pgxpool.Pool
}

// Upsert creates or replaces the classification for an event and reports
// whether a new row was created.
func (r *ClassificationRepository) Upsert(ctx context.Context, c model.Classification) (bool, error) {
	query := `
		INSERT INTO classifications (event_id, label, category, valence, arousal, mood, confidence, method, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (event_id) DO UPDATE SET
			label = EXCLUDED.label,
			category = EXCLUDED.category,
			valence = EXCLUDED.valence,
			arousal = EXCLUDED.arousal,
			mood = EXCLUDED.mood,
			confidence = EXCLUDED.confidence,
			method = EXCLUDED.method,
			updated_at = NOW()
		RETURNING (xmax = 0)
	`
	var created bool
	err := r.pool.QueryRow(ctx, query,
		c.EventID,
		string(c.Label),
		string(c.Category),
		c.Valence,
		c.Arousal,
		c.Mood,
		c.Confidence,
		string(c.Method),
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("upserting classification: %w", err)
	}
	return created, nil
}
