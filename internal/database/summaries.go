package database

import (
	"context"
	"fmt"
	"time"
)

// Summary holds the generated summary and the model that produced it.
// Exactly one per stream; a rerun replaces the previous text.
type Summary struct {
	ID        int64     `json:"id"`
	StreamID  int64     `json:"stream_id"`
	Model     *string   `json:"model"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveSummary stores the summary for a stream and marks the stream completed,
// in one transaction. This is the pipeline's final step.
func (db *DB) SaveSummary(ctx context.Context, streamID int64, text, model string) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO summaries (stream_id, text, model)
		VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (stream_id) DO UPDATE
			SET text = EXCLUDED.text, model = EXCLUDED.model, created_at = now()
	`, streamID, text, model)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE streams SET status = $2, updated_at = now() WHERE id = $1
	`, streamID, StatusCompleted)
	if err != nil {
		return fmt.Errorf("update stream status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetSummary returns the summary for a stream, or pgx.ErrNoRows.
func (db *DB) GetSummary(ctx context.Context, streamID int64) (*Summary, error) {
	var s Summary
	err := db.Pool.QueryRow(ctx, `
		SELECT id, stream_id, model, text, created_at
		FROM summaries
		WHERE stream_id = $1
	`, streamID).Scan(&s.ID, &s.StreamID, &s.Model, &s.Text, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
