package database

import (
	"context"
	"fmt"
	"time"
)

// Transcript holds the full text produced by the transcription stage.
// Exactly one per stream; a rerun replaces the previous text.
type Transcript struct {
	ID        int64     `json:"id"`
	StreamID  int64     `json:"stream_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveTranscript stores the transcript for a stream and records the detected
// language on the stream row, in one transaction. A replayed webhook reruns
// the pipeline, so an existing transcript is overwritten rather than
// duplicated.
func (db *DB) SaveTranscript(ctx context.Context, streamID int64, text, language string) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO transcripts (stream_id, text)
		VALUES ($1, $2)
		ON CONFLICT (stream_id) DO UPDATE
			SET text = EXCLUDED.text, created_at = now()
	`, streamID, text)
	if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE streams SET language = NULLIF($2, ''), updated_at = now()
		WHERE id = $1
	`, streamID, language)
	if err != nil {
		return fmt.Errorf("update stream language: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetTranscript returns the transcript for a stream, or pgx.ErrNoRows.
func (db *DB) GetTranscript(ctx context.Context, streamID int64) (*Transcript, error) {
	var t Transcript
	err := db.Pool.QueryRow(ctx, `
		SELECT id, stream_id, text, created_at
		FROM transcripts
		WHERE stream_id = $1
	`, streamID).Scan(&t.ID, &t.StreamID, &t.Text, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
