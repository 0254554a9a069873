package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Stream statuses. Failed statuses carry the error text after the prefix,
// e.g. "failed: whisper: connection refused".
const (
	StatusPending      = "pending"
	StatusProcessing   = "processing"
	StatusCompleted    = "completed"
	StatusFailedPrefix = "failed: "
)

// ErrNoMediaURL is returned when a webhook payload yields no downloadable URL.
var ErrNoMediaURL = errors.New("no media URL resolvable from payload")

// Stream is one recording's unit of work and its lifecycle state.
type Stream struct {
	ID         int64      `json:"id"`
	ExternalID *string    `json:"external_id"`
	Title      *string    `json:"title"`
	MediaURL   string     `json:"media_url"`
	Status     string     `json:"status"`
	Language   *string    `json:"language"`
	StartedAt  *time.Time `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// StreamUpsert is the normalized webhook input to the resolver.
type StreamUpsert struct {
	ExternalID string
	Title      string
	MediaURL   string
	StartedAt  *time.Time
	EndedAt    *time.Time
}

const streamColumns = `id, external_id, title, media_url, status, language,
	started_at, ended_at, created_at, updated_at`

func scanStream(row pgx.Row) (*Stream, error) {
	var s Stream
	err := row.Scan(
		&s.ID, &s.ExternalID, &s.Title, &s.MediaURL, &s.Status, &s.Language,
		&s.StartedAt, &s.EndedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ResolveStream deduplicates a webhook delivery onto a single stream row,
// in one transaction:
//  1. Look up by external_id when the payload carries one.
//  2. Else, or on miss, look up by exact media_url.
//  3. On hit, merge asymmetrically: external_id and title are filled in only
//     when the existing row has none; media_url, started_at/ended_at (when
//     supplied) and status are always overwritten, with status forced back to
//     "pending" so the pipeline is re-armed.
//  4. On miss, insert a fresh row with status "pending".
//
// Two deliveries for the same external_id racing each other can both miss the
// lookup and insert duplicate rows; there is no unique constraint guarding
// this (see schema.sql).
func (db *DB) ResolveStream(ctx context.Context, up StreamUpsert) (*Stream, error) {
	if up.MediaURL == "" {
		return nil, ErrNoMediaURL
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var existing *Stream
	if up.ExternalID != "" {
		existing, err = scanStream(tx.QueryRow(ctx, `
			SELECT `+streamColumns+` FROM streams
			WHERE external_id = $1
			ORDER BY created_at DESC
			LIMIT 1
		`, up.ExternalID))
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("lookup by external_id: %w", err)
		}
	}
	if existing == nil {
		existing, err = scanStream(tx.QueryRow(ctx, `
			SELECT `+streamColumns+` FROM streams
			WHERE media_url = $1
			ORDER BY created_at DESC
			LIMIT 1
		`, up.MediaURL))
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("lookup by media_url: %w", err)
		}
	}

	var resolved *Stream
	if existing != nil {
		m := mergeStream(existing, up)
		resolved, err = scanStream(tx.QueryRow(ctx, `
			UPDATE streams SET
				external_id = $2,
				title = $3,
				media_url = $4,
				status = $5,
				started_at = $6,
				ended_at = $7,
				updated_at = now()
			WHERE id = $1
			RETURNING `+streamColumns+`
		`, existing.ID, m.ExternalID, m.Title, up.MediaURL, StatusPending, m.StartedAt, m.EndedAt))
		if err != nil {
			return nil, fmt.Errorf("update stream: %w", err)
		}
	} else {
		resolved, err = scanStream(tx.QueryRow(ctx, `
			INSERT INTO streams (external_id, title, media_url, status, started_at, ended_at)
			VALUES (NULLIF($1, ''), NULLIF($2, ''), $3, $4, $5, $6)
			RETURNING `+streamColumns+`
		`, up.ExternalID, up.Title, up.MediaURL, StatusPending, up.StartedAt, up.EndedAt))
		if err != nil {
			return nil, fmt.Errorf("insert stream: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return resolved, nil
}

// mergedStream holds the column values a resolver update writes. media_url
// and status are not merged: the delivery's media_url always wins and status
// is always forced back to pending.
type mergedStream struct {
	ExternalID *string
	Title      *string
	StartedAt  *time.Time
	EndedAt    *time.Time
}

// mergeStream applies the asymmetric merge rules for a redelivery landing on
// an existing row: external_id and title are filled in only when the row has
// none, while started_at and ended_at are overwritten whenever the delivery
// supplies them.
func mergeStream(existing *Stream, up StreamUpsert) mergedStream {
	m := mergedStream{
		ExternalID: existing.ExternalID,
		Title:      existing.Title,
		StartedAt:  existing.StartedAt,
		EndedAt:    existing.EndedAt,
	}
	if (m.ExternalID == nil || *m.ExternalID == "") && up.ExternalID != "" {
		m.ExternalID = &up.ExternalID
	}
	if (m.Title == nil || *m.Title == "") && up.Title != "" {
		m.Title = &up.Title
	}
	if up.StartedAt != nil {
		m.StartedAt = up.StartedAt
	}
	if up.EndedAt != nil {
		m.EndedAt = up.EndedAt
	}
	return m
}

// GetStream returns a stream by id, or pgx.ErrNoRows.
func (db *DB) GetStream(ctx context.Context, id int64) (*Stream, error) {
	return scanStream(db.Pool.QueryRow(ctx, `
		SELECT `+streamColumns+` FROM streams WHERE id = $1
	`, id))
}

// ListStreams returns all streams ordered by creation time, newest first.
func (db *DB) ListStreams(ctx context.Context) ([]Stream, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+streamColumns+` FROM streams
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Stream
	for rows.Next() {
		s, err := scanStream(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if result == nil {
		result = []Stream{}
	}
	return result, rows.Err()
}

// SetStreamStatus updates a stream's status and touches updated_at.
func (db *DB) SetStreamStatus(ctx context.Context, id int64, status string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE streams SET status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("stream %d not found", id)
	}
	return nil
}
