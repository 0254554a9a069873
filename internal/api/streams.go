package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/snarg/stream-scribe/internal/database"
)

// StreamStore is the read surface for the query endpoints. *database.DB
// implements it.
type StreamStore interface {
	ListStreams(ctx context.Context) ([]database.Stream, error)
	GetStream(ctx context.Context, id int64) (*database.Stream, error)
	GetTranscript(ctx context.Context, streamID int64) (*database.Transcript, error)
	GetSummary(ctx context.Context, streamID int64) (*database.Summary, error)
}

// StreamDetail is a stream plus its transcript and summary text when present.
type StreamDetail struct {
	database.Stream
	TranscriptText *string `json:"transcript_text"`
	SummaryText    *string `json:"summary_text"`
}

// StreamsHandler serves the stream query endpoints.
type StreamsHandler struct {
	store StreamStore
}

func NewStreamsHandler(store StreamStore) *StreamsHandler {
	return &StreamsHandler{store: store}
}

func (h *StreamsHandler) Routes(r chi.Router) {
	r.Get("/streams", h.List)
	r.Get("/streams/{id}", h.Get)
	r.Get("/streams/{id}/transcript.txt", h.Transcript)
	r.Get("/streams/{id}/summary.txt", h.Summary)
}

// List returns all streams, newest first.
func (h *StreamsHandler) List(w http.ResponseWriter, r *http.Request) {
	streams, err := h.store.ListStreams(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list streams")
		return
	}
	WriteJSON(w, http.StatusOK, streams)
}

// Get returns full stream detail including transcript and summary text.
func (h *StreamsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := PathInt64(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid stream ID")
		return
	}

	stream, err := h.store.GetStream(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			WriteError(w, http.StatusNotFound, "stream not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "failed to load stream")
		return
	}

	detail := StreamDetail{Stream: *stream}
	if t, err := h.store.GetTranscript(r.Context(), id); err == nil {
		detail.TranscriptText = &t.Text
	}
	if s, err := h.store.GetSummary(r.Context(), id); err == nil {
		detail.SummaryText = &s.Text
	}

	WriteJSON(w, http.StatusOK, detail)
}

// Transcript returns the raw transcript text.
func (h *StreamsHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	id, err := PathInt64(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid stream ID")
		return
	}

	t, err := h.store.GetTranscript(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "transcript not found")
		return
	}
	WriteText(w, http.StatusOK, t.Text)
}

// Summary returns the raw summary text.
func (h *StreamsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id, err := PathInt64(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid stream ID")
		return
	}

	s, err := h.store.GetSummary(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "summary not found")
		return
	}
	WriteText(w, http.StatusOK, s.Text)
}
