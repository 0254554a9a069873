package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/stream-scribe/internal/database"
	"github.com/snarg/stream-scribe/internal/metrics"
	"github.com/snarg/stream-scribe/internal/pipeline"
	"github.com/snarg/stream-scribe/internal/webhook"
)

// StreamResolver upserts a canonical stream row from a normalized payload.
// *database.DB implements it.
type StreamResolver interface {
	ResolveStream(ctx context.Context, up database.StreamUpsert) (*database.Stream, error)
}

// JobQueue accepts processing jobs. *pipeline.WorkerPool implements it.
type JobQueue interface {
	Enqueue(j pipeline.Job) bool
}

// WebhookHandler ingests recording-ready notifications.
type WebhookHandler struct {
	resolver StreamResolver
	queue    JobQueue
	secret   string
	log      zerolog.Logger
}

// NewWebhookHandler creates a new webhook handler. An empty secret disables
// signature verification.
func NewWebhookHandler(resolver StreamResolver, queue JobQueue, secret string, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		resolver: resolver,
		queue:    queue,
		secret:   secret,
		log:      log.With().Str("handler", "webhook").Logger(),
	}
}

// Routes registers the webhook endpoint.
func (h *WebhookHandler) Routes(r chi.Router) {
	r.Post("/webhook/{provider}", h.Receive)
}

// Receive handles POST /webhook/{provider}.
// Signature verification runs against the exact raw bytes, before parsing.
// Filtered events are acknowledged "ignored" with no side effect; accepted
// ones upsert a stream (status reset to pending) and schedule a processing
// job. Pipeline failures are never surfaced here; callers poll the stream
// detail endpoint.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if !webhook.VerifySignature(h.secret, body, r.Header.Get(webhook.SignatureHeader)) {
		metrics.WebhooksTotal.WithLabelValues("rejected").Inc()
		WriteError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	p, err := webhook.Normalize(body)
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues("rejected").Inc()
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !p.Ready() {
		metrics.WebhooksTotal.WithLabelValues("ignored").Inc()
		h.log.Debug().Str("provider", provider).Str("event", p.Event).Msg("webhook event filtered out")
		WriteText(w, http.StatusOK, "ignored")
		return
	}

	stream, err := h.resolver.ResolveStream(r.Context(), database.StreamUpsert{
		ExternalID: p.StreamID,
		Title:      p.Title,
		MediaURL:   p.MediaURL,
		StartedAt:  p.StartedAt,
		EndedAt:    p.EndedAt,
	})
	if err != nil {
		if errors.Is(err, database.ErrNoMediaURL) {
			metrics.WebhooksTotal.WithLabelValues("rejected").Inc()
			WriteError(w, http.StatusBadRequest, "missing media_url / recording_url in payload")
			return
		}
		h.log.Error().Err(err).Str("provider", provider).Msg("stream resolve failed")
		WriteError(w, http.StatusInternalServerError, "failed to persist stream")
		return
	}

	if !h.queue.Enqueue(pipeline.Job{StreamID: stream.ID, MediaURL: stream.MediaURL}) {
		// The stream row is already reset to pending; a redelivery will
		// pick it up once the queue drains.
		metrics.WebhooksTotal.WithLabelValues("rejected").Inc()
		h.log.Warn().Int64("stream_id", stream.ID).Msg("processing queue full, webhook dropped")
		WriteError(w, http.StatusServiceUnavailable, "processing queue full")
		return
	}

	metrics.WebhooksTotal.WithLabelValues("accepted").Inc()
	h.log.Info().
		Str("provider", provider).
		Int64("stream_id", stream.ID).
		Str("media_url", stream.MediaURL).
		Msg("webhook accepted")
	WriteText(w, http.StatusOK, "accepted")
}
