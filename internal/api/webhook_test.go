package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/stream-scribe/internal/database"
	"github.com/snarg/stream-scribe/internal/pipeline"
	"github.com/snarg/stream-scribe/internal/webhook"
)

type fakeResolver struct {
	upserts []database.StreamUpsert
	stream  *database.Stream
	err     error
}

func (f *fakeResolver) ResolveStream(ctx context.Context, up database.StreamUpsert) (*database.Stream, error) {
	f.upserts = append(f.upserts, up)
	if f.err != nil {
		return nil, f.err
	}
	if up.MediaURL == "" {
		return nil, database.ErrNoMediaURL
	}
	if f.stream != nil {
		return f.stream, nil
	}
	return &database.Stream{ID: 1, MediaURL: up.MediaURL, Status: database.StatusPending}, nil
}

type fakeQueue struct {
	jobs []pipeline.Job
	full bool
}

func (f *fakeQueue) Enqueue(j pipeline.Job) bool {
	if f.full {
		return false
	}
	f.jobs = append(f.jobs, j)
	return true
}

func newWebhookRouter(resolver StreamResolver, queue JobQueue, secret string) *chi.Mux {
	r := chi.NewRouter()
	NewWebhookHandler(resolver, queue, secret, zerolog.Nop()).Routes(r)
	return r
}

func postWebhook(t *testing.T, h http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhook/restream", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookAccepted(t *testing.T) {
	resolver := &fakeResolver{}
	queue := &fakeQueue{}
	r := newWebhookRouter(resolver, queue, "")

	rec := postWebhook(t, r, `{"event":"recording.ready","stream_id":"abc123","media_url":"https://cdn.example/x.mp4"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "accepted" {
		t.Errorf("body = %q, want accepted", rec.Body.String())
	}
	if len(queue.jobs) != 1 {
		t.Fatalf("enqueued jobs = %d, want 1", len(queue.jobs))
	}
	if queue.jobs[0].StreamID != 1 {
		t.Errorf("job stream id = %d, want 1", queue.jobs[0].StreamID)
	}
}

func TestWebhookIgnoredEvent(t *testing.T) {
	resolver := &fakeResolver{}
	queue := &fakeQueue{}
	r := newWebhookRouter(resolver, queue, "")

	rec := postWebhook(t, r, `{"event":"stream.started","media_url":"https://cdn.example/x.mp4"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ignored" {
		t.Errorf("body = %q, want ignored", rec.Body.String())
	}
	if len(resolver.upserts) != 0 {
		t.Error("resolver called for a filtered event")
	}
	if len(queue.jobs) != 0 {
		t.Error("job enqueued for a filtered event")
	}
}

func TestWebhookUnparsableBody(t *testing.T) {
	r := newWebhookRouter(&fakeResolver{}, &fakeQueue{}, "")
	rec := postWebhook(t, r, "not json at all", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWebhookNoMediaURL(t *testing.T) {
	r := newWebhookRouter(&fakeResolver{}, &fakeQueue{}, "")
	rec := postWebhook(t, r, `{"event":"recording.ready","stream_id":"abc123"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "media_url") {
		t.Errorf("body = %q, want media_url mention", rec.Body.String())
	}
}

func TestWebhookSignature(t *testing.T) {
	const secret = "s3cret"
	body := `{"media_url":"https://cdn.example/x.mp4"}`

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	goodSig := hex.EncodeToString(mac.Sum(nil))

	t.Run("valid", func(t *testing.T) {
		r := newWebhookRouter(&fakeResolver{}, &fakeQueue{}, secret)
		rec := postWebhook(t, r, body, map[string]string{webhook.SignatureHeader: goodSig})
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
		}
	})

	t.Run("missing_header", func(t *testing.T) {
		r := newWebhookRouter(&fakeResolver{}, &fakeQueue{}, secret)
		rec := postWebhook(t, r, body, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("wrong_signature", func(t *testing.T) {
		r := newWebhookRouter(&fakeResolver{}, &fakeQueue{}, secret)
		rec := postWebhook(t, r, body, map[string]string{webhook.SignatureHeader: "deadbeef"})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("no_secret_skips_check", func(t *testing.T) {
		r := newWebhookRouter(&fakeResolver{}, &fakeQueue{}, "")
		rec := postWebhook(t, r, body, map[string]string{webhook.SignatureHeader: "anything"})
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}

func TestWebhookQueueFull(t *testing.T) {
	r := newWebhookRouter(&fakeResolver{}, &fakeQueue{full: true}, "")
	rec := postWebhook(t, r, `{"media_url":"https://cdn.example/x.mp4"}`, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestWebhookUpsertFields(t *testing.T) {
	resolver := &fakeResolver{}
	r := newWebhookRouter(resolver, &fakeQueue{}, "")

	postWebhook(t, r, `{"event":"recording.ready","data":{"streamId":"abc123","recordingUrl":"https://cdn.example/x.mp4","title":"Launch Day"}}`, nil)

	if len(resolver.upserts) != 1 {
		t.Fatalf("resolver calls = %d, want 1", len(resolver.upserts))
	}
	up := resolver.upserts[0]
	if up.ExternalID != "abc123" || up.MediaURL != "https://cdn.example/x.mp4" || up.Title != "Launch Day" {
		t.Errorf("upsert = %+v", up)
	}
}
