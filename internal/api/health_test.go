package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/snarg/stream-scribe/internal/pipeline"
)

type fakePinger struct{ err error }

func (f *fakePinger) HealthCheck(ctx context.Context) error { return f.err }

type fakeStatser struct{ stats pipeline.QueueStats }

func (f *fakeStatser) Stats() pipeline.QueueStats { return f.stats }

func TestHealthHandler(t *testing.T) {
	h := NewHealthHandler(&fakePinger{}, &fakeStatser{stats: pipeline.QueueStats{Pending: 1, Completed: 5}}, "1.2.3", time.Now().Add(-time.Minute))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "healthy" {
		t.Errorf("status = %q, want healthy", got.Status)
	}
	if got.Version != "1.2.3" {
		t.Errorf("version = %q", got.Version)
	}
	if got.Checks["database"] != "ok" || got.Checks["workers"] != "ok" {
		t.Errorf("checks = %v", got.Checks)
	}
	if got.Queue.Pending != 1 || got.Queue.Completed != 5 {
		t.Errorf("queue = %+v", got.Queue)
	}
	if got.UptimeSeconds < 59 {
		t.Errorf("uptime = %d, want at least a minute", got.UptimeSeconds)
	}
}

func TestHealthHandlerDatabaseDown(t *testing.T) {
	h := NewHealthHandler(&fakePinger{err: fmt.Errorf("connection refused")}, &fakeStatser{}, "dev", time.Now())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var got HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "unhealthy" || got.Checks["database"] != "error" {
		t.Errorf("response = %+v", got)
	}
}
