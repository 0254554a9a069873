package api

import (
	"context"
	"net/http"
	"time"

	"github.com/snarg/stream-scribe/internal/pipeline"
)

// Pinger checks backing-store liveness. *database.DB implements it.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// QueueStatser exposes processing queue state. *pipeline.WorkerPool
// implements it.
type QueueStatser interface {
	Stats() pipeline.QueueStats
}

type HealthResponse struct {
	Status        string              `json:"status"`
	Version       string              `json:"version"`
	UptimeSeconds int64               `json:"uptime_seconds"`
	Checks        map[string]string   `json:"checks"`
	Queue         pipeline.QueueStats `json:"queue"`
}

type HealthHandler struct {
	db        Pinger
	queue     QueueStatser
	version   string
	startTime time.Time
}

func NewHealthHandler(db Pinger, queue QueueStatser, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		db:        db,
		queue:     queue,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.db.HealthCheck(r.Context()); err != nil {
		checks["database"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	var queue pipeline.QueueStats
	if h.queue != nil {
		queue = h.queue.Stats()
		checks["workers"] = "ok"
	} else {
		checks["workers"] = "not_configured"
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
		Queue:         queue,
	})
}
