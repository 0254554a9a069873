// Package pipeline runs the download → transcribe → summarize sequence for
// accepted streams on a bounded queue with a fixed worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/stream-scribe/internal/database"
	"github.com/snarg/stream-scribe/internal/metrics"
	"github.com/snarg/stream-scribe/internal/summarize"
	"github.com/snarg/stream-scribe/internal/transcribe"
)

// Job is one stream's processing unit, enqueued by the webhook handler.
type Job struct {
	StreamID int64
	MediaURL string
}

// QueueStats reports the current state of the processing queue. Skipped
// counts jobs whose stream row vanished before processing.
type QueueStats struct {
	Pending   int   `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Skipped   int64 `json:"skipped"`
}

// Store is the persistence surface the executor needs. *database.DB
// implements it.
type Store interface {
	GetStream(ctx context.Context, id int64) (*database.Stream, error)
	SetStreamStatus(ctx context.Context, id int64, status string) error
	SaveTranscript(ctx context.Context, streamID int64, text, language string) error
	SaveSummary(ctx context.Context, streamID int64, text, model string) error
}

// Archiver mirrors a downloaded file to long-term storage. May be nil.
type Archiver interface {
	Archive(ctx context.Context, key, localPath string) error
}

// WorkerPoolOptions configures the processing worker pool.
type WorkerPoolOptions struct {
	Store          Store
	Downloader     Downloader
	Transcriber    transcribe.Provider
	Summarizer     summarize.Summarizer
	Archiver       Archiver // optional
	MediaDir       string
	SummaryTimeout time.Duration
	Workers        int
	QueueSize      int
	Log            zerolog.Logger
}

// WorkerPool manages the stream processing workers. Jobs for different
// streams run concurrently; the five steps within a job are strictly
// sequential. A job runs at most once per webhook delivery: there is no
// retry, and a failure parks the stream in a terminal failed status until a
// fresh delivery resets it to pending.
type WorkerPool struct {
	jobs   chan Job
	opts   WorkerPoolOptions
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	completed atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
}

// NewWorkerPool creates a new processing worker pool.
func NewWorkerPool(opts WorkerPoolOptions) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobs:   make(chan Job, opts.QueueSize),
		opts:   opts,
		log:    opts.Log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.opts.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	wp.log.Info().Int("workers", wp.opts.Workers).Int("queue_size", wp.opts.QueueSize).Msg("processing worker pool started")
}

// Stop signals workers to drain and waits for completion. In-flight jobs run
// to their terminal status; queued jobs are processed before shutdown.
func (wp *WorkerPool) Stop() {
	close(wp.jobs)
	wp.wg.Wait()
	wp.cancel()
	wp.log.Info().
		Int64("completed", wp.completed.Load()).
		Int64("failed", wp.failed.Load()).
		Int64("skipped", wp.skipped.Load()).
		Msg("processing worker pool stopped")
}

// Enqueue adds a job to the processing queue. Returns false if the queue is full.
func (wp *WorkerPool) Enqueue(j Job) bool {
	select {
	case wp.jobs <- j:
		metrics.JobsEnqueuedTotal.Inc()
		return true
	default:
		return false
	}
}

// Stats returns current queue statistics.
func (wp *WorkerPool) Stats() QueueStats {
	return QueueStats{
		Pending:   len(wp.jobs),
		Completed: wp.completed.Load(),
		Failed:    wp.failed.Load(),
		Skipped:   wp.skipped.Load(),
	}
}

// Workers returns the number of worker goroutines.
func (wp *WorkerPool) Workers() int { return wp.opts.Workers }

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	log := wp.log.With().Int("worker", id).Logger()

	for job := range wp.jobs {
		skipped, err := wp.processJob(log, job)
		switch {
		case err != nil:
			wp.failed.Add(1)
			metrics.JobsTotal.WithLabelValues("failed").Inc()
			log.Warn().Err(err).
				Int64("stream_id", job.StreamID).
				Msg("stream processing failed")
		case skipped:
			wp.skipped.Add(1)
			metrics.JobsTotal.WithLabelValues("skipped").Inc()
		default:
			wp.completed.Add(1)
			metrics.JobsTotal.WithLabelValues("completed").Inc()
		}
	}
}

// processJob drives one stream through the status state machine:
// pending → processing → completed, or pending → processing → failed:<reason>.
// Terminal states are never re-entered here; only a fresh webhook delivery
// (resolver reset to pending) re-arms a stream. A stream deleted between
// enqueue and pickup is reported skipped, not failed.
func (wp *WorkerPool) processJob(log zerolog.Logger, job Job) (skipped bool, err error) {
	stream, err := wp.opts.Store.GetStream(wp.ctx, job.StreamID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Warn().Int64("stream_id", job.StreamID).Msg("stream vanished before processing, skipping")
			return true, nil
		}
		return false, fmt.Errorf("load stream: %w", err)
	}

	if err := wp.opts.Store.SetStreamStatus(wp.ctx, job.StreamID, database.StatusProcessing); err != nil {
		return false, fmt.Errorf("mark processing: %w", err)
	}

	if err := wp.run(log, job, stream); err != nil {
		wp.markFailed(log, job.StreamID, err)
		return false, err
	}

	log.Info().Int64("stream_id", job.StreamID).Msg("stream processing complete")
	return false, nil
}

// run executes the pipeline stages in order. Any error aborts the remaining
// stages; the caller persists the failed status.
func (wp *WorkerPool) run(log zerolog.Logger, job Job, stream *database.Stream) error {
	// 1. Download. Unbounded: no timeout on this stage.
	start := time.Now()
	localPath, err := wp.opts.Downloader.Download(wp.ctx, job.MediaURL, wp.opts.MediaDir)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	metrics.StageDuration.WithLabelValues("download").Observe(time.Since(start).Seconds())
	log.Debug().Int64("stream_id", job.StreamID).Str("path", localPath).Msg("media downloaded")

	// Best-effort archive mirror; never fails the job.
	if wp.opts.Archiver != nil {
		if err := wp.opts.Archiver.Archive(wp.ctx, FilenameFromURL(job.MediaURL), localPath); err != nil {
			log.Warn().Err(err).Int64("stream_id", job.StreamID).Msg("media archive failed")
		}
	}

	// 2. Transcribe. Long-running external call; runs on this worker
	// goroutine, off the request-serving path.
	start = time.Now()
	tr, err := wp.opts.Transcriber.Transcribe(wp.ctx, localPath, transcribe.TranscribeOpts{})
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}
	metrics.StageDuration.WithLabelValues("transcribe").Observe(time.Since(start).Seconds())

	// 3. Persist transcript + detected language.
	if err := wp.opts.Store.SaveTranscript(wp.ctx, job.StreamID, tr.Text, tr.Language); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}

	// 4. Summarize, bounded by the fixed summary timeout.
	title := ""
	if stream.Title != nil {
		title = *stream.Title
	}
	sctx, cancel := context.WithTimeout(wp.ctx, wp.opts.SummaryTimeout)
	defer cancel()

	start = time.Now()
	summary, err := wp.opts.Summarizer.Summarize(sctx, tr.Text, title)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	metrics.StageDuration.WithLabelValues("summarize").Observe(time.Since(start).Seconds())

	// 5. Persist summary and mark completed.
	if err := wp.opts.Store.SaveSummary(wp.ctx, job.StreamID, summary, wp.opts.Summarizer.Model()); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}

	return nil
}

// markFailed records a terminal failed status carrying the error text.
// Uses a fresh context so the status still lands when the pool context is
// already cancelled during shutdown.
func (wp *WorkerPool) markFailed(log zerolog.Logger, streamID int64, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status := database.StatusFailedPrefix + cause.Error()
	if err := wp.opts.Store.SetStreamStatus(ctx, streamID, status); err != nil {
		log.Error().Err(err).Int64("stream_id", streamID).Msg("failed to record failure status")
	}
}
