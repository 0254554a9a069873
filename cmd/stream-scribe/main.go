package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/snarg/stream-scribe/internal/api"
	"github.com/snarg/stream-scribe/internal/config"
	"github.com/snarg/stream-scribe/internal/database"
	"github.com/snarg/stream-scribe/internal/metrics"
	"github.com/snarg/stream-scribe/internal/pipeline"
	"github.com/snarg/stream-scribe/internal/storage"
	"github.com/snarg/stream-scribe/internal/summarize"
	"github.com/snarg/stream-scribe/internal/transcribe"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env", "", "path to .env file")
	flag.StringVar(&overrides.HTTPAddr, "addr", "", "http listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "postgres connection string")
	flag.StringVar(&overrides.MediaDir, "media-dir", "", "downloaded media directory")
	flag.Parse()

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("stream-scribe starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	dbLog := log.With().Str("component", "database").Logger()
	db, err := database.Connect(ctx, cfg.DatabaseURL, dbLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schema")
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Optional S3 archive mirror for downloaded media
	var archiver pipeline.Archiver
	if cfg.S3.Enabled() {
		a, err := storage.NewS3Archiver(ctx, cfg.S3, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize S3 archive")
		}
		archiver = a
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("S3 media archive enabled")
	}

	// Processing pipeline
	poolLog := log.With().Str("component", "pipeline").Logger()
	pool := pipeline.NewWorkerPool(pipeline.WorkerPoolOptions{
		Store:          db,
		Downloader:     pipeline.NewHTTPDownloader(),
		Transcriber:    transcribe.NewWhisperClient(cfg.WhisperURL, cfg.WhisperAPIKey, cfg.WhisperModel, cfg.WhisperTimeout),
		Summarizer:     summarize.NewOpenRouterClient(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterReferer, cfg.OpenRouterTitle, cfg.SummaryTimeout),
		Archiver:       archiver,
		MediaDir:       cfg.MediaDir,
		SummaryTimeout: cfg.SummaryTimeout,
		Workers:        cfg.Workers,
		QueueSize:      cfg.QueueSize,
		Log:            poolLog,
	})
	pool.Start()

	// Scrape-time gauges for the queue and db pool
	prometheus.MustRegister(metrics.NewCollector(db.Pool, func() metrics.PoolStats {
		s := pool.Stats()
		return metrics.PoolStats{Pending: s.Pending, Completed: s.Completed, Failed: s.Failed}
	}))

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, db, pool, version, startTime, httpLog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Stop accepting requests, then drain the processing queue
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	pool.Stop()

	log.Info().Msg("stream-scribe stopped")
}
