package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	// Shared secret for webhook HMAC verification. Empty disables the check.
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	MediaDir string `env:"MEDIA_DIR" envDefault:"./media"`

	WhisperURL     string        `env:"WHISPER_URL" envDefault:"https://api.groq.com/openai/v1/audio/transcriptions"`
	WhisperAPIKey  string        `env:"WHISPER_API_KEY"`
	WhisperModel   string        `env:"WHISPER_MODEL" envDefault:"whisper-large-v3"`
	WhisperTimeout time.Duration `env:"WHISPER_TIMEOUT" envDefault:"10m"`

	OpenRouterAPIKey  string        `env:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL string        `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	OpenRouterModel   string        `env:"OPENROUTER_MODEL" envDefault:"google/gemini-2.0-pro"`
	OpenRouterReferer string        `env:"OPENROUTER_REFERER" envDefault:"http://localhost:8080"`
	OpenRouterTitle   string        `env:"OPENROUTER_TITLE" envDefault:"stream-scribe"`
	SummaryTimeout    time.Duration `env:"SUMMARY_TIMEOUT" envDefault:"120s"`

	Workers   int `env:"WORKERS" envDefault:"2"`
	QueueSize int `env:"QUEUE_SIZE" envDefault:"64"`

	S3 S3Config

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// S3Config holds settings for the optional media archive mirror.
type S3Config struct {
	Endpoint  string `env:"S3_ENDPOINT"`
	Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	Bucket    string `env:"S3_BUCKET"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
	Prefix    string `env:"S3_PREFIX" envDefault:"media"`
}

// Enabled reports whether an object store is configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	DatabaseURL string
	MediaDir    string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.MediaDir != "" {
		cfg.MediaDir = overrides.MediaDir
	}

	return cfg, nil
}
