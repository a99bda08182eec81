package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/document-viewer/internal/infrastructure/resilience"
)

type Config struct {
	ViewerPort string
	LogLevel   string

	DocServiceURL        string
	APIKey               string
	SettingsPath         string
	DocServiceTimeout    time.Duration
	DocServiceRateRPS    float64
	DocServiceRateBurst  int
	DocServiceResilience resilience.Config

	PageSize         int
	SummaryMaxLength int
	KeyPointsMax     int
	InsightsMax      int

	ViewerRateRPS   float64
	ViewerRateBurst int

	PollInterval      time.Duration
	UploadConcurrency int
	UploadMaxBytes    int64

	NATSURL          string
	NATSReadySubject string
}

// Load reads the environment, after merging a .env file from the working directory
// when one exists. Variables already set in the environment win.
func Load() Config {
	_ = godotenv.Load(".env")

	breaker := resilience.DefaultConfig()
	breaker.RetryMaxAttempts = mustEnvInt("DOCSVC_RETRY_MAX_ATTEMPTS", breaker.RetryMaxAttempts)
	breaker.BreakerEnabled = mustEnvBool("DOCSVC_BREAKER_ENABLED", breaker.BreakerEnabled)

	return Config{
		ViewerPort: mustEnv("VIEWER_PORT", "8081"),
		LogLevel:   mustEnv("LOG_LEVEL", "info"),

		DocServiceURL:        mustEnv("DOCSVC_URL", "http://localhost:5000"),
		APIKey:               mustEnv("API_KEY", ""),
		SettingsPath:         mustEnv("SETTINGS_PATH", "./data/settings.yaml"),
		DocServiceTimeout:    time.Duration(mustEnvInt("DOCSVC_TIMEOUT_SECONDS", 120)) * time.Second,
		DocServiceRateRPS:    mustEnvFloat("DOCSVC_RATE_LIMIT_RPS", 10),
		DocServiceRateBurst:  mustEnvInt("DOCSVC_RATE_LIMIT_BURST", 20),
		DocServiceResilience: breaker,

		PageSize:         mustEnvInt("PAGE_SIZE", 10),
		SummaryMaxLength: mustEnvInt("SUMMARY_MAX_LENGTH", 500),
		KeyPointsMax:     mustEnvInt("KEY_POINTS_MAX", 10),
		InsightsMax:      mustEnvInt("INSIGHTS_MAX", 5),

		ViewerRateRPS:   mustEnvFloat("VIEWER_RATE_LIMIT_RPS", 50),
		ViewerRateBurst: mustEnvInt("VIEWER_RATE_LIMIT_BURST", 100),

		PollInterval:      time.Duration(mustEnvInt("POLL_INTERVAL_MS", 2000)) * time.Millisecond,
		UploadConcurrency: mustEnvInt("UPLOAD_CONCURRENCY", 3),
		UploadMaxBytes:    int64(mustEnvInt("UPLOAD_MAX_BYTES", 16<<20)),

		NATSURL:          mustEnv("NATS_URL", ""),
		NATSReadySubject: mustEnv("NATS_READY_SUBJECT", "documents.ready"),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
