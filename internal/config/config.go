// Package config reads process configuration from the environment once at
// package init, the same getEnvWithDefault/getEnvInt idiom the rest of this
// codebase has always used.
package config

import (
	"os"
	"strconv"
)

var (
	// Object store backend selection and credentials.
	StorageBackend = getEnvWithDefault("STORAGE_BACKEND", "s3") // only "s3" is implemented; reserved for future backends
	S3Region       = getEnvWithDefault("AWS_REGION", "auto")
	S3Bucket       = os.Getenv("S3_BUCKET")
	S3AccessKey    = os.Getenv("AWS_ACCESS_KEY_ID")
	S3SecretKey    = os.Getenv("AWS_SECRET_ACCESS_KEY")
	S3EndpointURL  = os.Getenv("AWS_ENDPOINT_URL") // for R2: https://account-id.r2.cloudflarestorage.com
	S3BaseURL      = os.Getenv("S3_BASE_URL")      // public URL prefix, e.g. https://cdn.example.com
	S3PublicRead   = getEnvWithDefault("S3_PUBLIC_READ", "true") == "true"

	// Queue broker.
	ValkeyHost = getEnvWithDefault("VALKEY_HOST", "localhost")
	ValkeyPort = getEnvInt("VALKEY_PORT", 6379)
	ValkeyDB   = getEnvInt("VALKEY_DB", 0)

	// Repository.
	DatabaseDSN = getEnvWithDefault("DATABASE_DSN", "file:poddigest.db?_pragma=busy_timeout(5000)")

	// LLM provider (analyzer scoring, narrator script generation).
	GeminiAPIKey = firstNonEmpty(
		os.Getenv("GEMINI_API_KEY"),
		os.Getenv("GOOGLE_GEMINI_API_KEY"),
		os.Getenv("GOOGLE_AI_API_KEY"),
	)
	LLMModel           = getEnvWithDefault("LLM_MODEL", "gemini-2.0-flash")
	LLMMaxConcurrency  = getEnvInt("LLM_MAX_CONCURRENCY", 5)
	LLMBatchDelayMs    = getEnvInt("LLM_BATCH_DELAY_MS", 200)

	// TTS provider.
	TTSAPIKey   = os.Getenv("TTS_API_KEY")
	TTSBaseURL  = getEnvWithDefault("TTS_BASE_URL", "https://api.elevenlabs.io")
	TTSTimeoutSec = getEnvInt("TTS_TIMEOUT_SEC", 30)

	// Speech-to-text provider (transcriber).
	STTAPIKey      = os.Getenv("STT_API_KEY")
	STTBaseURL     = getEnvWithDefault("STT_BASE_URL", "https://api.deepgram.com")
	STTTimeoutSec  = getEnvInt("STT_TIMEOUT_SEC", 300)

	// Per-stage worker pool sizes.
	CrawlWorkers      = getEnvInt("CRAWL_WORKERS", 2)
	TranscribeWorkers = getEnvInt("TRANSCRIBE_WORKERS", 2)
	AnalyzeWorkers    = getEnvInt("ANALYZE_WORKERS", 2)
	NarrateWorkers    = getEnvInt("NARRATE_WORKERS", 2)
	AssembleWorkers   = getEnvInt("ASSEMBLE_WORKERS", 1)
	DeliverWorkers    = getEnvInt("DELIVER_WORKERS", 2)

	// Public CDN domain used when minting artifact URLs outside the object
	// store's own publicUrl (e.g. the syndication feed's enclosure links).
	CDNDomain = os.Getenv("CDN_DOMAIN")

	// Ops surface.
	HealthAddr = getEnvWithDefault("HEALTH_ADDR", ":8080")

	// Queue retention window for terminal jobs (§4.C "bounded window").
	JobRetentionHours = getEnvInt("JOB_RETENTION_HOURS", 72)
)

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
