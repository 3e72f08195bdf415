package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every runtime knob the pipeline consumes.
type Config struct {
	// Worker settings
	MaxWorkers   int
	MaxQueueSize int

	// Chunk settings
	ChunkDuration time.Duration
	ChunkMaxBytes int64

	// Transcription API settings
	APIURL          string
	APIKey          string
	Model           string
	ResponseFormat  string
	Language        string
	Temperature     string
	APITimeout      time.Duration
	PreprocessAudio bool

	// Rate limit settings (shared across all transcription calls)
	RateLimitWindow   time.Duration
	RateLimitRequests int

	// Directory settings
	OutputDir string

	// Persistence settings
	DatabasePath string

	// Logging settings
	LogLevel    string
	LogFilePath string
}

// LoadConfig reads the .env file (when present) and the environment.
func LoadConfig() (*Config, error) {
	// Missing .env is fine, the environment may carry everything.
	_ = godotenv.Load()

	config := &Config{
		MaxWorkers:        envInt("MAX_WORKERS", 3),
		MaxQueueSize:      envInt("MAX_QUEUE_SIZE", 20),
		ChunkDuration:     time.Duration(envInt("CHUNK_DURATION_SEC", 300)) * time.Second,
		ChunkMaxBytes:     int64(envInt("CHUNK_MAX_SIZE_MB", 25)) * 1024 * 1024,
		APIURL:            envString("TRANSCRIPTION_API_URL", "https://api.groq.com/openai/v1/audio/transcriptions"),
		APIKey:            os.Getenv("GROQ_API_KEY"),
		Model:             envString("TRANSCRIPTION_MODEL", "whisper-large-v3"),
		ResponseFormat:    envString("TRANSCRIPTION_FORMAT", "verbose_json"),
		Language:          os.Getenv("TRANSCRIPTION_LANGUAGE"),
		Temperature:       envString("TRANSCRIPTION_TEMPERATURE", "0"),
		APITimeout:        time.Duration(envInt("API_TIMEOUT", 300)) * time.Second,
		PreprocessAudio:   envBool("PREPROCESS_AUDIO", true),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW_SEC", 60)) * time.Second,
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 20),
		OutputDir:         envString("OUTPUT_DIR", "downloaded_videos"),
		DatabasePath:      envString("DATABASE_PATH", "data/transcriber.db"),
		LogLevel:          envString("LOG_LEVEL", "info"),
		LogFilePath:       envString("LOG_FILE_PATH", "logs/transcriber.log"),
	}

	if config.MaxWorkers <= 0 {
		return nil, fmt.Errorf("MAX_WORKERS must be positive")
	}
	if config.MaxQueueSize <= 0 {
		return nil, fmt.Errorf("MAX_QUEUE_SIZE must be positive")
	}
	if config.ChunkDuration <= 0 {
		return nil, fmt.Errorf("CHUNK_DURATION_SEC must be positive")
	}
	if config.ChunkMaxBytes <= 0 {
		return nil, fmt.Errorf("CHUNK_MAX_SIZE_MB must be positive")
	}
	if config.RateLimitRequests <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_REQUESTS must be positive")
	}

	return config, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
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

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
