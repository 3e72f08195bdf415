package utils

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() returned error: %v", err)
	}

	if config.MaxWorkers != 3 {
		t.Errorf("MaxWorkers = %d, expected default 3", config.MaxWorkers)
	}
	if config.MaxQueueSize != 20 {
		t.Errorf("MaxQueueSize = %d, expected default 20", config.MaxQueueSize)
	}
	if config.ChunkDuration != 5*time.Minute {
		t.Errorf("ChunkDuration = %v, expected 5m", config.ChunkDuration)
	}
	if config.ChunkMaxBytes != 25*1024*1024 {
		t.Errorf("ChunkMaxBytes = %d, expected 25MB", config.ChunkMaxBytes)
	}
	if config.Model != "whisper-large-v3" {
		t.Errorf("Model = %s", config.Model)
	}
	if config.ResponseFormat != "verbose_json" {
		t.Errorf("ResponseFormat = %s", config.ResponseFormat)
	}
	if config.RateLimitWindow != time.Minute {
		t.Errorf("RateLimitWindow = %v, expected 1m", config.RateLimitWindow)
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("MAX_WORKERS", "7")
	t.Setenv("CHUNK_DURATION_SEC", "120")
	t.Setenv("TRANSCRIPTION_MODEL", "whisper-large-v3-turbo")
	t.Setenv("PREPROCESS_AUDIO", "false")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() returned error: %v", err)
	}

	if config.MaxWorkers != 7 {
		t.Errorf("MaxWorkers = %d, expected 7", config.MaxWorkers)
	}
	if config.ChunkDuration != 2*time.Minute {
		t.Errorf("ChunkDuration = %v, expected 2m", config.ChunkDuration)
	}
	if config.Model != "whisper-large-v3-turbo" {
		t.Errorf("Model = %s", config.Model)
	}
	if config.PreprocessAudio {
		t.Error("PreprocessAudio should be disabled by the environment")
	}
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero workers", "MAX_WORKERS", "0"},
		{"negative queue", "MAX_QUEUE_SIZE", "-1"},
		{"zero chunk duration", "CHUNK_DURATION_SEC", "0"},
		{"zero chunk size", "CHUNK_MAX_SIZE_MB", "0"},
		{"zero rate limit", "RATE_LIMIT_REQUESTS", "0"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Setenv(test.key, test.value)
			if _, err := LoadConfig(); err == nil {
				t.Errorf("LoadConfig() accepted %s=%s", test.key, test.value)
			}
		})
	}
}

func TestLoadConfig_MalformedNumbersFallBack(t *testing.T) {
	t.Setenv("MAX_WORKERS", "not-a-number")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() returned error: %v", err)
	}
	if config.MaxWorkers != 3 {
		t.Errorf("MaxWorkers = %d, malformed values should fall back to the default", config.MaxWorkers)
	}
}
