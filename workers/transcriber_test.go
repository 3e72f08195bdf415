package workers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"media-transcriber/models"
	"media-transcriber/utils"
)

func newAPITranscriber(t *testing.T, apiURL string) *SpeechTranscriber {
	t.Helper()
	config := &utils.Config{
		APIURL:         apiURL,
		APIKey:         "test-key",
		Model:          "whisper-large-v3",
		ResponseFormat: "verbose_json",
		Temperature:    "0",
		APITimeout:     5 * time.Second,
		ChunkMaxBytes:  25 * 1024 * 1024,
	}
	logger := utils.NewTestLogger()
	limiter := utils.NewRequestLimiter(nil, logger)
	return NewSpeechTranscriber(config, logger, limiter)
}

// chunkFixture writes a fake audio chunk and the task carrying its
// manifest.
func chunkFixture(t *testing.T) (*models.Task, models.Chunk, string) {
	t.Helper()

	videoDir := t.TempDir()
	chunksDir := filepath.Join(videoDir, "chunks")
	if err := os.MkdirAll(chunksDir, 0755); err != nil {
		t.Fatal(err)
	}

	chunkPath := filepath.Join(chunksDir, "chunk_000_00_00_00_000_00_01_00_000.wav")
	if err := os.WriteFile(chunkPath, []byte("RIFF fake audio payload"), 0644); err != nil {
		t.Fatal(err)
	}

	chunk := models.Chunk{
		Index:      0,
		Path:       chunkPath,
		StartMS:    0,
		EndMS:      60000,
		DurationMS: 60000,
	}

	task := models.NewTask("https://example.com/watch?v=api")
	task.SetSplit(&models.SplitResult{
		Manifest: &models.ChunkManifest{
			TotalChunks: 1,
			Chunks:      []models.Chunk{chunk},
			ChunksDir:   chunksDir,
		},
	})
	return task, chunk, filepath.Join(videoDir, "transcripts")
}

func TestTranscribeAll_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer auth, got %q", r.Header.Get("Authorization"))
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("request is not multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-large-v3" {
			t.Errorf("model field = %q", got)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("response_format field = %q", got)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("file part missing: %v", err)
		}

		json.NewEncoder(w).Encode(transcriptionResult{
			Text:     "hello from the API",
			Language: "en",
			Segments: []models.Segment{{ID: 0, Start: 0, End: 4.2, Text: "hello from the API"}},
		})
	}))
	defer server.Close()

	st := newAPITranscriber(t, server.URL)
	task, chunk, transcriptsDir := chunkFixture(t)

	if err := st.TranscribeAll(context.Background(), task); err != nil {
		t.Fatalf("TranscribeAll() returned error: %v", err)
	}

	result := task.Transcribe()
	if result == nil {
		t.Fatal("transcribe result should be set on the task")
	}
	if result.ChunksTranscribed != 1 {
		t.Errorf("ChunksTranscribed = %d, expected 1", result.ChunksTranscribed)
	}
	if result.WordCount != 4 {
		t.Errorf("WordCount = %d, expected 4", result.WordCount)
	}
	if result.DetectedLanguage != "en" {
		t.Errorf("DetectedLanguage = %q, expected en", result.DetectedLanguage)
	}

	// Both transcript artifacts land next to the chunks.
	stem := chunkStem(chunk)
	data, err := os.ReadFile(filepath.Join(transcriptsDir, stem+".json"))
	if err != nil {
		t.Fatalf("chunk transcript JSON not written: %v", err)
	}
	var tf transcriptFile
	if err := json.Unmarshal(data, &tf); err != nil {
		t.Fatalf("chunk transcript JSON invalid: %v", err)
	}
	if tf.Transcription.Text != "hello from the API" {
		t.Errorf("persisted transcription text = %q", tf.Transcription.Text)
	}

	text, err := os.ReadFile(filepath.Join(transcriptsDir, stem+".txt"))
	if err != nil {
		t.Fatalf("chunk transcript text not written: %v", err)
	}
	if string(text) != "hello from the API" {
		t.Errorf("persisted plain text = %q", string(text))
	}
}

func TestTranscribeAll_RetriesAfterTooManyRequests(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(transcriptionResult{Text: "eventually fine"})
	}))
	defer server.Close()

	st := newAPITranscriber(t, server.URL)
	task, _, _ := chunkFixture(t)

	if err := st.TranscribeAll(context.Background(), task); err != nil {
		t.Fatalf("TranscribeAll() should recover from a 429, got: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("API called %d times, expected a retry after the 429", got)
	}
}

func TestTranscribeAll_FailedChunkFailsStage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid file"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	st := newAPITranscriber(t, server.URL)
	task, _, _ := chunkFixture(t)

	err := st.TranscribeAll(context.Background(), task)
	if err == nil {
		t.Fatal("TranscribeAll() should fail when a chunk fails")
	}
	if task.Transcribe() != nil {
		t.Error("a failed stage must not set the transcribe result")
	}
}

func TestTranscribeAll_CancelledTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("cancelled task must not reach the API")
	}))
	defer server.Close()

	st := newAPITranscriber(t, server.URL)
	task, _, _ := chunkFixture(t)
	task.SetStatus(models.TaskStatusCancelled)

	err := st.TranscribeAll(context.Background(), task)
	if err != utils.ErrTaskCancelled {
		t.Errorf("TranscribeAll() on cancelled task = %v, expected ErrTaskCancelled", err)
	}
}

func TestTranscribeChunk_PayloadTooLarge(t *testing.T) {
	st := newAPITranscriber(t, "http://127.0.0.1:0")
	st.config.ChunkMaxBytes = 4

	_, chunk, transcriptsDir := chunkFixture(t)

	_, err := st.transcribeChunk(context.Background(), chunk, transcriptsDir)
	if err == nil {
		t.Fatal("oversized chunk should be rejected before upload")
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		header   string
		expected time.Duration
	}{
		{"", 5 * time.Second},
		{"7", 7 * time.Second},
		{"0", 0},
		{"garbage", 5 * time.Second},
	}

	for _, test := range tests {
		if got := parseRetryAfter(test.header); got != test.expected {
			t.Errorf("parseRetryAfter(%q) = %v, expected %v", test.header, got, test.expected)
		}
	}
}
