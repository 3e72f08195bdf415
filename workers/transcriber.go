package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"media-transcriber/models"
	"media-transcriber/utils"
)

// SpeechTranscriber sends audio chunks to the remote speech API and
// persists per-chunk transcript files. All requests share one
// RequestLimiter so concurrent tasks stay within the API quota.
type SpeechTranscriber struct {
	config  *utils.Config
	logger  *utils.Logger
	limiter *utils.RequestLimiter
	retry   *utils.RetryService
	breaker *utils.APIBreaker
	client  *http.Client
	ffmpeg  string

	// BCP-47 canonical form of the configured language hint, empty
	// when unset or unparseable.
	languageHint string
}

func NewSpeechTranscriber(config *utils.Config, logger *utils.Logger, limiter *utils.RequestLimiter) *SpeechTranscriber {
	st := &SpeechTranscriber{
		config:  config,
		logger:  logger,
		limiter: limiter,
		retry:   utils.NewRetryService(logger),
		breaker: utils.NewAPIBreaker("transcription-api", nil, logger),
		client:  &http.Client{Timeout: config.APITimeout},
		ffmpeg:  "ffmpeg",
	}

	if config.Language != "" {
		tag, err := language.Parse(config.Language)
		if err != nil {
			logger.WithField("language", config.Language).
				Warn("Unparseable language hint, sending requests without one")
		} else {
			st.languageHint = tag.String()
		}
	}

	return st
}

// transcriptionResult mirrors the speech API response body.
type transcriptionResult struct {
	Text     string           `json:"text"`
	Segments []models.Segment `json:"segments,omitempty"`
	Language string           `json:"language,omitempty"`
}

// transcriptFile is the persisted per-chunk output format.
type transcriptFile struct {
	Transcription transcriptionResult `json:"transcription"`
}

// TranscribeAll processes every chunk in manifest order. A single
// failed chunk fails the whole stage, but outputs of chunks that
// already succeeded stay on disk.
func (st *SpeechTranscriber) TranscribeAll(ctx context.Context, task *models.Task) error {
	split := task.Split()
	if split == nil || split.Manifest == nil || len(split.Manifest.Chunks) == 0 {
		return fmt.Errorf("no chunks information found for transcription")
	}

	log := st.logger.WithTaskID(task.ID())

	transcriptsDir := filepath.Join(filepath.Dir(split.Manifest.ChunksDir), "transcripts")
	if err := os.MkdirAll(transcriptsDir, 0755); err != nil {
		return fmt.Errorf("failed to create transcripts directory: %w", err)
	}

	result := &models.TranscribeResult{TranscriptsDir: transcriptsDir}
	failed := 0

	for _, chunk := range split.Manifest.Chunks {
		if task.Cancelled() {
			return utils.ErrTaskCancelled
		}

		res, err := st.transcribeChunk(ctx, chunk, transcriptsDir)
		if err != nil {
			log.WithChunk(chunk.Index).WithError(err).Error("Chunk transcription failed")
			failed++
			continue
		}

		result.ChunksTranscribed++
		result.WordCount += len(strings.Fields(res.Text))
		if res.Language != "" {
			result.DetectedLanguage = res.Language
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d chunks failed transcription", failed, len(split.Manifest.Chunks))
	}

	task.SetTranscribe(result)
	log.WithField("chunks", result.ChunksTranscribed).
		WithField("words", result.WordCount).
		Info("Transcription completed for all chunks")
	return nil
}

func (st *SpeechTranscriber) transcribeChunk(ctx context.Context, chunk models.Chunk, transcriptsDir string) (*transcriptionResult, error) {
	uploadPath := chunk.Path
	if st.config.PreprocessAudio {
		prepared, err := st.preprocessAudio(ctx, chunk.Path)
		if err != nil {
			return nil, fmt.Errorf("audio preprocessing failed: %w", err)
		}
		defer os.Remove(prepared)
		uploadPath = prepared
	}

	stat, err := os.Stat(uploadPath)
	if err != nil {
		return nil, fmt.Errorf("audio chunk file not found: %s", uploadPath)
	}
	if stat.Size() > st.config.ChunkMaxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", utils.ErrPayloadTooLarge, filepath.Base(uploadPath), stat.Size())
	}

	var result transcriptionResult
	description := fmt.Sprintf("transcribe %s", filepath.Base(chunk.Path))
	err = st.retry.Execute(ctx, func() error {
		if err := st.limiter.Wait(ctx); err != nil {
			return err
		}
		return st.request(ctx, uploadPath, &result)
	}, description)
	if err != nil {
		return nil, err
	}

	if err := st.persistChunkResult(chunk, &result, transcriptsDir); err != nil {
		return nil, err
	}
	return &result, nil
}

// request posts one multipart transcription request and decodes the
// response into out.
func (st *SpeechTranscriber) request(ctx context.Context, audioPath string, out *transcriptionResult) error {
	if err := st.breaker.Allow(); err != nil {
		return err
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return err
	}

	fields := map[string]string{
		"model":           st.config.Model,
		"response_format": st.config.ResponseFormat,
		"temperature":     st.config.Temperature,
	}
	if st.languageHint != "" {
		fields["language"] = st.languageHint
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if st.config.ResponseFormat == "verbose_json" {
		if err := mw.WriteField("timestamp_granularities[]", "segment"); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, st.config.APIURL, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+st.config.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := st.client.Do(req)
	if err != nil {
		st.breaker.RecordFailure()
		return fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		// Throttling is not an outage, leave the breaker alone.
		return &utils.RetryAfterError{
			After: parseRetryAfter(resp.Header.Get("Retry-After")),
			Cause: fmt.Errorf("API returned status 429"),
		}
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			st.breaker.RecordFailure()
		}
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API request failed with status %d (%s): %s",
			resp.StatusCode, strings.ToLower(http.StatusText(resp.StatusCode)), firstLine(string(snippet)))
	}
	st.breaker.RecordSuccess()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode transcription response: %w", err)
	}
	return nil
}

func (st *SpeechTranscriber) persistChunkResult(chunk models.Chunk, result *transcriptionResult, transcriptsDir string) error {
	stem := chunkStem(chunk)

	data, err := json.MarshalIndent(transcriptFile{Transcription: *result}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}
	if err := os.WriteFile(filepath.Join(transcriptsDir, stem+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to save transcript JSON: %w", err)
	}
	if err := os.WriteFile(filepath.Join(transcriptsDir, stem+".txt"), []byte(result.Text), 0644); err != nil {
		return fmt.Errorf("failed to save transcript text: %w", err)
	}
	return nil
}

// preprocessAudio re-encodes a chunk to mp3 16 kHz mono per the API
// recommendations, stripping container metadata.
func (st *SpeechTranscriber) preprocessAudio(ctx context.Context, audioPath string) (string, error) {
	tmp, err := os.CreateTemp("", "transcribe-*.mp3")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	tmp.Close()

	cmd := exec.CommandContext(ctx, st.ffmpeg,
		"-y", "-i", audioPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-ar", "16000",
		"-ac", "1",
		"-b:a", "128k",
		"-map_metadata", "-1",
		"-f", "mp3",
		tmpPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("ffmpeg: %s", lastLines(string(out)))
	}

	stat, err := os.Stat(tmpPath)
	if err != nil || stat.Size() == 0 {
		os.Remove(tmpPath)
		return "", fmt.Errorf("ffmpeg produced an empty or missing file")
	}
	return tmpPath, nil
}

func chunkStem(chunk models.Chunk) string {
	base := filepath.Base(chunk.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 5 * time.Second
}
