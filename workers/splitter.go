package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"media-transcriber/models"
	"media-transcriber/utils"
)

const (
	chunkSampleRate = 16000
	chunkChannels   = 1
	chunkFormat     = "wav"
	manifestName    = "chunks_manifest.json"
)

// AudioSplitter partitions the downloaded audio into bounded-size
// chunks with ffmpeg, keeping each chunk's estimated payload under the
// API size cap.
type AudioSplitter struct {
	config *utils.Config
	logger *utils.Logger
	ffmpeg string
	probe  string
}

func NewAudioSplitter(config *utils.Config, logger *utils.Logger) *AudioSplitter {
	return &AudioSplitter{
		config: config,
		logger: logger,
		ffmpeg: "ffmpeg",
		probe:  "ffprobe",
	}
}

// chunkSpan is one planned slice of the source, in seconds.
type chunkSpan struct {
	index int
	start float64
	end   float64
}

func (c chunkSpan) duration() float64 {
	return c.end - c.start
}

// planChunks partitions totalDuration into ceil(D/T) equal slices.
// A slice whose estimated byte size (its time-fraction of the source
// file) would exceed maxBytes is shrunk proportionally, pulling its
// end boundary earlier than the naive equal-split point.
func planChunks(totalDuration float64, fileSize int64, chunkDuration float64, maxBytes int64) []chunkSpan {
	if totalDuration <= 0 || chunkDuration <= 0 {
		return nil
	}

	numChunks := int(math.Ceil(totalDuration / chunkDuration))
	if numChunks < 1 {
		numChunks = 1
	}

	spans := make([]chunkSpan, 0, numChunks)
	for i := 0; i < numChunks; i++ {
		start := float64(i) * chunkDuration
		end := math.Min(float64(i+1)*chunkDuration, totalDuration)
		duration := end - start

		estimated := duration / totalDuration * float64(fileSize)
		if estimated > float64(maxBytes) {
			duration = duration * float64(maxBytes) / estimated
			end = start + duration
		}

		spans = append(spans, chunkSpan{index: i, start: start, end: end})
	}
	return spans
}

func (as *AudioSplitter) Split(ctx context.Context, task *models.Task) error {
	download := task.Download()
	if download == nil {
		return fmt.Errorf("download result missing from task")
	}

	log := as.logger.WithTaskID(task.ID())

	audioPath := download.AudioPath
	stat, err := os.Stat(audioPath)
	if err != nil {
		return fmt.Errorf("audio file not found: %s", audioPath)
	}

	totalDuration, err := as.audioDuration(ctx, audioPath)
	if err != nil {
		return fmt.Errorf("failed to get audio duration: %w", err)
	}

	chunksDir := filepath.Join(download.VideoDir, "chunks")
	if err := os.MkdirAll(chunksDir, 0755); err != nil {
		return fmt.Errorf("failed to create chunks directory: %w", err)
	}

	spans := planChunks(totalDuration, stat.Size(), as.config.ChunkDuration.Seconds(), as.config.ChunkMaxBytes)
	log.WithField("chunks", len(spans)).
		WithField("duration", totalDuration).
		Info("Splitting audio")

	chunks := make([]models.Chunk, 0, len(spans))
	for _, span := range spans {
		if task.Cancelled() {
			return utils.ErrTaskCancelled
		}

		chunk, err := as.extractChunk(ctx, audioPath, chunksDir, span)
		if err != nil {
			// A failed chunk is skipped, the rest still get extracted.
			log.WithChunk(span.index).WithError(err).Error("Chunk extraction failed, skipping")
			continue
		}
		chunks = append(chunks, chunk)
	}

	if len(chunks) == 0 {
		return utils.ErrNoChunks
	}

	manifest := &models.ChunkManifest{
		TotalChunks:     len(chunks),
		TotalDurationMS: totalDuration * 1000,
		Chunks:          chunks,
		ChunksDir:       chunksDir,
		CreatedAt:       time.Now(),
	}

	manifestPath, err := as.saveManifest(manifest, chunksDir)
	if err != nil {
		return err
	}

	task.SetSplit(&models.SplitResult{
		Manifest:     manifest,
		ManifestPath: manifestPath,
	})

	log.WithField("chunks", len(chunks)).Info("Audio split complete")
	return nil
}

// audioDuration probes the container duration in seconds.
func (as *AudioSplitter) audioDuration(ctx context.Context, audioPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, as.probe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	raw := strings.TrimSpace(string(out))
	if raw == "" || raw == "N/A" {
		return 0, fmt.Errorf("duration not available for %s", audioPath)
	}

	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", raw, err)
	}
	return duration, nil
}

func (as *AudioSplitter) extractChunk(ctx context.Context, audioPath, chunksDir string, span chunkSpan) (models.Chunk, error) {
	name := fmt.Sprintf("chunk_%03d_%s_%s.%s",
		span.index,
		stampForFilename(span.start),
		stampForFilename(span.end),
		chunkFormat,
	)
	chunkPath := filepath.Join(chunksDir, name)

	cmd := exec.CommandContext(ctx, as.ffmpeg,
		"-y", "-i", audioPath,
		"-ss", formatSeconds(span.start),
		"-t", formatSeconds(span.duration()),
		"-ar", strconv.Itoa(chunkSampleRate),
		"-ac", strconv.Itoa(chunkChannels),
		"-map", "0:a",
		chunkPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return models.Chunk{}, fmt.Errorf("ffmpeg: %s", lastLines(string(out)))
	}

	if _, err := os.Stat(chunkPath); err != nil {
		return models.Chunk{}, fmt.Errorf("chunk file was not created: %s", chunkPath)
	}

	startMS := span.start * 1000
	endMS := span.end * 1000
	return models.Chunk{
		Index:        span.index,
		Path:         chunkPath,
		RelativePath: name,
		StartMS:      startMS,
		EndMS:        endMS,
		DurationMS:   endMS - startMS,
		StartTime:    stampForMetadata(startMS),
		EndTime:      stampForMetadata(endMS),
		AudioFormat:  chunkFormat,
		SampleRate:   chunkSampleRate,
		Channels:     chunkChannels,
	}, nil
}

func (as *AudioSplitter) saveManifest(manifest *models.ChunkManifest, chunksDir string) (string, error) {
	manifestPath := filepath.Join(chunksDir, manifestName)

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode chunks manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save chunks manifest: %w", err)
	}
	return manifestPath, nil
}

// stampForFilename renders seconds as HH_MM_SS_mmm, rounded to the
// nearest millisecond.
func stampForFilename(seconds float64) string {
	totalMS := int(math.Round(seconds * 1000))
	total := totalMS / 1000
	return fmt.Sprintf("%02d_%02d_%02d_%03d", total/3600, total%3600/60, total%60, totalMS%1000)
}

// stampForMetadata renders milliseconds as HH:MM:SS.mmm.
func stampForMetadata(ms float64) string {
	totalMS := int(math.Round(ms))
	total := totalMS / 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", total/3600, total%3600/60, total%60, totalMS%1000)
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}

func lastLines(s string) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) > 2 {
		lines = lines[len(lines)-2:]
	}
	return strings.Join(lines, " ")
}
