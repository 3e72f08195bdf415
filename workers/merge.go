package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"media-transcriber/models"
	"media-transcriber/utils"
)

// Merge reassembles the persisted per-chunk transcripts into one
// ordered transcript. Chunk texts are joined with a blank line in
// chunk-index order, and every segment's offsets are re-based from
// chunk-local time to source time by adding the cumulative duration of
// all prior chunks as recorded in the manifest. Re-running merge over
// the same transcript set yields identical text and word count.
func (st *SpeechTranscriber) Merge(ctx context.Context, task *models.Task) error {
	split := task.Split()
	if split == nil || split.Manifest == nil || len(split.Manifest.Chunks) == 0 {
		return fmt.Errorf("no chunks information found for merging transcripts")
	}

	log := st.logger.WithTaskID(task.ID())

	transcriptsDir := filepath.Join(filepath.Dir(split.Manifest.ChunksDir), "transcripts")
	if _, err := os.Stat(transcriptsDir); err != nil {
		return fmt.Errorf("transcripts directory not found: %s", transcriptsDir)
	}

	chunks := make([]models.Chunk, len(split.Manifest.Chunks))
	copy(chunks, split.Manifest.Chunks)
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })

	var (
		texts      []string
		segments   []models.Segment
		offsetSecs float64
		totalWords int
	)

	for _, chunk := range chunks {
		jsonPath := filepath.Join(transcriptsDir, chunkStem(chunk)+".json")

		data, err := os.ReadFile(jsonPath)
		if err != nil {
			// The offset still advances so later chunks keep their
			// true position in the source timeline.
			log.WithChunk(chunk.Index).Warn("Missing chunk transcript, skipping")
			offsetSecs += chunk.DurationMS / 1000
			continue
		}

		var tf transcriptFile
		if err := json.Unmarshal(data, &tf); err != nil {
			log.WithChunk(chunk.Index).WithError(err).Warn("Unreadable chunk transcript, skipping")
			offsetSecs += chunk.DurationMS / 1000
			continue
		}

		text := strings.TrimSpace(tf.Transcription.Text)
		if text != "" {
			texts = append(texts, text)
			totalWords += len(strings.Fields(text))
		}

		for _, seg := range tf.Transcription.Segments {
			seg.Start += offsetSecs
			seg.End += offsetSecs
			segments = append(segments, seg)
		}

		offsetSecs += chunk.DurationMS / 1000
	}

	if len(texts) == 0 {
		return utils.ErrNothingToMerge
	}

	merged := &models.MergedTranscript{
		Text:            strings.Join(texts, "\n\n"),
		Segments:        segments,
		TaskID:          task.ID(),
		Title:           task.Title(),
		URL:             task.URL(),
		DurationSeconds: offsetSecs,
		TotalWords:      totalWords,
		MergedAt:        time.Now(),
	}

	if err := st.persistMerged(merged, transcriptsDir); err != nil {
		return err
	}

	task.SetMerged(merged)
	log.WithField("words", totalWords).
		WithField("segments", len(segments)).
		Info("Transcripts merged")
	return nil
}

func (st *SpeechTranscriber) persistMerged(merged *models.MergedTranscript, transcriptsDir string) error {
	mergedDir := filepath.Join(transcriptsDir, "merged")
	if err := os.MkdirAll(mergedDir, 0755); err != nil {
		return fmt.Errorf("failed to create merged directory: %w", err)
	}

	base := utils.SanitizeFilename(merged.Title)
	if base == "untitled" && merged.URL != "" {
		base = utils.SanitizeFilename(merged.URL)
	}
	stem := fmt.Sprintf("complete_%s_%s", base, merged.MergedAt.Format("20060102_150405"))

	jsonPath := filepath.Join(mergedDir, stem+".json")
	textPath := filepath.Join(mergedDir, stem+".txt")

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode merged transcript: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return fmt.Errorf("failed to save merged JSON: %w", err)
	}
	if err := os.WriteFile(textPath, []byte(merged.Text), 0644); err != nil {
		return fmt.Errorf("failed to save merged text: %w", err)
	}

	merged.JSONPath = jsonPath
	merged.TextPath = textPath
	return nil
}
