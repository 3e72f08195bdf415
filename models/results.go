package models

import "time"

// VideoMetadata is the provider-reported description of the source.
// Written once by the downloader, read-only afterwards.
type VideoMetadata struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Duration    float64  `json:"duration,omitempty"`
	UploadDate  string   `json:"upload_date,omitempty"`
	Uploader    string   `json:"uploader,omitempty"`
	ChannelID   string   `json:"channel_id,omitempty"`
	ViewCount   int64    `json:"view_count,omitempty"`
	LikeCount   int64    `json:"like_count,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Language    string   `json:"language,omitempty"`
	WebpageURL  string   `json:"webpage_url,omitempty"`
	Ext         string   `json:"ext,omitempty"`
}

// DownloadResult is produced by the download stage and consumed by the
// splitter.
type DownloadResult struct {
	VideoDir     string
	AudioPath    string
	MetadataPath string
}

// Chunk describes one time-bounded slice of the source audio.
type Chunk struct {
	Index        int     `json:"chunk_index"`
	Path         string  `json:"filename"`
	RelativePath string  `json:"relative_path"`
	StartMS      float64 `json:"start_ms"`
	EndMS        float64 `json:"end_ms"`
	DurationMS   float64 `json:"duration_ms"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	AudioFormat  string  `json:"audio_format"`
	SampleRate   int     `json:"sample_rate"`
	Channels     int     `json:"channels"`
}

// ChunkManifest is the persisted descriptor of all chunks produced for
// one task. Chunk indices are contiguous from 0 and sorted by index.
type ChunkManifest struct {
	TotalChunks     int       `json:"total_chunks"`
	TotalDurationMS float64   `json:"total_duration_ms"`
	Chunks          []Chunk   `json:"chunks"`
	ChunksDir       string    `json:"chunks_directory"`
	CreatedAt       time.Time `json:"created_at"`
}

// SplitResult is produced by the split stage and consumed by the
// transcriber.
type SplitResult struct {
	Manifest     *ChunkManifest
	ManifestPath string
}

// TranscribeResult is produced by the transcribe stage and consumed by
// the merge step.
type TranscribeResult struct {
	TranscriptsDir   string
	ChunksTranscribed int
	WordCount        int
	DetectedLanguage string
}

// Segment is one timed span of transcribed speech. Offsets are seconds
// relative to the start of the original source after merging.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// MergedTranscript is the final artifact of a completed task.
type MergedTranscript struct {
	Text            string    `json:"text"`
	Segments        []Segment `json:"segments"`
	TaskID          string    `json:"task_id"`
	Title           string    `json:"video_title"`
	URL             string    `json:"video_url"`
	DurationSeconds float64   `json:"duration_seconds"`
	TotalWords      int       `json:"total_words"`
	MergedAt        time.Time `json:"merged_at"`
	JSONPath        string    `json:"-"`
	TextPath        string    `json:"-"`
}

// TranscriptionMetadata aggregates transcription outcomes on the task.
type TranscriptionMetadata struct {
	WordCount            int
	DetectedLanguage     string
	MergedTranscriptPath string
}
