package workers

import (
	"context"

	"media-transcriber/models"
)

// Downloader fetches the source media and leaves one extracted audio
// asset behind. On success it has populated the task's title, provider
// metadata and DownloadResult.
type Downloader interface {
	Download(ctx context.Context, task *models.Task) error
}

// Splitter partitions the downloaded audio into bounded-size chunks
// and persists the chunk manifest. On success it has populated the
// task's SplitResult.
type Splitter interface {
	Split(ctx context.Context, task *models.Task) error
}

// Transcriber sends every chunk to the remote speech API and
// reassembles the per-chunk results into one ordered transcript.
type Transcriber interface {
	TranscribeAll(ctx context.Context, task *models.Task) error
	Merge(ctx context.Context, task *models.Task) error
}
