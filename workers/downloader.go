package workers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"media-transcriber/models"
	"media-transcriber/utils"
)

// progressLine matches yt-dlp --newline download output, e.g.
// [download]  45.2% of 10.55MiB at 2.34MiB/s ETA 00:05
var progressLine = regexp.MustCompile(`\[download\]\s+([\d.]+)% of ~?\s*([\d.]+)(KiB|MiB|GiB|B) at\s+([\d.]+)(KiB|MiB|GiB|B)/s ETA (\d+):(\d+)`)

// VideoDownloader fetches media with yt-dlp and extracts a single
// audio asset per task.
type VideoDownloader struct {
	config *utils.Config
	logger *utils.Logger
	binary string
}

func NewVideoDownloader(config *utils.Config, logger *utils.Logger) *VideoDownloader {
	return &VideoDownloader{
		config: config,
		logger: logger,
		binary: "yt-dlp",
	}
}

func (vd *VideoDownloader) Download(ctx context.Context, task *models.Task) error {
	url := strings.TrimSpace(task.URL())
	if url == "" {
		return utils.ErrEmptyURL
	}

	log := vd.logger.WithTaskID(task.ID())
	log.WithField("url", url).Info("Starting download")

	info, err := vd.probe(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to fetch video info: %w", err)
	}
	if info.ID == "" {
		return fmt.Errorf("could not retrieve video ID from video info")
	}

	videoDir, err := vd.createVideoDir(info)
	if err != nil {
		return err
	}

	task.SetTitle(info.Title)
	task.SetVideo(info)

	audioPath, err := vd.downloadAudio(ctx, task, url, info, videoDir)
	if err != nil {
		return err
	}
	task.FinishProgress()

	metadataPath, err := vd.saveMetadata(info, videoDir)
	if err != nil {
		log.WithError(err).Warn("Failed to save provider metadata")
	}

	task.SetDownload(&models.DownloadResult{
		VideoDir:     videoDir,
		AudioPath:    audioPath,
		MetadataPath: metadataPath,
	})

	log.WithField("audio", audioPath).Info("Download complete")
	return nil
}

// probe asks yt-dlp for the provider metadata without downloading.
func (vd *VideoDownloader) probe(ctx context.Context, url string) (*models.VideoMetadata, error) {
	cmd := exec.CommandContext(ctx, vd.binary, "--dump-json", "--no-playlist", url)
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("yt-dlp probe: %s", firstLine(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("yt-dlp probe: %w", err)
	}

	info := &models.VideoMetadata{}
	if err := json.Unmarshal(out, info); err != nil {
		return nil, fmt.Errorf("failed to parse video info: %w", err)
	}
	return info, nil
}

func (vd *VideoDownloader) createVideoDir(info *models.VideoMetadata) (string, error) {
	title := utils.SanitizeFilename(info.Title)
	if len(title) > 50 {
		title = title[:50]
	}
	videoDir := filepath.Join(vd.config.OutputDir, fmt.Sprintf("%s-%s", info.ID, title))

	if err := os.MkdirAll(filepath.Join(videoDir, "audio"), 0755); err != nil {
		return "", fmt.Errorf("failed to create video directory: %w", err)
	}
	return videoDir, nil
}

// downloadAudio runs yt-dlp in audio-extraction mode, feeding progress
// lines into the task stats as they arrive.
func (vd *VideoDownloader) downloadAudio(ctx context.Context, task *models.Task, url string, info *models.VideoMetadata, videoDir string) (string, error) {
	audioDir := filepath.Join(videoDir, "audio")
	outTemplate := filepath.Join(audioDir, "%(id)s.%(ext)s")

	cmd := exec.CommandContext(ctx, vd.binary,
		"--newline",
		"--no-playlist",
		"-f", "bestaudio/best",
		"-x", "--audio-format", "mp3",
		"-o", outTemplate,
		url,
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to attach to yt-dlp output: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		vd.applyProgress(task, scanner.Text())
	}

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("yt-dlp download failed: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(audioDir, info.ID+".*"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("downloaded audio asset not found in %s", audioDir)
	}
	return matches[0], nil
}

func (vd *VideoDownloader) applyProgress(task *models.Task, line string) {
	m := progressLine.FindStringSubmatch(line)
	if m == nil {
		return
	}

	percent, _ := strconv.ParseFloat(m[1], 64)
	totalVal, _ := strconv.ParseFloat(m[2], 64)
	total := int64(totalVal * float64(unitBytes(m[3])))
	speedVal, _ := strconv.ParseFloat(m[4], 64)
	speed := speedVal * float64(unitBytes(m[5]))
	etaMin, _ := strconv.Atoi(m[6])
	etaSec, _ := strconv.Atoi(m[7])

	downloaded := int64(percent / 100 * float64(total))
	task.UpdateProgress(total, downloaded, speed, float64(etaMin*60+etaSec))
}

func (vd *VideoDownloader) saveMetadata(info *models.VideoMetadata, videoDir string) (string, error) {
	metadataPath := filepath.Join(videoDir, "metadata.json")

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.WriteFile(metadataPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write metadata: %w", err)
	}
	return metadataPath, nil
}

func unitBytes(unit string) int64 {
	switch unit {
	case "KiB":
		return 1024
	case "MiB":
		return 1024 * 1024
	case "GiB":
		return 1024 * 1024 * 1024
	default:
		return 1
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
