package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	invalidChars = regexp.MustCompile(`[^\w\s-]`)
	dashRuns     = regexp.MustCompile(`[-\s]+`)
)

// SanitizeFilename creates a clean, filesystem-safe name from an
// arbitrary title or URL.
func SanitizeFilename(name string) string {
	if name == "" {
		return "untitled"
	}
	clean := invalidChars.ReplaceAllString(name, "")
	clean = dashRuns.ReplaceAllString(clean, "-")
	clean = strings.Trim(clean, "-")
	if clean == "" {
		return "untitled"
	}
	return strings.ToLower(clean)
}

type FileManager struct {
	logger *Logger
}

func NewFileManager(logger *Logger) *FileManager {
	return &FileManager{
		logger: logger,
	}
}

func (fm *FileManager) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

func (fm *FileManager) MoveFile(src, dst string) error {
	fm.logger.WithField("source", src).
		WithField("destination", dst).
		Debug("Moving file")

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	// Try rename first (fastest if on same filesystem)
	if err := os.Rename(src, dst); err != nil {
		if err := fm.CopyFile(src, dst); err != nil {
			return fmt.Errorf("failed to copy file: %w", err)
		}
		if err := os.Remove(src); err != nil {
			fm.logger.WithError(err).WithField("file", src).Warn("Failed to remove source file after copy")
		}
	}

	return nil
}

func (fm *FileManager) CopyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	destFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer destFile.Close()

	bytesWritten, err := io.Copy(destFile, sourceFile)
	if err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}

	fm.logger.WithField("source", src).
		WithField("destination", dst).
		WithField("bytes", bytesWritten).
		Debug("File copied successfully")

	return nil
}

// FormatBytes renders a byte count for display.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
