package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "untitled"},
		{"Simple Title", "simple-title"},
		{"What?! A *weird* title...", "what-a-weird-title"},
		{"   spaced   out   ", "spaced-out"},
		{"///", "untitled"},
		{"MiXeD CaSe", "mixed-case"},
		{"tabs\tand\nnewlines", "tabs-and-newlines"},
	}

	for _, test := range tests {
		if got := SanitizeFilename(test.input); got != test.expected {
			t.Errorf("SanitizeFilename(%q) = %q, expected %q", test.input, got, test.expected)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{26214400, "25.0 MiB"},
	}

	for _, test := range tests {
		if got := FormatBytes(test.bytes); got != test.expected {
			t.Errorf("FormatBytes(%d) = %q, expected %q", test.bytes, got, test.expected)
		}
	}
}

func TestFileManager_MoveFile(t *testing.T) {
	fm := NewFileManager(NewTestLogger())
	dir := t.TempDir()

	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "nested", "dst.txt")
	if err := os.WriteFile(src, []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := fm.MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile() returned error: %v", err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source file should be gone after the move")
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("destination missing: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("destination content = %q", string(data))
	}
}
