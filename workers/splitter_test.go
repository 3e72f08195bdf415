package workers

import (
	"math"
	"testing"
)

func TestPlanChunks_Count(t *testing.T) {
	tests := []struct {
		name          string
		totalDuration float64
		chunkDuration float64
		expected      int
	}{
		{"exact multiple", 900, 300, 3},
		{"remainder adds a chunk", 950, 300, 4},
		{"shorter than one chunk", 120, 300, 1},
		{"single second", 1, 300, 1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			spans := planChunks(test.totalDuration, 10*1024*1024, test.chunkDuration, 25*1024*1024)
			if len(spans) != test.expected {
				t.Errorf("planChunks produced %d spans, expected %d", len(spans), test.expected)
			}
		})
	}
}

func TestPlanChunks_ContiguousIndices(t *testing.T) {
	spans := planChunks(1000, 10*1024*1024, 300, 25*1024*1024)

	for i, span := range spans {
		if span.index != i {
			t.Errorf("span %d has index %d, indices must be contiguous from 0", i, span.index)
		}
		if span.duration() <= 0 {
			t.Errorf("span %d has non-positive duration %v", i, span.duration())
		}
		if i > 0 && span.start < spans[i-1].start {
			t.Errorf("span %d starts before its predecessor", i)
		}
	}

	last := spans[len(spans)-1]
	if last.end > 1000 {
		t.Errorf("last span ends at %v, beyond the source duration", last.end)
	}
}

func TestPlanChunks_SizeCapShrinksSpan(t *testing.T) {
	// 600s source of 100MB split into 300s chunks: each equal chunk
	// would estimate to 50MB, double the 25MB cap, so every span is
	// halved to 150s.
	spans := planChunks(600, 100*1024*1024, 300, 25*1024*1024)

	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	for i, span := range spans {
		if math.Abs(span.duration()-150) > 0.001 {
			t.Errorf("span %d duration = %v, expected 150s after the cap shrink", i, span.duration())
		}
	}
	if spans[1].start != 300 {
		t.Errorf("span 1 starts at %v, the equal-split boundary must not move", spans[1].start)
	}
}

func TestPlanChunks_DegenerateInputs(t *testing.T) {
	if spans := planChunks(0, 1024, 300, 25*1024*1024); spans != nil {
		t.Errorf("zero duration should plan no chunks, got %d", len(spans))
	}
	if spans := planChunks(-5, 1024, 300, 25*1024*1024); spans != nil {
		t.Errorf("negative duration should plan no chunks, got %d", len(spans))
	}
	if spans := planChunks(600, 1024, 0, 25*1024*1024); spans != nil {
		t.Errorf("zero chunk duration should plan no chunks, got %d", len(spans))
	}
}

func TestStampForFilename(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected string
	}{
		{0, "00_00_00_000"},
		{61.5, "00_01_01_500"},
		{3725.042, "01_02_05_042"},
	}

	for _, test := range tests {
		if got := stampForFilename(test.seconds); got != test.expected {
			t.Errorf("stampForFilename(%v) = %s, expected %s", test.seconds, got, test.expected)
		}
	}
}

func TestStampForMetadata(t *testing.T) {
	tests := []struct {
		ms       float64
		expected string
	}{
		{0, "00:00:00.000"},
		{61500, "00:01:01.500"},
		{3725042, "01:02:05.042"},
	}

	for _, test := range tests {
		if got := stampForMetadata(test.ms); got != test.expected {
			t.Errorf("stampForMetadata(%v) = %s, expected %s", test.ms, got, test.expected)
		}
	}
}
