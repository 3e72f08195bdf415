package utils

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLogger_FieldHelpersChain(t *testing.T) {
	logger := NewTestLogger()
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.WithTaskID("task-1").
		WithChunk(3).
		WithError(errors.New("boom")).
		Warn("chunk failed")

	out := buf.String()
	for _, want := range []string{"task_id=task-1", "chunk_index=3", "error=boom", "chunk failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

func TestLogger_WithComponent(t *testing.T) {
	logger := NewTestLogger()
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.WithComponent("recovery").WithField("marked", 2).Info("done")

	out := buf.String()
	if !strings.Contains(out, "component=recovery") {
		t.Errorf("log output missing component field: %s", out)
	}
}
