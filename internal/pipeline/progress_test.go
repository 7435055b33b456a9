package pipeline

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsoleProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	cb := NewConsoleProgressCallback(&buf, "seq: ")
	cb.OnStart(4)
	cb.OnProgress(2, 4)
	cb.OnError(3, errors.New("boom"))
	cb.OnComplete()

	out := buf.String()
	assert.Contains(t, out, "seq: estimating 4 pairs")
	assert.Contains(t, out, "2/4")
	assert.Contains(t, out, "pair 3 failed: boom")
	assert.Contains(t, out, "done in")
}

func TestLogProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cb := NewLogProgressCallback(logger, slog.LevelInfo)
	cb.OnStart(2)
	cb.OnProgress(1, 2)
	cb.OnError(1, errors.New("bad pair"))
	cb.OnComplete()

	out := buf.String()
	assert.Contains(t, out, `"msg":"pair estimation started"`)
	assert.Contains(t, out, `"pairs":2`)
	assert.Contains(t, out, `"msg":"pair estimation error"`)
	assert.Contains(t, out, `"msg":"pair estimation finished"`)
}

func TestMultiProgressCallback(t *testing.T) {
	a, b := &recordingProgress{}, &recordingProgress{}
	m := MultiProgressCallback{a, b, NoOpProgressCallback{}}
	m.OnStart(3)
	m.OnProgress(1, 3)
	m.OnError(2, errors.New("x"))
	m.OnComplete()

	for _, r := range []*recordingProgress{a, b} {
		assert.Equal(t, 3, r.started)
		assert.Equal(t, []int{1}, r.progress)
		assert.Equal(t, []int{2}, r.errors)
		assert.True(t, r.complete)
	}
}
