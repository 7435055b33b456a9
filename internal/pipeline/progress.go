package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives progress while the pairs of a sequence are
// estimated. OnProgress and OnError may be called from the collecting
// goroutine only, never concurrently.
type ProgressCallback interface {
	OnStart(total int)
	OnProgress(current, total int)
	OnComplete()
	OnError(pair int, err error)
}

// NoOpProgressCallback ignores all progress.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)         {}
func (NoOpProgressCallback) OnProgress(int, int) {}
func (NoOpProgressCallback) OnComplete()         {}
func (NoOpProgressCallback) OnError(int, error)  {}

// ConsoleProgressCallback draws a progress bar, typically on stderr.
type ConsoleProgressCallback struct {
	mu      sync.Mutex
	w       io.Writer
	prefix  string
	width   int
	started time.Time
}

// NewConsoleProgressCallback creates a console progress reporter.
func NewConsoleProgressCallback(w io.Writer, prefix string) *ConsoleProgressCallback {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleProgressCallback{w: w, prefix: prefix, width: 30}
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = time.Now()
	_, _ = fmt.Fprintf(c.w, "%sestimating %d pairs\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnProgress(current, total int) {
	if total <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	filled := c.width * current / total
	bar := strings.Repeat("#", filled) + strings.Repeat(".", c.width-filled)
	_, _ = fmt.Fprintf(c.w, "\r%s[%s] %d/%d", c.prefix, bar, current, total)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "\n%sdone in %v\n", c.prefix, time.Since(c.started).Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) OnError(pair int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "\n%spair %d failed: %v\n", c.prefix, pair, err)
}

// LogProgressCallback logs progress through slog.
type LogProgressCallback struct {
	logger  *slog.Logger
	level   slog.Level
	started time.Time
}

// NewLogProgressCallback creates a log-based progress reporter.
func NewLogProgressCallback(logger *slog.Logger, level slog.Level) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, level: level}
}

func (l *LogProgressCallback) OnStart(total int) {
	l.started = time.Now()
	l.logger.Log(context.Background(), l.level, "pair estimation started", "pairs", total)
}

func (l *LogProgressCallback) OnProgress(current, total int) {
	l.logger.Log(context.Background(), l.level, "pair estimation progress",
		"current", current,
		"total", total,
		"elapsed", time.Since(l.started).Round(time.Millisecond))
}

func (l *LogProgressCallback) OnComplete() {
	l.logger.Log(context.Background(), l.level, "pair estimation finished",
		"elapsed", time.Since(l.started).Round(time.Millisecond))
}

func (l *LogProgressCallback) OnError(pair int, err error) {
	l.logger.Error("pair estimation error", "pair", pair, "error", err)
}

// MultiProgressCallback fans progress out to several callbacks.
type MultiProgressCallback []ProgressCallback

func (m MultiProgressCallback) OnStart(total int) {
	for _, cb := range m {
		cb.OnStart(total)
	}
}

func (m MultiProgressCallback) OnProgress(current, total int) {
	for _, cb := range m {
		cb.OnProgress(current, total)
	}
}

func (m MultiProgressCallback) OnComplete() {
	for _, cb := range m {
		cb.OnComplete()
	}
}

func (m MultiProgressCallback) OnError(pair int, err error) {
	for _, cb := range m {
		cb.OnError(pair, err)
	}
}
