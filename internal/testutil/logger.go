package testutil

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
)

// NopLogger returns a logger that discards all output
func NopLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// CapturedLogs collects JSON log lines so tests can assert on what a
// component reported
type CapturedLogs struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer
func (c *CapturedLogs) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// String returns everything logged so far
func (c *CapturedLogs) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// CaptureLogger returns a debug-level logger writing to the returned buffer
func CaptureLogger() (*slog.Logger, *CapturedLogs) {
	logs := &CapturedLogs{}
	return slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})), logs
}
