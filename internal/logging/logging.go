// Package logging hands out component-tagged structured loggers that share a
// single handler and level.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	level  = new(slog.LevelVar)
	output = &switchWriter{w: os.Stderr}

	handler slog.Handler = slog.NewTextHandler(output, &slog.HandlerOptions{Level: level})
)

// switchWriter lets every logger follow SetOutput, including ones created
// before the call
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// New returns a logger whose records carry component=name
func New(name string) *slog.Logger {
	return slog.New(handler).With("component", name)
}

// SetOutput redirects every logger to w
func SetOutput(w io.Writer) {
	output.mu.Lock()
	defer output.mu.Unlock()
	output.w = w
}

// SetLevel parses one of debug, info, warn or error and applies it to all loggers
func SetLevel(name string) error {
	var l slog.Level
	switch strings.ToLower(name) {
	case "debug":
		l = slog.LevelDebug
	case "", "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", name)
	}
	level.Set(l)
	return nil
}

// Discard returns a logger that drops everything
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
