package cli

import (
	"slices"
	"strings"
	"sync"
)

// LogWriter is an io.Writer that keeps the last lines written to it, so a
// slog handler can feed the log section of a redrawn frame.
type LogWriter struct {
	mu    sync.Mutex
	lines []string
	max   int
}

// NewLogWriter creates a writer keeping at most maxLines lines.
func NewLogWriter(maxLines int) *LogWriter {
	return &LogWriter{max: max(maxLines, 1)}
}

// Write implements io.Writer.
func (w *LogWriter) Write(p []byte) (int, error) {
	text := strings.TrimRight(string(p), "\n")
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, strings.Split(text, "\n")...)
	if over := len(w.lines) - w.max; over > 0 {
		w.lines = slices.Delete(w.lines, 0, over)
	}
	return len(p), nil
}

// Lines returns the kept lines, oldest first.
func (w *LogWriter) Lines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.lines)
}
