package orchestrator

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// pkgLogger is the package-level logger used by components that are not
// handed the orchestrator's logger, such as signal watchers.
var (
	pkgLogger   *slog.Logger
	pkgLoggerMu sync.RWMutex
)

// setPackageLogger sets the package-level logger.
func setPackageLogger(l *slog.Logger) {
	pkgLoggerMu.Lock()
	defer pkgLoggerMu.Unlock()
	pkgLogger = l
}

// pkgLog returns the package-level logger, or a discarding one.
func pkgLog() *slog.Logger {
	pkgLoggerMu.RLock()
	l := pkgLogger
	pkgLoggerMu.RUnlock()

	if l == nil {
		return NopLogger()
	}
	return l
}

// RunLogger is a JSON logger writing to a file.
type RunLogger struct {
	*slog.Logger
	file *os.File
}

// NewRunLogger creates a logger appending JSON records to logPath.
// Creates parent directories if they don't exist.
func NewRunLogger(logPath string, level slog.Level) (*RunLogger, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})
	return &RunLogger{Logger: slog.New(handler), file: f}, nil
}

// NewRunLoggerForRepo creates a logger in the repo's .kairo/logs directory.
// Returns a discarding logger if the file cannot be opened.
func NewRunLoggerForRepo(repoPath string, level slog.Level) *RunLogger {
	logger, err := NewRunLogger(filepath.Join(repoPath, ".kairo", "logs", "kairo.log"), level)
	if err != nil {
		return &RunLogger{Logger: NopLogger()}
	}
	return logger
}

// Close closes the log file. Safe to call on a logger without a file.
func (l *RunLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// NopLogger returns a logger that discards everything.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
