package job

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-pkgz/lgr"
)

// Logger is an append-only durable record of a single job. The file is opened lazily on the
// first write and never truncated. Records are lgr lines: time, level and message, so each
// format string should start with a level prefix like [INFO]. Debug records are kept.
type Logger struct {
	path string

	mu   sync.Mutex
	file *os.File
	lg   *lgr.Logger
	err  error // sticky open error, writes are dropped after it
}

// NewLogger makes job logger for the given file path, nothing is created until the first write
func NewLogger(path string) *Logger {
	return &Logger{path: path}
}

// Logf appends a record to the job log
func (l *Logger) Logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lg == nil && l.err == nil {
		if l.err = l.open(); l.err != nil {
			lgr.Printf("[WARN] job log %s is not available, %v", l.path, l.err)
		}
	}
	if l.lg == nil {
		return
	}
	l.lg.Logf(format, args...)
}

// Path returns location of the log file
func (l *Logger) Path() string {
	return l.path
}

// Close closes the underlying file. Safe to call multiple times, the next write reopens it in append mode.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lg, l.err = nil, nil
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("failed to close job log %s: %w", l.path, err)
	}
	return nil
}

func (l *Logger) open() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("can't make log directory: %w", err)
	}
	fh, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec // path derived from validated job id
	if err != nil {
		return fmt.Errorf("can't open log file: %w", err)
	}
	l.file = fh
	l.lg = lgr.New(lgr.Out(fh), lgr.Err(io.Discard), lgr.Debug, lgr.Msec)
	return nil
}
