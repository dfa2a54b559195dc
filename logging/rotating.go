// Package logging provides the structured logging service for the
// prescription analysis API: a weekly rotating file logger with retention
// and size limits, a global slog-backed service, and HTTP request logging
// middleware.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RotatingLogger writes log output to weekly files under a directory,
// rotating early when a file reaches the size limit and deleting files
// older than the retention period.
type RotatingLogger struct {
	logDir      string
	retention   time.Duration
	maxFileSize int64

	mu          sync.Mutex
	currentFile *os.File
	currentKey  string
	currentSize int64
	seq         int

	ctx         context.Context
	cancel      context.CancelFunc
	cleanupDone chan struct{}
}

// NewRotatingLogger creates a rotating logger with the given retention in
// weeks and maximum file size in bytes.
func NewRotatingLogger(logDir string, retentionWeeks int, maxFileSize int64) *RotatingLogger {
	ctx, cancel := context.WithCancel(context.Background())
	return &RotatingLogger{
		logDir:      logDir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
		ctx:         ctx,
		cancel:      cancel,
		cleanupDone: make(chan struct{}),
	}
}

// weekKey returns the ISO week key in YYYY-Www form.
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// rotate opens the log file for the given week key. Caller must hold mu.
func (rl *RotatingLogger) rotate(key string) error {
	if rl.currentFile != nil {
		if err := rl.currentFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file during rotation: %v\n", err)
		}
	}

	if key != rl.currentKey {
		rl.seq = 0
	}

	name := fmt.Sprintf("app-%s.log", key)
	if rl.seq > 0 {
		name = fmt.Sprintf("app-%s_%02d.log", key, rl.seq)
	}

	path := filepath.Join(rl.logDir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	rl.currentFile = file
	rl.currentKey = key
	rl.currentSize = 0
	if info, err := file.Stat(); err == nil {
		rl.currentSize = info.Size()
	}

	return nil
}

// Write implements io.Writer, rotating on week change or size limit.
func (rl *RotatingLogger) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := weekKey(time.Now())

	needsRotation := rl.currentFile == nil || key != rl.currentKey
	if !needsRotation && rl.maxFileSize > 0 && rl.currentSize+int64(len(p)) > rl.maxFileSize {
		rl.seq++
		needsRotation = true
	}

	if needsRotation {
		if err := rl.rotate(key); err != nil {
			return 0, err
		}
	}

	n, err := rl.currentFile.Write(p)
	rl.currentSize += int64(n)
	return n, err
}

// startCleanup deletes expired log files once a day until Close is called.
func (rl *RotatingLogger) startCleanup() {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		defer close(rl.cleanupDone)

		for {
			select {
			case <-rl.ctx.Done():
				return
			case <-ticker.C:
				if err := rl.cleanupOldLogs(); err != nil {
					slog.Warn("Failed to clean up old log files", "error", err)
				}
			}
		}
	}()
}

// cleanupOldLogs removes log files older than the retention period.
func (rl *RotatingLogger) cleanupOldLogs() error {
	entries, err := os.ReadDir(rl.logDir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := time.Now().Add(-rl.retention)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "app-") || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(rl.logDir, entry.Name())); err != nil {
				fmt.Fprintf(os.Stderr, "failed to remove old log file %s: %v\n", entry.Name(), err)
			}
		}
	}

	return nil
}

// Close stops the cleanup goroutine and closes the current file.
func (rl *RotatingLogger) Close() error {
	rl.cancel()

	select {
	case <-rl.cleanupDone:
	case <-time.After(5 * time.Second):
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.currentFile != nil {
		return rl.currentFile.Close()
	}
	return nil
}

// SetupLogger configures slog to write text to the console and JSON to a
// rotating file under logDir. If the directory cannot be created, logging
// falls back to console only.
func SetupLogger(logDir string, retentionWeeks int, maxFileSize int64) *slog.Logger {
	consoleHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		logger := slog.New(consoleHandler)
		logger.Error("Failed to create logs directory, logging to console only", "error", err)
		return logger
	}

	rotating := NewRotatingLogger(logDir, retentionWeeks, maxFileSize)
	rotating.startCleanup()

	fileHandler := slog.NewJSONHandler(rotating, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	return slog.New(&multiHandler{handlers: []slog.Handler{consoleHandler, fileHandler}})
}

// multiHandler fans a record out to every underlying handler.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
