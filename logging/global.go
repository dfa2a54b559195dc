package logging

import (
	"log/slog"
	"os"
)

// LoggingService wraps the configured slog logger.
type LoggingService struct {
	Logger *slog.Logger
}

var DefaultLoggingService *LoggingService

// InitLogger initializes the global logger instance.
func InitLogger(logDir string, retentionWeeks int, maxFileSize int64) {
	DefaultLoggingService = &LoggingService{
		Logger: SetupLogger(logDir, retentionWeeks, maxFileSize),
	}
	slog.SetDefault(DefaultLoggingService.Logger)
}

func activeLogger(level slog.Level) *slog.Logger {
	if DefaultLoggingService != nil && DefaultLoggingService.Logger != nil {
		return DefaultLoggingService.Logger
	}
	// Fallback to console logger if not initialized
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	activeLogger(slog.LevelInfo).Info(msg, args...)
}

func Warn(msg string, args ...any) {
	activeLogger(slog.LevelWarn).Warn(msg, args...)
}

func Error(msg string, args ...any) {
	activeLogger(slog.LevelError).Error(msg, args...)
}

func Debug(msg string, args ...any) {
	activeLogger(slog.LevelDebug).Debug(msg, args...)
}
