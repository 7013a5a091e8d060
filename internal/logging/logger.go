// Package logging provides the shared structured logger for nextmove.
// Logs go to a dated file under ~/.nextmove/logs so the CLI output stays
// clean; NEXTMOVE_LOG_LEVEL and NEXTMOVE_LOG_STDERR override the defaults.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

var (
	// Logger is the global logger instance. Nil until Init is called;
	// the package-level helpers are no-ops in that state so library code
	// can log unconditionally.
	Logger *log.Logger

	logFile *os.File
)

// Init sets up the logging system. Safe to call once at process start.
func Init() error {
	var w io.Writer

	if os.Getenv("NEXTMOVE_LOG_STDERR") != "" {
		w = os.Stderr
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		logDir := filepath.Join(home, ".nextmove", "logs")
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}

		name := fmt.Sprintf("nextmove-%s.log", time.Now().Format("2006-01-02"))
		logFile, err = os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		w = logFile
	}

	Logger = log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           levelFromEnv(),
	})

	Logger.Info("nextmove started")
	return nil
}

func levelFromEnv() log.Level {
	switch os.Getenv("NEXTMOVE_LOG_LEVEL") {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Close flushes and closes the log file.
func Close() {
	if Logger != nil {
		Logger.Info("nextmove shutting down")
	}
	if logFile != nil {
		logFile.Close()
	}
}

// Info logs an info message.
func Info(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

// Debug logs a debug message.
func Debug(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

// Warn logs a warning message.
func Warn(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

// Error logs an error message.
func Error(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}

// WithPrefix returns a sub-logger with a prefix, or nil before Init.
func WithPrefix(prefix string) *log.Logger {
	if Logger != nil {
		return Logger.WithPrefix(prefix)
	}
	return nil
}
