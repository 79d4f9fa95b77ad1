// Package utils provides logging and terminal helpers for gatekeeper.
package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// LoggerOptions configures a logger.
type LoggerOptions struct {
	Level           string
	Output          io.Writer
	Prefix          string
	TimeFormat      string
	ReportCaller    bool
	ReportTimestamp bool
}

// DefaultLoggerOptions returns options for CLI logging to stderr.
func DefaultLoggerOptions() LoggerOptions {
	return LoggerOptions{
		Level:           "info",
		Output:          os.Stderr,
		Prefix:          "gatekeeper",
		TimeFormat:      time.Kitchen,
		ReportTimestamp: true,
	}
}

func parseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// InitLogger builds a logger from opts.
func InitLogger(opts LoggerOptions) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return log.NewWithOptions(out, log.Options{
		Level:           parseLevel(opts.Level),
		Prefix:          opts.Prefix,
		TimeFormat:      opts.TimeFormat,
		ReportCaller:    opts.ReportCaller,
		ReportTimestamp: opts.ReportTimestamp,
	})
}

// InitDefaultLogger builds the stderr logger, honoring GATEKEEPER_LOG_LEVEL.
func InitDefaultLogger() *log.Logger {
	opts := DefaultLoggerOptions()
	if lvl := os.Getenv("GATEKEEPER_LOG_LEVEL"); lvl != "" {
		opts.Level = lvl
	}
	return InitLogger(opts)
}

// InitFileLogger builds a logger appending to path. The returned closer
// releases the file.
func InitFileLogger(path string, opts LoggerOptions) (*log.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	opts.Output = f
	if opts.TimeFormat == "" {
		opts.TimeFormat = time.RFC3339
	}
	opts.ReportTimestamp = true
	return InitLogger(opts), f, nil
}

// ExecutionLogPath returns the per-execution log file path under dir.
// commandID is reduced to a filename-safe form.
func ExecutionLogPath(dir, commandID string, at time.Time) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, commandID)
	name := fmt.Sprintf("%s_%s.log", at.UTC().Format("20060102-150405.000"), safe)
	return filepath.Join(dir, name)
}
