// Package logging builds the charmbracelet/log loggers used by the server
// and the dashboard.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	charmLog "github.com/charmbracelet/log"
)

// NewConsole returns a styled logger writing to w.
func NewConsole(w io.Writer, level, prefix string) (*charmLog.Logger, error) {
	lvl, err := charmLog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", level, err)
	}
	if w == nil {
		w = io.Discard
	}
	return charmLog.NewWithOptions(w, charmLog.Options{
		Level:           lvl,
		Prefix:          prefix,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.TextFormatter,
	}), nil
}

// NewFile returns a logfmt logger appending to path and a func closing
// the file. The parent directory is created if needed.
func NewFile(path, level, prefix string) (*charmLog.Logger, func() error, error) {
	lvl, err := charmLog.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("parse logging level %q: %w", level, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	// Keep file output parseable and unstyled.
	logger := charmLog.NewWithOptions(f, charmLog.Options{
		Level:           lvl,
		Prefix:          prefix,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.LogfmtFormatter,
	})
	return logger, f.Close, nil
}

// Discard returns a logger that drops everything.
func Discard() *charmLog.Logger {
	return charmLog.NewWithOptions(io.Discard, charmLog.Options{Level: charmLog.FatalLevel})
}
