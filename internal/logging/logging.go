// Package logging builds the logr.Logger used across datagov.
//
// Loggers are backed by log/slog handlers. Verbosity follows logr
// conventions: V(0) is always shown, V(1) adds per-transfer detail and
// V(2) per-request HTTP detail.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-logr/logr"
)

type Format int

const (
	unknownFormat Format = iota
	TEXT
	JSON
)

func (f Format) String() string {
	switch f {
	case TEXT:
		return "TEXT"
	case JSON:
		return "JSON"
	}
	return "UNKNOWN"
}

// ParseFormat parses a log format name (case-insensitive).
func ParseFormat(raw string) (Format, error) {
	switch strings.ToUpper(raw) {
	case "", "TEXT":
		return TEXT, nil
	case "JSON":
		return JSON, nil
	}
	return TEXT, fmt.Errorf("unknown log format '%s', valid values are: [%s] (case-insensitive)", raw, strings.Join([]string{TEXT.String(), JSON.String()}, ", "))
}

// Options configures a logger.
type Options struct {
	// Writer receives log records.
	// Default: os.Stderr
	Writer io.Writer

	// Verbosity is the highest V level that is logged.
	Verbosity int

	// Format selects the record encoding.
	// Default: TEXT
	Format Format
}

// New builds a logger from opts.
func New(opts Options) logr.Logger {
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}
	if opts.Verbosity < 0 {
		opts.Verbosity = 0
	}

	handlerOpts := &slog.HandlerOptions{
		// logr V(n) maps to slog level -n.
		Level: slog.Level(-opts.Verbosity),
	}

	var handler slog.Handler
	switch opts.Format {
	case JSON:
		handler = slog.NewJSONHandler(opts.Writer, handlerOpts)
	default:
		handler = slog.NewTextHandler(opts.Writer, handlerOpts)
	}

	return logr.FromSlogHandler(handler)
}
