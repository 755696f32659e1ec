// Package log builds structured logging handlers for the cheshbon CLI.
//
// Grounded on MacroPower-x's log package: a slog.Handler factory keyed by
// level/format strings, paired with a Config type that wires itself into
// cobra/pflag flags. Cheshbon's kernel packages never log — every log call
// in this module happens in cmd/cheshbon, around calls into the kernel, not
// inside it.
package log

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
)

// Format is the log output format.
type Format string

const (
	FormatJSON    Format = "json"
	FormatLogfmt  Format = "logfmt"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownLogLevel = errors.New("unknown log level")
	ErrUnknownLogFormat = errors.New("unknown log format")
)

// CreateHandlerWithStrings builds a slog.Handler from level/format strings,
// the form CLI flags naturally arrive in.
func CreateHandlerWithStrings(w io.Writer, logLevel, logFormat string) (slog.Handler, error) {
	lvl, err := GetLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	fmtVal, err := GetFormat(logFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return CreateHandler(w, lvl, fmtVal), nil
}

// CreateHandler builds a slog.Handler for the given level and format.
func CreateHandler(w io.Writer, lvl slog.Level, fmtVal Format) slog.Handler {
	opts := &slog.HandlerOptions{AddSource: true, Level: lvl}
	switch fmtVal {
	case FormatJSON:
		return slog.NewJSONHandler(w, opts)
	case FormatLogfmt:
		return slog.NewTextHandler(w, opts)
	}
	return nil
}

// GetLevel parses a log level string.
func GetLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "error":
		return slog.LevelError, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	}
	return 0, ErrUnknownLogLevel
}

// GetFormat parses a log format string.
func GetFormat(format string) (Format, error) {
	f := Format(strings.ToLower(format))
	if slices.Contains([]Format{FormatJSON, FormatLogfmt}, f) {
		return f, nil
	}
	return "", ErrUnknownLogFormat
}

// GetAllLevelStrings lists the accepted level flag values, for help text
// and shell completion.
func GetAllLevelStrings() []string {
	return []string{"debug", "info", "warn", "error"}
}

// GetAllFormatStrings lists the accepted format flag values.
func GetAllFormatStrings() []string {
	return []string{string(FormatJSON), string(FormatLogfmt)}
}
