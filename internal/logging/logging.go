package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// New builds the process logger. Every record carries the invocation ID so
// the lines of one scheduled run can be grouped.
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", FormatText:
		handler = slog.NewTextHandler(w, opts)
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q (expected %s or %s)", format, FormatText, FormatJSON)
	}

	return slog.New(handler).With("invocation", NewInvocationID()), nil
}

// NewInvocationID returns a time-ordered unique ID
func NewInvocationID() string {
	return ulid.Make().String()
}
