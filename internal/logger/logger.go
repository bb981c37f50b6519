// Package logger builds the process slog.Logger: JSON for machines, colored
// text for terminals, with request-scoped attributes pulled from context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// ContextExtractor extracts a slog attribute from context.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger writing to w in the given format. Unknown formats fall
// back to JSON.
func New(w io.Writer, level, format string, extractors ...ContextExtractor) *slog.Logger {
	lvl := ParseLevel(level)

	var handler slog.Handler
	if strings.EqualFold(format, FormatText) {
		handler = charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmLevel(lvl),
			ReportTimestamp: true,
			Formatter:       charmlog.TextFormatter,
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	}

	return slog.New(NewLogHandlerDecorator(handler, extractors...))
}

// RequestID returns an extractor for the id set by chi's RequestID middleware.
func RequestID() ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		id := middleware.GetReqID(ctx)
		if id == "" {
			return slog.Attr{}, false
		}
		return slog.String("request_id", id), true
	}
}

func charmLevel(level slog.Level) charmlog.Level {
	switch {
	case level <= slog.LevelDebug:
		return charmlog.DebugLevel
	case level <= slog.LevelInfo:
		return charmlog.InfoLevel
	case level <= slog.LevelWarn:
		return charmlog.WarnLevel
	default:
		return charmlog.ErrorLevel
	}
}
