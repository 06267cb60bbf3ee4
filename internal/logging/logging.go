// Package logging builds the slog.Logger every long-running Smith process
// uses: a structured handler with a bracketed-level-prefix line format,
// writing through a size-capped rotating file.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// levelTag mirrors internal/logger's [INFO]/[WARN]/[ERR] prefixes, minus the
// ANSI color codes — these lines go to a log file, not an interactive
// terminal.
func levelTag(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "[DEBUG]"
	case l < slog.LevelWarn:
		return "[INFO] "
	case l < slog.LevelError:
		return "[WARN] "
	default:
		return "[ERR]  "
	}
}

// Handler is a slog.Handler producing one line per record: a timestamp, a
// bracketed level tag, the message, then key=value pairs for every
// attribute — the structured equivalent of separate Info/Warning/Error
// print helpers, reimplemented against the standard structured-logging
// interface instead of bespoke print functions.
type Handler struct {
	w     io.Writer
	level slog.Leveler
	attrs []slog.Attr
}

// NewHandler builds a Handler writing to w. minLevel filters records below
// it; nil defaults to slog.LevelInfo.
func NewHandler(w io.Writer, minLevel slog.Leveler) *Handler {
	if minLevel == nil {
		minLevel = slog.LevelInfo
	}
	return &Handler{w: w, level: minLevel}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	line := fmt.Sprintf("%s %s %s", r.Time.Format(time.RFC3339), levelTag(r.Level), r.Message)
	for _, a := range h.attrs {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})
	_, err := fmt.Fprintln(h.w, line)
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &Handler{w: h.w, level: h.level, attrs: merged}
}

func (h *Handler) WithGroup(_ string) slog.Handler {
	// Flat line format has no nesting notion; groups degrade to the same
	// attribute list.
	return h
}

// New builds the logger a Smith process runs with: the bracketed-level
// Handler above, writing through a RotatingWriter at path.
func New(path string, maxSizeBytes int64, minLevel slog.Leveler) (*slog.Logger, io.Closer, error) {
	rw, err := NewRotatingWriter(path, maxSizeBytes)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(NewHandler(rw, minLevel)), rw, nil
}
