package logger

import (
	"context"
	"log/slog"
	"strings"
)

// unifiedFilterHandler implements the Unified tier's allow-list filter per
// spec.md §6: the unified log is the one users read, so it drops
// per-HTTP-request noise and debug-only diagnostic lines, keeping scan
// lifecycle, rating, and error events.
type unifiedFilterHandler struct {
	next slog.Handler
}

// NewUnifiedFilterHandler wraps h so that records tagged as HTTP-request
// chatter or debug-only diagnostics never reach the unified log.
func NewUnifiedFilterHandler(h slog.Handler) slog.Handler {
	return &unifiedFilterHandler{next: h}
}

var droppedUnifiedAttrs = []string{"http_method", "http_path", "debug", "verbose"}

func (h *unifiedFilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *unifiedFilterHandler) Handle(ctx context.Context, r slog.Record) error {
	if shouldDropFromUnified(r) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *unifiedFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &unifiedFilterHandler{next: h.next.WithAttrs(attrs)}
}

func (h *unifiedFilterHandler) WithGroup(name string) slog.Handler {
	return &unifiedFilterHandler{next: h.next.WithGroup(name)}
}

func shouldDropFromUnified(r slog.Record) bool {
	if strings.HasPrefix(r.Message, "http request") {
		return true
	}
	drop := false
	r.Attrs(func(a slog.Attr) bool {
		for _, name := range droppedUnifiedAttrs {
			if a.Key == name {
				drop = true
				return false
			}
		}
		return true
	})
	return drop
}
