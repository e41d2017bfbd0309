package logger

import (
	"context"
	"log/slog"
)

// multiHandler fans a record out to multiple handlers, so slog's package-level
// default (used by code written in the teacher's plain slog.Info/Error style)
// still reaches both the Unified and Info tiers.
type multiHandler struct {
	handlers []slog.Handler
	level    slog.Level
}

func (m multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= m.level
}

func (m multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithAttrs(attrs)
	}
	return multiHandler{handlers: out, level: m.level}
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithGroup(name)
	}
	return multiHandler{handlers: out, level: m.level}
}
