package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Tiers is the set of loggers spec.md §2.8/§6 requires: Unified (filtered,
// user-facing), Info (everything at info-and-above), and Debug (full detail,
// including stack traces for bugs/invariant violations per spec.md §7).
type Tiers struct {
	Unified *slog.Logger
	Info    *slog.Logger
	Debug   *slog.Logger
}

var current *Tiers

// Init opens the three daily-rotating log files under logDir (unified.log,
// info.log, debug.log — 7 backups retained, rotated at local midnight per
// spec.md §6) and installs a combined handler as slog's process default so
// packages that only call slog.Info/slog.Error (the teacher's style) still
// land in unified.log and info.log, filtered and trace-tagged.
func Init(logDir, level string) (*Tiers, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory %s: %w", logDir, err)
	}

	slogLevel := parseLevel(level)

	unifiedWriter, err := newDailyRotatingFile(filepath.Join(logDir, "unified.log"), 7)
	if err != nil {
		return nil, err
	}
	infoWriter, err := newDailyRotatingFile(filepath.Join(logDir, "info.log"), 7)
	if err != nil {
		return nil, err
	}
	debugWriter, err := newDailyRotatingFile(filepath.Join(logDir, "debug.log"), 7)
	if err != nil {
		return nil, err
	}

	unifiedBase := slog.NewJSONHandler(unifiedWriter, &slog.HandlerOptions{Level: slog.LevelInfo})
	unifiedHandler := NewTraceHandler(NewUnifiedFilterHandler(unifiedBase))

	infoBase := slog.NewJSONHandler(infoWriter, &slog.HandlerOptions{Level: slog.LevelInfo})
	infoHandler := NewTraceHandler(infoBase)

	debugBase := slog.NewJSONHandler(debugWriter, &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true})
	debugHandler := NewTraceHandler(debugBase)

	tiers := &Tiers{
		Unified: slog.New(unifiedHandler),
		Info:    slog.New(infoHandler),
		Debug:   slog.New(debugHandler),
	}
	current = tiers

	slog.SetDefault(slog.New(multiHandler{handlers: []slog.Handler{unifiedHandler, infoHandler}, level: slogLevel}))
	tiers.Unified.Info("logger initialized", "level", level, "dir", logDir)

	return tiers, nil
}

// Current returns the tiers installed by the most recent Init call, or nil
// if Init has not been called (e.g. in unit tests).
func Current() *Tiers {
	return current
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
