package logger

import (
	"log/slog"
	"time"
)

// LogEvent logs one event application.
func LogEvent(participantID, questID, status string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("type", "event"),
		slog.String("participant_id", participantID),
		slog.String("quest_id", questID),
		slog.String("status", status),
		slog.Duration("took", duration),
	}

	if err != nil {
		slog.Error("Event rejected", append(attrs, slog.Any("error", err))...)
	} else {
		slog.Info("Event applied", attrs...)
	}
}

// LogSweep logs one sweeper pass.
func LogSweep(candidates, expired int, duration time.Duration) {
	slog.Info("Expiry sweep",
		slog.String("type", "sweep"),
		slog.Int("candidates", candidates),
		slog.Int("expired", expired),
		slog.Duration("took", duration),
	)
}

// LogSystem logs system events.
func LogSystem(msg string, attrs ...any) {
	baseAttrs := []any{slog.String("type", "sys")}
	slog.Info(msg, append(baseAttrs, attrs...)...)
}

// LogError logs error events.
func LogError(msg string, err error, attrs ...any) {
	baseAttrs := []any{
		slog.String("type", "error"),
		slog.Any("error", err),
	}
	slog.Error(msg, append(baseAttrs, attrs...)...)
}
