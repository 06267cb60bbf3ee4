package tools

import (
	"context"
	"log/slog"
	"time"
)

// logInvocation emits one structured log line per tool call, win or lose.
// Persisted audit history (for later querying) is a separate concern,
// handled by internal/audit; this is the live operational log line an
// operator tails in real time.
func logInvocation(logger *slog.Logger, toolName string, remoteAddr string, result Result, duration time.Duration) {
	level := slog.LevelInfo
	if !result.Success {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "tool invocation",
		"tool", toolName,
		"remote_addr", remoteAddr,
		"success", result.Success,
		"error", result.Error,
		"duration_ms", duration.Milliseconds(),
	)
}
