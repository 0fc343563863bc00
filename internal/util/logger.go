// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"io"
	"log/slog"
	"os"
)

// DebugEnvVar enables debug logging when set to any value.
const DebugEnvVar = "EXTSIGN_DEBUG"

// Logger discards output until InitLogger is called.
var Logger = slog.New(slog.DiscardHandler)

// InitLogger initializes the global logger with appropriate log level
// Set EXTSIGN_DEBUG=1 environment variable to enable debug logging
func InitLogger() {
	level := slog.LevelInfo
	if os.Getenv(DebugEnvVar) != "" {
		level = slog.LevelDebug
	}
	Logger = NewLogger(os.Stderr, level)
}

// NewLogger builds the CLI text logger. Stdout is left free for documents
// printed by the build commands.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Remove time and level for cleaner CLI output
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	})
	return slog.New(handler)
}

// Debug logs a debug message (only shown when EXTSIGN_DEBUG is set)
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}
