// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shaderlab

import (
	"log/slog"

	"github.com/gogpu/shaderlab/internal/logging"
)

// SetLogger configures the logger for shaderlab and all its sub-packages.
// By default, shaderlab produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by shaderlab:
//   - [slog.LevelDebug]: internal diagnostics (pipeline state, buffer sizes, request ids)
//   - [slog.LevelInfo]: lifecycle events (device selected, generation applied)
//   - [slog.LevelWarn]: non-fatal issues (device fallback, superseded results)
//
// Example:
//
//	shaderlab.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the current logger used by shaderlab.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logging.Logger()
}
