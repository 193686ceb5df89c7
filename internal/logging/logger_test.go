// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNopHandler(t *testing.T) {
	h := nopHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), level) {
			t.Errorf("nopHandler.Enabled(%v) = true, want false", level)
		}
	}
	if err := h.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("nopHandler.Handle() = %v, want nil", err)
	}
	if !IsNop(h.WithAttrs([]slog.Attr{slog.String("k", "v")})) {
		t.Error("WithAttrs should return a nopHandler")
	}
	if !IsNop(h.WithGroup("g")) {
		t.Error("WithGroup should return a nopHandler")
	}
}

func TestSetAndRestore(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { Set(orig) })

	if !IsNop(Logger().Handler()) {
		t.Fatal("default logger should be silent")
	}

	var buf bytes.Buffer
	Set(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	Logger().Debug("compiled", "stage", "fragment")
	if !strings.Contains(buf.String(), "stage=fragment") {
		t.Errorf("log output = %q, want stage attribute", buf.String())
	}

	Set(nil)
	if !IsNop(Logger().Handler()) {
		t.Error("Set(nil) should restore the silent logger")
	}
}
