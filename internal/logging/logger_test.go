package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "json")

	logger.Info("hidden")
	logger.Warn("shown", "rows", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"rows":3`) {
		t.Errorf("output = %s, want a JSON warn line", out)
	}

	buf.Reset()
	New(&buf, "info", "text").Info("plain")
	if !strings.Contains(buf.String(), "msg=plain") {
		t.Errorf("text output = %s", buf.String())
	}
}

func withDefault(t *testing.T, buf *bytes.Buffer) {
	t.Helper()
	prev := slog.Default()
	slog.SetDefault(New(buf, "debug", "json"))
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestFromContext_RequestID(t *testing.T) {
	var buf bytes.Buffer
	withDefault(t, &buf)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	FromContext(ctx).Info("hello")

	if !strings.Contains(buf.String(), `"request_id":"req-42"`) {
		t.Errorf("output = %s, want request_id", buf.String())
	}

	buf.Reset()
	FromContext(context.Background()).Info("hello")
	if strings.Contains(buf.String(), "request_id") {
		t.Errorf("output = %s, want no request_id", buf.String())
	}
}

func TestForRun(t *testing.T) {
	var buf bytes.Buffer
	withDefault(t, &buf)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	ForRun(ctx, "run-7", "boq.xlsx").Info("parse finished")

	out := buf.String()
	for _, want := range []string{`"request_id":"req-1"`, `"run_id":"run-7"`, `"file":"boq.xlsx"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output = %s, want %s", out, want)
		}
	}

	buf.Reset()
	ForRun(context.Background(), "", "boq.csv").Info("sync")
	if strings.Contains(buf.String(), "run_id") {
		t.Errorf("output = %s, want no run_id", buf.String())
	}
}
