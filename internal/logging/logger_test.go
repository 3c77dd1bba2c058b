package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"info", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"trace", LevelTrace},
		{"DEBUG", slog.LevelDebug},
		{"Trace", LevelTrace},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("info", &buf)

	log.Debug("hidden")
	log.Info("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug message emitted at info level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("info message missing at info level")
	}
}

func TestNewLoggerTraceLabel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("trace", &buf)

	log.Log(context.Background(), LevelTrace, "iteration", "lp", -123.4)

	out := buf.String()
	if !strings.Contains(out, "TRACE") {
		t.Errorf("trace record missing TRACE label: %q", out)
	}
	if !strings.Contains(out, "iteration") {
		t.Errorf("trace record missing message: %q", out)
	}
}
