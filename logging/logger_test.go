package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogAdapter_Levels(t *testing.T) {
	var out bytes.Buffer
	logger := NewSlog(slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.Debug("debug message", "k", 1)
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	got := out.String()
	for _, want := range []string{"debug message", "k=1", "info message", "warn message", "error message"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q does not contain %q", got, want)
		}
	}
}

func TestSlogAdapter_With(t *testing.T) {
	var out bytes.Buffer
	logger := NewSlog(slog.New(slog.NewTextHandler(&out, nil))).With("runtime", "abc")

	logger.Info("stepped")

	if !strings.Contains(out.String(), "runtime=abc") {
		t.Errorf("expected runtime attribute, got %q", out.String())
	}
}

func TestNop(t *testing.T) {
	// Must not panic
	Nop().Error("ignored", "a", 1)
}
