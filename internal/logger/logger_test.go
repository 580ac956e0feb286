package logger_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/ember-ml/ember/internal/logger"
)

// TestParseLevel maps config strings onto slog levels.
func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"INFO", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := logger.ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestPretty_Output verifies messages and attributes reach the writer.
func TestPretty_Output(t *testing.T) {
	var buf bytes.Buffer
	log := logger.Pretty(&buf, slog.LevelInfo)

	log.Info("training started", "epoch", 3, "lr", 0.001)

	out := buf.String()
	if !strings.Contains(out, "training started") {
		t.Errorf("output missing message: %q", out)
	}
	if !strings.Contains(out, "epoch=3") {
		t.Errorf("output missing attribute: %q", out)
	}
	if !strings.Contains(out, "INFO") {
		t.Errorf("output missing level: %q", out)
	}
}

// TestPretty_LevelFiltering verifies records below the level are dropped.
func TestPretty_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := logger.Pretty(&buf, slog.LevelWarn)

	log.Debug("noise")
	log.Info("more noise")
	if buf.Len() != 0 {
		t.Errorf("sub-level records were written: %q", buf.String())
	}

	log.Warn("actual problem")
	if !strings.Contains(buf.String(), "actual problem") {
		t.Errorf("warn record missing: %q", buf.String())
	}
}

// TestWith verifies bound attributes appear on subsequent records.
func TestWith(t *testing.T) {
	var buf bytes.Buffer
	log := logger.Pretty(&buf, slog.LevelInfo).With("run_id", "abc123")

	log.Info("checkpoint saved")

	out := buf.String()
	if !strings.Contains(out, "run_id=abc123") {
		t.Errorf("bound attribute missing: %q", out)
	}
}

// TestPrettyHandler_QuotesSpacedValues verifies values with spaces are
// quoted so the output stays parseable by eye.
func TestPrettyHandler_QuotesSpacedValues(t *testing.T) {
	var buf bytes.Buffer
	log := logger.Pretty(&buf, slog.LevelInfo)

	log.Info("msg", "path", "my file.ember")

	if !strings.Contains(buf.String(), `"my file.ember"`) {
		t.Errorf("spaced value not quoted: %q", buf.String())
	}
}

// TestDiscard verifies the no-op logger accepts records quietly.
func TestDiscard(t *testing.T) {
	log := logger.Discard()
	log.Debug("a")
	log.Info("b", "k", "v")
	log.Warn("c")
	log.Error("d")
	log.With("k", "v").Info("e")
}

// TestContext verifies the context round trip and the default fallback.
func TestContext(t *testing.T) {
	var buf bytes.Buffer
	log := logger.Pretty(&buf, slog.LevelInfo)

	ctx := logger.WithContext(context.Background(), log)
	got := logger.FromContext(ctx)
	got.Info("through context")

	if !strings.Contains(buf.String(), "through context") {
		t.Errorf("context logger not used: %q", buf.String())
	}

	// Without a stored logger a usable default comes back.
	if logger.FromContext(context.Background()) == nil {
		t.Error("FromContext on empty context returned nil")
	}
}
