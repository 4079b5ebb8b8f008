package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestConsoleHandlerFoldsComponentIntoPrefix(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	handler := newConsoleHandler(&buf, levelVar, false)
	logger := slog.New(handler).With(String(FieldComponent, "monitor"))

	logger.Info("device attached", String(FieldDeviceID, "abc123"))

	line := buf.String()
	if !strings.Contains(line, "INFO monitor: device attached") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "device_id=abc123") {
		t.Fatalf("missing device_id attr: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should not appear as an attr: %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar, false))

	logger.Info("scan", String(FieldPath, "Artist Name/track.mp3"))

	if !strings.Contains(buf.String(), `path="Artist Name/track.mp3"`) {
		t.Fatalf("expected quoted path, got %q", buf.String())
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, levelVar, false))

	logger.Info("should not appear")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("info line leaked through warn level: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestFormatValue(t *testing.T) {
	if got := formatValue(slog.DurationValue(2 * time.Second)); got != "2s" {
		t.Fatalf("duration: %q", got)
	}
	if got := formatValue(slog.StringValue("")); got != `""` {
		t.Fatalf("empty string: %q", got)
	}
	if got := formatValue(slog.IntValue(42)); got != "42" {
		t.Fatalf("int: %q", got)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNoopHandler(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("noop logger should report disabled")
	}
	logger.Error("discarded")
}
