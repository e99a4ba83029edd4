package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error = %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestNewTextHasNoColorForBuffers(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("info", FormatText, &buf)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("frame processed", "mode", "webcam")
	logger.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "frame processed") || !strings.Contains(out, "mode=webcam") {
		t.Errorf("Unexpected output %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("Expected no ANSI colors when not writing to a terminal")
	}
	if strings.Contains(out, "hidden") {
		t.Error("Expected debug to be filtered at info level")
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("debug", FormatJSON, &buf)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Debug("capture started", "interval", "15s")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("Expected JSON line, got %q", buf.String())
	}
	if rec["msg"] != "capture started" || rec["interval"] != "15s" {
		t.Errorf("Unexpected record %v", rec)
	}
}

func TestNewUnknownFormat(t *testing.T) {
	if _, err := New("info", "xml", &bytes.Buffer{}); err == nil {
		t.Error("Expected error for unknown format")
	}
}
