package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"warn", "warn", slog.LevelWarn},
		{"warning alias", "WARNING", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"mixed case Debug", "Debug", slog.LevelDebug},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
		logAtInfo  bool
	}{
		{"info filters debug", "info", false, true},
		{"debug passes debug", "debug", true, true},
		{"warn filters info", "warn", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			if got := strings.Contains(buf.String(), "debug message"); got != tt.logAtDebug {
				t.Errorf("debug visible = %v, want %v (buf: %q)", got, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Info("info message")
			if got := strings.Contains(buf.String(), "info message"); got != tt.logAtInfo {
				t.Errorf("info visible = %v, want %v (buf: %q)", got, tt.logAtInfo, buf.String())
			}
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(context.Background(), LevelTrace, "raw sample")

	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected TRACE label, got %q", buf.String())
	}
}

func TestNewLoggerWithFormat_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithFormat("info", FormatJSON, &buf)
	logger.Info("run sealed", "protocol", "lwm2m", "trials", 5)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["protocol"] != "lwm2m" {
		t.Errorf("protocol = %v, want lwm2m", entry["protocol"])
	}
}

func TestDiscard(t *testing.T) {
	// Must not panic and must not be nil.
	l := Discard()
	if l == nil {
		t.Fatal("Discard() returned nil")
	}
	l.Error("dropped")
}

func TestNewDecisionLogger_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	dl := NewDecisionLogger(dir, "info")
	if dl != nil {
		t.Error("expected nil DecisionLogger at info level")
	}

	dl.Log("verdict", map[string]any{"metric": "transport_time"})

	if _, err := os.Stat(filepath.Join(dir, "decisions.jsonl")); err == nil {
		t.Error("decisions.jsonl should not exist at info level")
	}
}

func TestNewDecisionLogger_DebugLevel(t *testing.T) {
	dir := t.TempDir()
	dl := NewDecisionLogger(dir, "debug")
	if dl == nil {
		t.Fatal("expected DecisionLogger at debug level")
	}
	defer dl.Close()

	dl.Log("verdict", map[string]any{"metric": "transport_time", "winner": "A"})

	data, err := os.ReadFile(filepath.Join(dir, "decisions.jsonl"))
	if err != nil {
		t.Fatalf("failed to read decisions.jsonl: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("failed to parse JSONL entry: %v", err)
	}
	if entry["event"] != "verdict" {
		t.Errorf("event = %v, want verdict", entry["event"])
	}
	if entry["winner"] != "A" {
		t.Errorf("winner = %v, want A", entry["winner"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in decision log entry")
	}
}

func TestDecisionWriter_MultipleEvents(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDecisionWriter(&buf)

	dl.Log("trial_rejected", map[string]any{"trial": 2})
	dl.Log("verdict", map[string]any{"metric": "session_time"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("bad first line: %v", err)
	}
	if first["event"] != "trial_rejected" {
		t.Errorf("first event = %v, want trial_rejected", first["event"])
	}
}

func TestDecisionLogger_DoesNotMutateCallerMap(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDecisionWriter(&buf)

	fields := map[string]any{"metric": "encoding_time"}
	dl.Log("verdict", fields)

	if _, ok := fields["time"]; ok {
		t.Error("Log() injected 'time' into the caller's map")
	}
	if _, ok := fields["event"]; ok {
		t.Error("Log() injected 'event' into the caller's map")
	}
}

func TestDecisionLogger_NilAndClosedAreSafe(t *testing.T) {
	var nilLogger *DecisionLogger
	nilLogger.Log("verdict", nil)
	nilLogger.Close()

	dir := t.TempDir()
	dl := NewDecisionLogger(dir, "trace")
	dl.Log("before", nil)
	dl.Close()
	dl.Log("after", nil)

	data, err := os.ReadFile(filepath.Join(dir, "decisions.jsonl"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(data), "after") {
		t.Error("events logged after Close should be dropped")
	}
}

func TestDecisionLogger_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	dl := NewDecisionLogger(dir, "debug")
	defer dl.Close()
	dl.Log("perm_test", nil)

	info, err := os.Stat(filepath.Join(dir, "decisions.jsonl"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
}
