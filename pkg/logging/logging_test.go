package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func decodeLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(line), &out); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, line)
	}
	return out
}

func TestJSONLoggerEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	logger.Info("version fetched",
		ContainerID("GTM-AAAA111"),
		Count(3),
	)

	entry := decodeLine(t, buf.String())
	if entry["level"] != "INFO" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry["msg"] != "version fetched" {
		t.Errorf("msg = %v", entry["msg"])
	}
	fields, _ := entry["fields"].(map[string]any)
	if fields["container_id"] != "GTM-AAAA111" {
		t.Errorf("container_id = %v", fields["container_id"])
	}
	if fields["count"] != float64(3) {
		t.Errorf("count = %v", fields["count"])
	}
	if _, err := time.Parse(time.RFC3339Nano, entry["time"].(string)); err != nil {
		t.Errorf("time not RFC3339Nano: %v", err)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, WarnLevel)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")
	logger.Error("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}

	logger.SetLevel(DebugLevel)
	buf.Reset()
	logger.Debug("now visible")
	if buf.Len() == 0 {
		t.Error("debug entry dropped after SetLevel(DebugLevel)")
	}
}

func TestWithPresetFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewJSONLogger(&buf, InfoLevel)
	child := base.With(RunID("r-1"), Component("checker"))

	child.Info("step done", Count(1))

	fields, _ := decodeLine(t, buf.String())["fields"].(map[string]any)
	if fields["run_id"] != "r-1" || fields["component"] != "checker" {
		t.Errorf("preset fields missing: %v", fields)
	}
	if fields["count"] != float64(1) {
		t.Errorf("call fields missing: %v", fields)
	}

	// The parent must stay unaffected.
	buf.Reset()
	base.Info("plain")
	if fields, ok := decodeLine(t, buf.String())["fields"].(map[string]any); ok {
		t.Errorf("parent logger gained fields: %v", fields)
	}
}

func TestErrorField(t *testing.T) {
	if f := Error(errors.New("boom")); f.Key != "error" || f.Value != "boom" {
		t.Errorf("Error field = %+v", f)
	}
	if f := Error(nil); f.Value != nil {
		t.Errorf("nil error field = %+v", f)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"", InfoLevel},
		{"bogus", InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.Info("ignored")
	if child := logger.With(String("k", "v")); child == nil {
		t.Fatal("NopLogger.With returned nil")
	}
}

func TestDurationField(t *testing.T) {
	f := Latency(1500 * time.Millisecond)
	if f.Key != "latency" || f.Value != "1.5s" {
		t.Errorf("Latency field = %+v", f)
	}
}
