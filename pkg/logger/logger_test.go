package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/wonny/momentum-lab/pkg/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"unknown", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_Level(t *testing.T) {
	log := New(&config.Config{Env: "development", LogLevel: "warn", LogFormat: "json"})
	if got := log.Zerolog().GetLevel(); got != zerolog.WarnLevel {
		t.Errorf("level = %v, want warn", got)
	}
}

func TestWithFields_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug")

	log.Component("simulator").WithFields(map[string]interface{}{
		"symbol": "INFY",
		"shares": 10,
	}).WithError(errors.New("boom")).Warn("stale price")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON log line: %v", err)
	}

	if entry["component"] != "simulator" || entry["symbol"] != "INFY" {
		t.Errorf("missing fields in %v", entry)
	}
	if entry["error"] != "boom" {
		t.Errorf("error field = %v", entry["error"])
	}
	if entry["level"] != "warn" {
		t.Errorf("level = %v", entry["level"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "error")

	log.Info("hidden")
	log.Errorf("shown %d", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered: %s", out)
	}
	if !strings.Contains(out, "shown 1") {
		t.Errorf("error message missing: %s", out)
	}
}

func TestNop(t *testing.T) {
	Nop().WithField("k", "v").Error("nothing")
}

func TestFormattedHelpers(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug").Component("signal_cache")

	log.Debugf("cache hit %s", "momentum:abc")
	log.Infof("scheduler with %d jobs", 1)
	log.Warnf("%d of %d symbols have no price data", 2, 10)
	log.Errorf("panic recovered: %v", "boom")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %s", len(lines), buf.String())
	}

	want := []struct{ level, message string }{
		{"debug", "cache hit momentum:abc"},
		{"info", "scheduler with 1 jobs"},
		{"warn", "2 of 10 symbols have no price data"},
		{"error", "panic recovered: boom"},
	}
	for i, line := range lines {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("line %d is not JSON: %v", i, err)
		}
		if entry["level"] != want[i].level || entry["message"] != want[i].message {
			t.Errorf("line %d = %v, want %v", i, entry, want[i])
		}
		if entry["component"] != "signal_cache" {
			t.Errorf("line %d lost component field: %v", i, entry)
		}
	}
}
