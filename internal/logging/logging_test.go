package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"trace": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_StdoutJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := New(&buf, Options{Level: "warn"})
	defer closer.Close()

	logger.Info("dropped")
	logger.Warn("kept", slog.String("product_id", "BTC-USDT"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["msg"] != "kept" || entry["product_id"] != "BTC-USDT" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNew_TeesIntoFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "matchcore.log")
	logger, closer := New(&buf, Options{Level: "info", File: path, MaxSizeMB: 1})

	logger.Info("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("file content = %q", data)
	}
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("stdout content = %q", buf.String())
	}
}
