package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_AttachesServiceField(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "velotrek-server", "info", "json")
	logger.Info("tile store opened", "path", "tiles.db")

	var rec map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["service"] != "velotrek-server" {
		t.Errorf("missing service field: %v", rec)
	}
	if rec["msg"] != "tile store opened" {
		t.Errorf("unexpected message: %v", rec)
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "velotrek-server", "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info record must be filtered at warn level")
	}
	if !strings.Contains(out, "kept") {
		t.Error("warn record must pass at warn level")
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "", "info", "text")
	logger.Info("hello")

	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Error("text format must not emit JSON")
	}
}
