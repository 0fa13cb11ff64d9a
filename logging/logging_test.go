package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/brensch/safesnek/game"
)

func TestPrettyJSONHandler_GroupsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.With("game_id", "g1").WithGroup("turn").Info("MOVE",
		"n", 3,
		"move", game.Left,
		"err", errors.New("boom"),
	)

	if !strings.Contains(buf.String(), "\n  \"") {
		t.Fatalf("output not indented: %q", buf.String())
	}
	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if doc["msg"] != "MOVE" || doc["level"] != "INFO" || doc["game_id"] != "g1" {
		t.Fatalf("doc=%v", doc)
	}
	turn, ok := doc["turn"].(map[string]any)
	if !ok {
		t.Fatalf("turn group missing: %v", doc)
	}
	if turn["n"] != float64(3) || turn["move"] != "left" || turn["err"] != "boom" {
		t.Fatalf("turn=%v", turn)
	}
}

func TestPrettyJSONHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %q", buf.String())
	}
	logger.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("warn missing: %q", buf.String())
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{FormatText, FormatJSON, FormatPretty, ""} {
		var buf bytes.Buffer
		l, err := New(&buf, format, "debug")
		if err != nil {
			t.Fatalf("format %q: %v", format, err)
		}
		l.Debug("hello")
		if !strings.Contains(buf.String(), "hello") {
			t.Fatalf("format %q: output=%q", format, buf.String())
		}
	}
	if _, err := New(&bytes.Buffer{}, "xml", "info"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if _, err := New(&bytes.Buffer{}, "text", "loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
