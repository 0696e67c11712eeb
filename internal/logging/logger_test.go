package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []Entry {
	t.Helper()
	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("verbose"); !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("expected ErrUnknownLevel, got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("text"); err != nil || f != FormatText {
		t.Errorf("ParseFormat(text) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat('') = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestLevelString(t *testing.T) {
	if LevelWarn.String() != "warn" || Level(42).String() != "unknown" {
		t.Error("unexpected level names")
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf}).WithRunID("run-1").WithCommand("purge")

	l.Infof("graph deleted", map[string]any{"graph": "urn:g", "err": errors.New("boom")})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Level != "info" || e.Message != "graph deleted" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.RunID != "run-1" || e.Command != "purge" {
		t.Errorf("missing run tags: %+v", e)
	}
	if e.Fields["graph"] != "urn:g" || e.Fields["err"] != "boom" {
		t.Errorf("unexpected fields: %v", e.Fields)
	}
	if e.Timestamp.IsZero() {
		t.Error("timestamp missing")
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Output: &buf})

	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 || entries[0].Message != "w" || entries[1].Message != "e" {
		t.Errorf("unexpected entries: %+v", entries)
	}
	if l.Enabled(LevelInfo) || !l.Enabled(LevelError) {
		t.Error("Enabled disagrees with level")
	}
}

func TestLoggerWithDoesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: LevelInfo, Output: &buf})
	child := base.With(map[string]any{"mode": "data-only"}).WithRunID("r")

	base.Info("base")
	child.Info("child")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Fields != nil || entries[0].RunID != "" {
		t.Errorf("base logger was mutated: %+v", entries[0])
	}
	if entries[1].Fields["mode"] != "data-only" || entries[1].RunID != "r" {
		t.Errorf("child missing context: %+v", entries[1])
	}
}

func TestLoggerCaller(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Level: LevelDebug, Output: &buf, AddCaller: true}).Debug("here")

	entries := decodeLines(t, &buf)
	if !strings.HasPrefix(entries[0].Caller, "logging/logger_test.go:") {
		t.Errorf("unexpected caller %q", entries[0].Caller)
	}
}

func TestLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Format: FormatText, Output: &buf}).WithRunID("run-7")

	l.Warnf("item failed", map[string]any{"id": "42", "reason": "connection reset", "attempt": 2})

	line := buf.String()
	for _, want := range []string{
		"[warn] item failed",
		"runId=run-7",
		"attempt=2 id=42 reason=\"connection reset\"",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("text line %q missing %q", line, want)
		}
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	if l.Enabled(LevelError) {
		t.Error("Discard logger should not be enabled at any level")
	}
	l.Errorf("nothing", nil)
}
