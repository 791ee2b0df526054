package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestForwarderMirrorsErrors(t *testing.T) {
	var buf bytes.Buffer
	logger, fwd := New(&buf, "info")

	var lines []string
	fwd.SetSink(func(line string) { lines = append(lines, line) })

	logger.Info("voice join", "user", "42")
	logger.With("log_id", "abcd1234").Error("insert failed", "err", "timeout")

	if len(lines) != 1 {
		t.Fatalf("sink received %d lines, want 1: %q", len(lines), lines)
	}
	want := "[ERROR] insert failed log_id=abcd1234 err=timeout"
	if lines[0] != want {
		t.Fatalf("forwarded line = %q, want %q", lines[0], want)
	}
	if !strings.Contains(buf.String(), "voice join") {
		t.Fatalf("info record missing from output: %q", buf.String())
	}
}

func TestForwarderWithoutSink(t *testing.T) {
	var buf bytes.Buffer
	logger, fwd := New(&buf, "error")
	fwd.SetSink(nil)

	logger.Info("dropped")
	logger.Error("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info record written at error level: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("error record missing: %q", out)
	}
}

func TestForwarderGroups(t *testing.T) {
	var buf bytes.Buffer
	logger, fwd := New(&buf, "info")
	var got string
	fwd.SetSink(func(line string) { got = line })

	logger.WithGroup("db").Error("query failed", "op", "aggregate")
	if want := "[ERROR] query failed db.op=aggregate"; got != want {
		t.Fatalf("forwarded line = %q, want %q", got, want)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogID(t *testing.T) {
	a, b := NewLogID(), NewLogID()
	if len(a) != 8 || a == b {
		t.Fatalf("NewLogID returned %q and %q", a, b)
	}
}
