package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("%q: expected %v, got %v", in, want, got)
		}
	}
}

func TestWithComponentTagsRecords(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Handler: slog.NewTextHandler(&buf, nil)}).WithComponent(ComponentUpload)
	l.Info("hello", FieldSessionID, "s1")
	out := buf.String()
	if strings.Count(out, "component=") != 2 || !strings.Contains(out, "component=upload") {
		t.Fatalf("unexpected output %q", out)
	}
	if l.Component() != ComponentUpload {
		t.Fatalf("unexpected component %q", l.Component())
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("expected fallback logger")
	}
}

func TestLogUploadLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Handler: slog.NewTextHandler(&buf, nil)}))
	sl.LogUpload(context.Background(), "s", "u", "f.xlsx", "abc", "rejected", "missing_sheets")
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "reason=missing_sheets") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
