package logwriter_test

import (
	"testing"
	"time"

	"github.com/micro-nova/devlog-go/internal/logwriter"
)

func TestFormatLine(t *testing.T) {
	ts := time.Date(2026, 3, 7, 9, 5, 1, 0, time.UTC)
	tests := []struct {
		name  string
		level logwriter.Level
		msg   string
		args  []any
		want  string
	}{
		{"no args", logwriter.LevelLog, "started", nil, "📠 [07.03.2026 09:05:01 LOG]: ▸ started"},
		{"args joined", logwriter.LevelError, "failed", []any{"io", 42}, "📠 [07.03.2026 09:05:01 ERROR]: ▸ failed io, 42"},
		{"unknown level", logwriter.Level(99), "x", nil, "📠 [07.03.2026 09:05:01 ?]: ▸ x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := logwriter.FormatLine(ts, tt.level, tt.msg, tt.args...); got != tt.want {
				t.Errorf("FormatLine = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]logwriter.Level{
		"error": logwriter.LevelError,
		"WARN":  logwriter.LevelWarn,
		"info":  logwriter.LevelLog,
		"log":   logwriter.LevelLog,
		"trace": logwriter.LevelTrace,
		"none":  logwriter.LevelNone,
	}
	for in, want := range tests {
		got, err := logwriter.ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := logwriter.ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud) should fail")
	}
}

func TestLevelEnabled(t *testing.T) {
	threshold := logwriter.LevelLog
	if !threshold.Enabled(logwriter.LevelError) {
		t.Error("ERROR should pass LOG threshold")
	}
	if threshold.Enabled(logwriter.LevelDebug) {
		t.Error("DEBUG should not pass LOG threshold")
	}
	if threshold.Enabled(logwriter.LevelNone) {
		t.Error("NONE is never written")
	}
}
