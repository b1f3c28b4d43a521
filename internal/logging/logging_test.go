package logging

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"  Info  ", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Fatalf("ParseLevel(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNew_UnknownFormatFallsBack(t *testing.T) {
	logger := New("info", "bogus")
	if logger == nil {
		t.Fatalf("expected logger")
	}
	if !logger.Enabled(nil, slog.LevelInfo) {
		t.Fatalf("expected info level enabled")
	}
	if logger.Enabled(nil, slog.LevelDebug) {
		t.Fatalf("expected debug level disabled")
	}
}

func TestNewForTest_Silent(t *testing.T) {
	logger := NewForTest()
	if logger.Enabled(nil, slog.LevelWarn) {
		t.Fatalf("expected warn level disabled in test logger")
	}
}
