package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewFileLoggerWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	l := New(Config{Level: "debug", File: path})
	l.Info("hello", "k", "v")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), "hello") || !strings.Contains(string(b), "k=v") {
		t.Fatalf("unexpected log output: %q", string(b))
	}
}

func TestNewStderrLogger(t *testing.T) {
	l := New(Config{})
	if l == nil {
		t.Fatal("nil logger")
	}
	if !l.Enabled(nil, slog.LevelInfo) {
		t.Fatal("info should be enabled by default")
	}
	if l.Enabled(nil, slog.LevelDebug) {
		t.Fatal("debug should be disabled by default")
	}
}
