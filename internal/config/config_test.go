package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMinimal(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "tracecap.toml")
	data := `
[capture]
log_path = "/tmp/capture.ndjson"
port_file = "/tmp/capture.port"
`
	if err := os.WriteFile(file, []byte(data), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Capture.LogPath != "/tmp/capture.ndjson" {
		t.Fatalf("unexpected log path %q", cfg.Capture.LogPath)
	}
	if cfg.Server == nil || cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("server defaults not applied: %+v", cfg.Server)
	}
}

func TestLoadFull(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "tracecap.toml")
	data := `
[server]
host = "0.0.0.0"
port = 7070
base_path = "/capture"

[capture]
log_path = "/var/lib/tracecap/capture.ndjson"
port_file = "/var/lib/tracecap/port"
flush_interval = "2s"

[log]
level = "debug"
file = "/var/log/tracecap.log"
max_size_mb = 5

[metrics]
enabled = true
listen = ":9091"

[history]
dsn = "sqlite:///var/lib/tracecap/history.db"
`
	if err := os.WriteFile(file, []byte(data), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 7070 || cfg.Server.BasePath != "/capture" {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Capture.FlushInterval != 2*time.Second {
		t.Fatalf("flush interval %v", cfg.Capture.FlushInterval)
	}
	if cfg.Log == nil || cfg.Log.Level != "debug" || cfg.Log.MaxSizeMB != 5 {
		t.Fatalf("unexpected log config: %+v", cfg.Log)
	}
	if cfg.Metrics == nil || !cfg.Metrics.Enabled || cfg.Metrics.Listen != ":9091" {
		t.Fatalf("unexpected metrics config: %+v", cfg.Metrics)
	}
	if cfg.History == nil || cfg.History.DSN != "sqlite:///var/lib/tracecap/history.db" {
		t.Fatalf("unexpected history config: %+v", cfg.History)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefaultPaths(t *testing.T) {
	cfg := Default()
	if cfg.Capture.LogPath == "" || cfg.Capture.PortFile == "" {
		t.Fatalf("defaults incomplete: %+v", cfg.Capture)
	}
}
