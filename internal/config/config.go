package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// FileConfig represents the top-level TOML structure:
//
//	[server]
//	host = "127.0.0.1"
//	port = 0
//	base_path = ""
//	pidfile = "/var/run/tracecap.pid"
//	logfile = "/var/log/tracecap/daemon.log"
//
//	[capture]
//	log_path = "~/.tracecap/capture.ndjson"
//	port_file = "~/.tracecap/port"
//	flush_interval = "5s"
//
//	[log]
//	level = "info"
//	file = "/var/log/tracecap/tracecap.log"
//	max_size_mb = 10
//
//	[metrics]
//	enabled = true
//	listen = ":9090"
//
//	[history]
//	dsn = "sqlite:///var/lib/tracecap/history.db"
type FileConfig struct {
	Server  *ServerConfig  `toml:"server" mapstructure:"server"`
	Capture *CaptureConfig `toml:"capture" mapstructure:"capture"`
	Log     *LogConfig     `toml:"log" mapstructure:"log"`
	Metrics *MetricsConfig `toml:"metrics" mapstructure:"metrics"`
	History *HistoryConfig `toml:"history" mapstructure:"history"`
}

type ServerConfig struct {
	Host     string `toml:"host" mapstructure:"host"`
	Port     int    `toml:"port" mapstructure:"port"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
	PidFile  string `toml:"pidfile" mapstructure:"pidfile"`
	LogFile  string `toml:"logfile" mapstructure:"logfile"`
}

type CaptureConfig struct {
	LogPath       string        `toml:"log_path" mapstructure:"log_path"`
	PortFile      string        `toml:"port_file" mapstructure:"port_file"`
	FlushInterval time.Duration `toml:"flush_interval" mapstructure:"flush_interval"`
}

type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	File       string `toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"`
}

type HistoryConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

// Default returns the configuration used when no file is given: capture
// state lives under ~/.tracecap (falling back to the working directory
// when the home directory cannot be determined).
func Default() *FileConfig {
	base := ".tracecap"
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, ".tracecap")
	}
	return &FileConfig{
		Server: &ServerConfig{Host: "127.0.0.1"},
		Capture: &CaptureConfig{
			LogPath:  filepath.Join(base, "capture.ndjson"),
			PortFile: filepath.Join(base, "port"),
		},
	}
}

// Load parses a TOML config file and fills unset sections with defaults.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	def := Default()
	if fc.Server == nil {
		fc.Server = def.Server
	}
	if fc.Server.Host == "" {
		fc.Server.Host = "127.0.0.1"
	}
	if fc.Capture == nil {
		fc.Capture = def.Capture
	}
	if fc.Capture.LogPath == "" {
		fc.Capture.LogPath = def.Capture.LogPath
	}
	if fc.Capture.PortFile == "" {
		fc.Capture.PortFile = def.Capture.PortFile
	}
	return &fc, nil
}
