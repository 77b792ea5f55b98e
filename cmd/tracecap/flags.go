package main

import "time"

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string // path to TOML config file (optional)
}

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	ConfigPath string
	Port       int
	Daemonize  bool
	LogFile    string
}

// ReadFlags holds flags for the read command.
type ReadFlags struct {
	Tail       int
	APIUrl     string
	APITimeout time.Duration
}

// SubmitFlags holds flags for the submit command.
type SubmitFlags struct {
	Label      string
	Data       string
	APIUrl     string
	APITimeout time.Duration
}

// RemoteFlags holds the daemon connection flags for stop/status/clear.
type RemoteFlags struct {
	APIUrl     string
	APITimeout time.Duration
}
