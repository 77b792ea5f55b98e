package client

import "encoding/json"

// Record mirrors one capture log entry as returned by the daemon.
type Record struct {
	Timestamp string          `json:"timestamp"`
	Label     string          `json:"label"`
	Data      json.RawMessage `json:"data"`
}

// Status mirrors the daemon's state snapshot.
type Status struct {
	Active        bool   `json:"active"`
	Port          int    `json:"port,omitempty"`
	URL           string `json:"url,omitempty"`
	PersistedPort int    `json:"persisted_port,omitempty"`
}

// ErrorResponse is the daemon's JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
