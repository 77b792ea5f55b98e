package sink

import (
	"encoding/json"
	"time"
)

// Record is one captured event: a single line in the NDJSON log.
// Data holds the submitted payload verbatim so reads round-trip exactly
// what the client sent.
type Record struct {
	Timestamp string          `json:"timestamp"`
	Label     string          `json:"label"`
	Data      json.RawMessage `json:"data"`
}

// NewRecord builds a record stamped with the current instant in UTC.
func NewRecord(label string, data json.RawMessage) Record {
	if label == "" {
		label = "unknown"
	}
	return Record{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Label:     label,
		Data:      data,
	}
}
