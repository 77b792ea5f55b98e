package sink

import (
	"bytes"
	"encoding/json"
	"os"
)

// ReadFile parses the NDJSON log at path into records in file order.
// A missing file is an empty log, not an error. Blank lines and lines
// that fail to parse are discarded silently. A positive tail returns
// only the last tail records, preserving order.
func ReadFile(path string, tail int) ([]Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		// Observability must never fault the caller over storage trouble.
		return []Record{}, nil
	}
	recs := decodeLines(b)
	if tail > 0 && len(recs) > tail {
		recs = recs[len(recs)-tail:]
	}
	return recs, nil
}

func decodeLines(b []byte) []Record {
	lines := bytes.Split(b, []byte{'\n'})
	recs := make([]Record, 0, len(lines))
	for _, line := range lines {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			continue
		}
		recs = append(recs, r)
	}
	return recs
}
