package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Resolver decides which port the capture listener binds to. Priority,
// highest first: an explicit requested port, the persisted port from the
// most recent running session, then 0 to let the platform assign an
// ephemeral port. Missing or unparseable persisted values fall through
// silently; Resolve has no error conditions.
type Resolver struct {
	PortFile string
}

// Resolve returns the port to bind with for the given request.
// requested <= 0 means "no explicit port".
func (r Resolver) Resolve(requested int) int {
	if requested > 0 {
		return requested
	}
	if p, ok := r.Persisted(); ok {
		return p
	}
	return 0
}

// Persisted reads the last bound port from the port file. The second
// return is false when the file is missing or does not hold a
// non-negative base-10 integer.
func (r Resolver) Persisted() (int, bool) {
	if r.PortFile == "" {
		return 0, false
	}
	b, err := os.ReadFile(r.PortFile)
	if err != nil {
		return 0, false
	}
	p, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || p < 0 {
		return 0, false
	}
	return p, true
}

// Persist writes port to the port file as a plain base-10 integer string,
// creating the containing directory if needed. The file is never deleted;
// it lets a later session without an explicit port reuse the binding.
func (r Resolver) Persist(port int) error {
	if r.PortFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.PortFile), 0o750); err != nil {
		return fmt.Errorf("create port file dir: %w", err)
	}
	if err := os.WriteFile(r.PortFile, []byte(strconv.Itoa(port)), 0o644); err != nil {
		return fmt.Errorf("write port file: %w", err)
	}
	return nil
}
