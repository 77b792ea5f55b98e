package sink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Writer appends records to an NDJSON file through a buffered writer.
// One mutex guards the file handle: appends are serialized and flush,
// truncate and close are mutually exclusive with any in-flight append.
//
// When no buffered writer is open (capture server stopped), Append falls
// back to a direct open-append-close of the file. That path assumes a
// single process owns the log file; it is not safe against concurrent
// writers from other processes.
type Writer struct {
	mu   sync.Mutex
	path string
	f    *os.File
	bw   *bufio.Writer
}

// NewWriter returns a writer for the log file at path. The file is not
// opened until Open or the first Append.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the log file path.
func (w *Writer) Path() string { return w.path }

// Open creates the containing directory if needed and opens the log file
// for buffered appends. Calling Open while already open is a no-op.
func (w *Writer) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.openLocked()
}

func (w *Writer) openLocked() error {
	if w.bw != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o750); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	w.f = f
	w.bw = bufio.NewWriter(f)
	return nil
}

// IsOpen reports whether a buffered writer is currently active.
func (w *Writer) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bw != nil
}

// Append serializes rec to one NDJSON line and writes it. With an open
// buffered writer the caller only pays for the buffer hand-off; otherwise
// the line goes straight to the file so capture is never lost while the
// server is stopped. Returns the number of bytes queued or written.
func (w *Writer) Append(rec Record) (int, error) {
	line, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("marshal record: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.bw != nil {
		n, err := w.bw.Write(line)
		if err != nil {
			return n, fmt.Errorf("append record: %w", err)
		}
		return n, nil
	}

	// Direct append fallback for the stopped state.
	if err := os.MkdirAll(filepath.Dir(w.path), 0o750); err != nil {
		return 0, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open log file: %w", err)
	}
	n, werr := f.Write(line)
	cerr := f.Close()
	if werr != nil {
		return n, fmt.Errorf("append record: %w", werr)
	}
	if cerr != nil {
		return n, fmt.Errorf("close log file: %w", cerr)
	}
	return n, nil
}

// Flush forces buffered bytes to stable storage. A no-op when closed.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	if w.bw == nil {
		return nil
	}
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("flush log buffer: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("sync log file: %w", err)
	}
	return nil
}

// FlushAndClose flushes remaining bytes and releases the file handle.
// Safe to call multiple times.
func (w *Writer) FlushAndClose() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) closeLocked() error {
	if w.bw == nil {
		return nil
	}
	ferr := w.flushLocked()
	cerr := w.f.Close()
	w.bw = nil
	w.f = nil
	if ferr != nil {
		return ferr
	}
	if cerr != nil {
		return fmt.Errorf("close log file: %w", cerr)
	}
	return nil
}

// Truncate replaces the log file with an empty one. Any open buffered
// writer is flushed and closed first and reopened afterwards so capture
// continues uninterrupted while the server is running.
func (w *Writer) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	wasOpen := w.bw != nil
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o750); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	if err := os.WriteFile(w.path, nil, 0o644); err != nil {
		return fmt.Errorf("truncate log file: %w", err)
	}
	if wasOpen {
		return w.openLocked()
	}
	return nil
}

// ReadAll flushes pending bytes and parses the log back into records.
// A missing file yields an empty slice. Lines that fail to parse are
// skipped so one corrupted record never prevents recovery of the rest.
// A positive tail limits the result to the last tail records in order.
func (w *Writer) ReadAll(tail int) ([]Record, error) {
	w.mu.Lock()
	if err := w.flushLocked(); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	w.mu.Unlock()
	return ReadFile(w.path, tail)
}
