package capture

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/loykin/tracecap/internal/history"
	"github.com/loykin/tracecap/internal/metrics"
	"github.com/loykin/tracecap/internal/sink"
)

const DefaultFlushInterval = 5 * time.Second

// Config holds the controller's file locations and tunables.
type Config struct {
	// Host the listener binds to. Defaults to 127.0.0.1.
	Host string
	// LogPath is the NDJSON capture log file.
	LogPath string
	// PortFile persists the last bound port across sessions.
	PortFile string
	// FlushInterval for the background flush. Defaults to 5s,
	// clamped to at least 100ms.
	FlushInterval time.Duration
}

// Binding describes a running listener.
type Binding struct {
	Port int    `json:"port"`
	URL  string `json:"url"`
}

// Status is the JSON-serializable snapshot of the controller state.
// While stopped, PersistedPort carries the last bound port when one is
// recorded on disk.
type Status struct {
	Active        bool   `json:"active"`
	Port          int    `json:"port,omitempty"`
	URL           string `json:"url,omitempty"`
	PersistedPort int    `json:"persisted_port,omitempty"`
}

// Controller is the capture lifecycle state machine: Stopped or
// Running(port). It owns the HTTP listener, the durable log writer and
// the background flush task while running. All transitions go through
// Start and Stop; both are idempotent.
type Controller struct {
	mu       sync.Mutex
	cfg      Config
	resolver Resolver
	writer   *sink.Writer
	handler  http.Handler
	logger   *slog.Logger
	hist     history.Sink

	running   bool
	port      int
	ln        net.Listener
	srv       *http.Server
	flushStop chan struct{}
	flushWG   sync.WaitGroup
}

// NewController builds a stopped controller for cfg.
func NewController(cfg Config) *Controller {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.FlushInterval < 100*time.Millisecond {
		cfg.FlushInterval = 100 * time.Millisecond
	}
	return &Controller{
		cfg:      cfg,
		resolver: Resolver{PortFile: cfg.PortFile},
		writer:   sink.NewWriter(cfg.LogPath),
		logger:   slog.Default(),
	}
}

// SetHandler injects the HTTP handler served while running. Must be set
// before Start; the server package provides it.
func (c *Controller) SetHandler(h http.Handler) { c.handler = h }

// SetLogger replaces the controller's diagnostic logger.
func (c *Controller) SetLogger(l *slog.Logger) {
	if l != nil {
		c.logger = l
	}
}

// SetHistorySink configures an optional analytics sink mirroring every
// accepted record. Passing nil clears it.
func (c *Controller) SetHistorySink(s history.Sink) {
	c.mu.Lock()
	c.hist = s
	c.mu.Unlock()
}

// Start transitions Stopped -> Running. While already running it returns
// the existing binding unchanged, regardless of requestedPort. A port
// already in use surfaces as an error: silently binding elsewhere would
// break instrumentation pointed at the requested port.
func (c *Controller) Start(requestedPort int) (Binding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return Binding{Port: c.port, URL: c.url(c.port)}, nil
	}

	port := c.resolver.Resolve(requestedPort)
	ln, err := net.Listen("tcp", net.JoinHostPort(c.cfg.Host, strconv.Itoa(port)))
	if err != nil {
		return Binding{}, fmt.Errorf("bind capture listener on port %d: %w", port, err)
	}
	actual := ln.Addr().(*net.TCPAddr).Port

	if err := c.writer.Open(); err != nil {
		_ = ln.Close()
		return Binding{}, err
	}

	if err := c.resolver.Persist(actual); err != nil {
		c.logger.Warn("failed to persist capture port", "port", actual, "error", err)
	}

	handler := c.handler
	if handler == nil {
		handler = http.NotFoundHandler()
	}
	c.srv = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	c.ln = ln
	go func(srv *http.Server, ln net.Listener) { _ = srv.Serve(ln) }(c.srv, ln)

	c.flushStop = make(chan struct{})
	c.flushWG.Add(1)
	go c.flushLoop(c.flushStop)

	c.running = true
	c.port = actual
	metrics.SetServerUp(true)
	c.logger.Info("capture server started", "port", actual, "log", c.cfg.LogPath)
	return Binding{Port: actual, URL: c.url(actual)}, nil
}

// Stop transitions Running -> Stopped. A no-op while stopped. The flush
// ticker is cancelled first and any in-flight flush is waited out, then
// the writer is flushed and closed and the listener unbound. The port
// file is left untouched so a later Start without an explicit port
// reuses the binding.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	close(c.flushStop)
	c.flushWG.Wait()

	werr := c.writer.FlushAndClose()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.srv.Shutdown(ctx); err != nil {
		_ = c.srv.Close()
	}
	c.srv = nil
	c.ln = nil

	c.running = false
	c.port = 0
	metrics.SetServerUp(false)
	c.logger.Info("capture server stopped")
	return werr
}

// StopAsync schedules Stop on a separate goroutine. Used by the HTTP
// stop endpoint, which cannot tear down the server it is served from.
func (c *Controller) StopAsync() {
	go func() {
		time.Sleep(100 * time.Millisecond)
		if err := c.Stop(); err != nil {
			c.logger.Warn("async stop", "error", err)
		}
	}()
}

// Status reports the current state. While stopped the persisted port is
// read from disk; read failures degrade to an absent value.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return Status{Active: true, Port: c.port, URL: c.url(c.port)}
	}
	st := Status{Active: false}
	if p, ok := c.resolver.Persisted(); ok {
		st.PersistedPort = p
	}
	return st
}

// Append writes one record to the durable log and mirrors it to the
// history sink when configured.
func (c *Controller) Append(rec sink.Record) error {
	n, err := c.writer.Append(rec)
	if err != nil {
		metrics.IncAppendError()
		return err
	}
	metrics.IncRecord(rec.Label)
	metrics.AddBytesWritten(n)

	c.mu.Lock()
	hist := c.hist
	c.mu.Unlock()
	if hist != nil {
		ev := history.Event{Type: history.EventAppend, OccurredAt: time.Now().UTC(), Record: rec}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hist.Send(ctx, ev); err != nil {
			c.logger.Warn("history sink send failed", "label", rec.Label, "error", err)
		}
	}
	return nil
}

// ReadLogs returns the parsed capture log; a positive tail limits the
// result to the last tail records.
func (c *Controller) ReadLogs(tail int) ([]sink.Record, error) {
	return c.writer.ReadAll(tail)
}

// ClearLogs truncates the capture log. While running the writer is
// reopened so capture continues uninterrupted.
func (c *Controller) ClearLogs() error {
	if err := c.writer.Truncate(); err != nil {
		return err
	}
	metrics.IncTruncation()

	c.mu.Lock()
	hist := c.hist
	c.mu.Unlock()
	if hist != nil {
		ev := history.Event{Type: history.EventClear, OccurredAt: time.Now().UTC()}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hist.Send(ctx, ev); err != nil {
			c.logger.Warn("history sink send failed", "error", err)
		}
	}
	return nil
}

func (c *Controller) flushLoop(stop <-chan struct{}) {
	defer c.flushWG.Done()
	t := time.NewTicker(c.cfg.FlushInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := c.writer.Flush(); err != nil {
				c.logger.Warn("background flush failed", "error", err)
				continue
			}
			metrics.IncFlush()
		case <-stop:
			return
		}
	}
}

func (c *Controller) url(port int) string {
	return fmt.Sprintf("http://%s", net.JoinHostPort(c.cfg.Host, strconv.Itoa(port)))
}
