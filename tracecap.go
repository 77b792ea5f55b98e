package tracecap

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/tracecap/internal/capture"
	cfg "github.com/loykin/tracecap/internal/config"
	"github.com/loykin/tracecap/internal/history"
	"github.com/loykin/tracecap/internal/history/factory"
	"github.com/loykin/tracecap/internal/metrics"
	iapi "github.com/loykin/tracecap/internal/server"
	"github.com/loykin/tracecap/internal/sink"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Record = sink.Record

type Status = capture.Status

type Binding = capture.Binding

type Config = capture.Config

type HistorySink = history.Sink

// Server is a thin facade over the internal capture controller wired to
// its HTTP router. It provides a stable public API for embedding.

type Server struct{ inner *capture.Controller }

// New builds a stopped capture server for cfg with the default router
// mounted at the root path.
func New(c Config) *Server {
	return NewWithBasePath(c, "")
}

// NewWithBasePath mounts the capture routes under basePath
// (e.g. "/capture" results in /capture/log, /capture/health).
func NewWithBasePath(c Config, basePath string) *Server {
	ctl := capture.NewController(c)
	ctl.SetHandler(iapi.NewRouter(ctl, basePath).Handler())
	return &Server{inner: ctl}
}

func (s *Server) Start(requestedPort int) (Binding, error) { return s.inner.Start(requestedPort) }
func (s *Server) Stop() error                              { return s.inner.Stop() }
func (s *Server) Status() Status                           { return s.inner.Status() }
func (s *Server) ReadLogs(tail int) ([]Record, error)      { return s.inner.ReadLogs(tail) }
func (s *Server) ClearLogs() error                         { return s.inner.ClearLogs() }

// Append captures one record directly, bypassing HTTP. Works while
// stopped too; the record goes straight to the log file.
func (s *Server) Append(rec Record) error { return s.inner.Append(rec) }

// NewRecord builds a record stamped with the current instant.
func NewRecord(label string, data []byte) Record { return sink.NewRecord(label, data) }

// SetLogger replaces the server's diagnostic logger.
func (s *Server) SetLogger(l *slog.Logger) { s.inner.SetLogger(l) }

// SetHistorySink mirrors accepted records to an analytics sink.
func (s *Server) SetHistorySink(h HistorySink) { s.inner.SetHistorySink(h) }

// NewHistorySink creates an analytics sink from a DSN
// (sqlite://, postgres://, clickhouse://, opensearch://).
func NewHistorySink(dsn string) (HistorySink, error) { return factory.NewSinkFromDSN(dsn) }

// LoadConfig parses a TOML config file.
func LoadConfig(path string) (*cfg.FileConfig, error) { return cfg.Load(path) }

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the default registry.
// It returns any immediate listen error; otherwise it runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
