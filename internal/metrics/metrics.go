package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	recordsAppended = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tracecap",
			Subsystem: "capture",
			Name:      "records_total",
			Help:      "Number of records appended to the capture log.",
		}, []string{"label"},
	)
	appendErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tracecap",
			Subsystem: "capture",
			Name:      "append_errors_total",
			Help:      "Number of failed append attempts.",
		},
	)
	rejectedSubmissions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tracecap",
			Subsystem: "capture",
			Name:      "rejected_submissions_total",
			Help:      "Number of submissions rejected as invalid JSON.",
		},
	)
	bytesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tracecap",
			Subsystem: "capture",
			Name:      "log_bytes_written_total",
			Help:      "Bytes handed to the capture log writer.",
		},
	)
	flushes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tracecap",
			Subsystem: "capture",
			Name:      "flushes_total",
			Help:      "Number of background and forced flushes.",
		},
	)
	truncations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tracecap",
			Subsystem: "capture",
			Name:      "truncations_total",
			Help:      "Number of clear operations on the capture log.",
		},
	)
	serverUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tracecap",
			Subsystem: "capture",
			Name:      "server_up",
			Help:      "1 while the capture listener is bound, 0 otherwise.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		recordsAppended, appendErrors, rejectedSubmissions,
		bytesWritten, flushes, truncations, serverUp,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncRecord(label string) {
	if regOK.Load() {
		recordsAppended.WithLabelValues(label).Inc()
	}
}

func IncAppendError() {
	if regOK.Load() {
		appendErrors.Inc()
	}
}

func IncRejected() {
	if regOK.Load() {
		rejectedSubmissions.Inc()
	}
}

func AddBytesWritten(n int) {
	if regOK.Load() {
		bytesWritten.Add(float64(n))
	}
}

func IncFlush() {
	if regOK.Load() {
		flushes.Inc()
	}
}

func IncTruncation() {
	if regOK.Load() {
		truncations.Inc()
	}
}

func SetServerUp(up bool) {
	if !regOK.Load() {
		return
	}
	if up {
		serverUp.Set(1)
	} else {
		serverUp.Set(0)
	}
}
