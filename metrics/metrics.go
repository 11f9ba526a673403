// Package metrics exposes Prometheus collectors for the compute service and
// a standalone metrics server.
//
// The metrics server runs on its own listener, separate from the API server,
// so operators can firewall it independently. It serves /metrics and,
// optionally, the pprof debugging endpoints.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors holds the domain metrics recorded by the compute service.
type Collectors struct {
	ComputeRequestsTotal   *prometheus.CounterVec
	ComputeDuration        *prometheus.HistogramVec
	AttestationsIssued     prometheus.Counter
	ClassificationFailures prometheus.Counter
	StoreErrors            prometheus.Counter
}

// NewCollectors creates and registers the domain collectors under the given
// namespace. It must be called at most once per process; duplicate
// registration panics (prometheus.MustRegister semantics).
func NewCollectors(namespace string) *Collectors {
	c := &Collectors{
		ComputeRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compute_requests_total",
			Help:      "Total compute requests processed, by operation and status.",
		}, []string{"operation", "status"}),
		ComputeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_duration_seconds",
			Help:      "Histogram of compute pipeline durations by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		AttestationsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attestations_issued_total",
			Help:      "Total attestations signed and returned to callers.",
		}),
		ClassificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classification_failures_total",
			Help:      "Total batches rejected because a document matched no known shape.",
		}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Total attestation audit store write failures.",
		}),
	}

	prometheus.MustRegister(
		c.ComputeRequestsTotal,
		c.ComputeDuration,
		c.AttestationsIssued,
		c.ClassificationFailures,
		c.StoreErrors,
	)

	return c
}

// ObserveCompute records one finished compute request.
func (c *Collectors) ObserveCompute(operation, status string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.ComputeRequestsTotal.WithLabelValues(operation, status).Inc()
	c.ComputeDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// MetricsServer serves /metrics (and optionally pprof) on a dedicated listener.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server for the given listen address. An empty addr
// yields a no-op server so callers do not need to special-case disabled
// metrics.
func New(name, addr string) (*MetricsServer, error) {
	if name == "" {
		return nil, fmt.Errorf("metrics server requires a service name")
	}
	if addr == "" {
		return &MetricsServer{}, nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return &MetricsServer{srv: srv}, nil
}

// EnablePprof mounts the pprof handlers on the metrics listener.
func (m *MetricsServer) EnablePprof() {
	if m.srv == nil {
		return
	}
	mux := m.srv.Handler.(*http.ServeMux)
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}

// ListenAndServe starts the metrics listener. Returns http.ErrServerClosed
// after Shutdown, mirroring net/http.
func (m *MetricsServer) ListenAndServe() error {
	if m.srv == nil {
		return http.ErrServerClosed
	}
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	if m.srv == nil {
		return nil
	}
	return m.srv.Shutdown(ctx)
}
