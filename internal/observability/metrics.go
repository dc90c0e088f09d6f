// Package observability exposes PasteWatch's operational counters as a
// Prometheus exposition endpoint.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/gauge PasteWatch exports, registered against a
// dedicated registry rather than the global default so tests can build an
// isolated instance without colliding with another one in the same process.
type Metrics struct {
	FetchesTotal    prometheus.Counter
	FetchesFailed   *prometheus.CounterVec
	RetriesTotal    *prometheus.CounterVec
	MatchesTotal    prometheus.Counter
	PersistWrites   *prometheus.CounterVec
	ProxyEvictions  prometheus.Counter
	QueueDepth      *prometheus.GaugeVec
	DiscoveryErrors *prometheus.CounterVec

	registry *prometheus.Registry
	logger   *slog.Logger
	srv      *http.Server
}

// New builds a Metrics instance with every collector registered.
func New(logger *slog.Logger) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		FetchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pastewatch_fetches_total",
			Help: "Total pasty body fetches attempted.",
		}),
		FetchesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pastewatch_fetches_failed_total",
			Help: "Fetches that ultimately failed, by site.",
		}, []string{"site"}),
		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pastewatch_retries_total",
			Help: "Fetch retries attempted, by failure class.",
		}, []string{"class"}),
		MatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pastewatch_matches_total",
			Help: "Total pasties with at least one signature match.",
		}),
		PersistWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pastewatch_persist_writes_total",
			Help: "Durable-store writes, by outcome (ok/error).",
		}, []string{"outcome"}),
		ProxyEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pastewatch_proxy_evictions_total",
			Help: "Proxies evicted after exceeding the failure threshold.",
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pastewatch_queue_depth",
			Help: "Pending fetches queued per site.",
		}, []string{"site"}),
		DiscoveryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pastewatch_discovery_errors_total",
			Help: "Index page poll failures, by site.",
		}, []string{"site"}),
		registry: reg,
		logger:   logger.With("component", "metrics"),
	}

	reg.MustRegister(
		m.FetchesTotal,
		m.FetchesFailed,
		m.RetriesTotal,
		m.MatchesTotal,
		m.PersistWrites,
		m.ProxyEvictions,
		m.QueueDepth,
		m.DiscoveryErrors,
	)
	return m
}

// The Record* methods are nil-safe so call sites never have to branch on
// whether metrics are enabled: a nil *Metrics records nothing.

// RecordFetch counts one attempted pasty body fetch.
func (m *Metrics) RecordFetch() {
	if m == nil {
		return
	}
	m.FetchesTotal.Inc()
}

// RecordFetchFailed counts a fetch that exhausted its retry budget.
func (m *Metrics) RecordFetchFailed(site string) {
	if m == nil {
		return
	}
	m.FetchesFailed.WithLabelValues(site).Inc()
}

// RecordRetry counts one retry, labelled by failure class
// (client/server/paste).
func (m *Metrics) RecordRetry(class string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(class).Inc()
}

// RecordMatch counts a pasty with at least one signature hit.
func (m *Metrics) RecordMatch() {
	if m == nil {
		return
	}
	m.MatchesTotal.Inc()
}

// RecordPersistWrite counts one durable-store write by outcome (ok/error).
func (m *Metrics) RecordPersistWrite(outcome string) {
	if m == nil {
		return
	}
	m.PersistWrites.WithLabelValues(outcome).Inc()
}

// RecordProxyEviction counts one proxy removed from rotation.
func (m *Metrics) RecordProxyEviction() {
	if m == nil {
		return
	}
	m.ProxyEvictions.Inc()
}

// RecordQueueDepth reports the current number of pending fetches for a site.
func (m *Metrics) RecordQueueDepth(site string, depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(site).Set(float64(depth))
}

// RecordDiscoveryError counts one failed index-page poll.
func (m *Metrics) RecordDiscoveryError(site string) {
	if m == nil {
		return
	}
	m.DiscoveryErrors.WithLabelValues(site).Inc()
}

// Serve starts the Prometheus exposition endpoint in the background. Call
// Shutdown to stop it.
func (m *Metrics) Serve(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.srv = &http.Server{Addr: addr, Handler: mux}
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := m.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
}

// Shutdown gracefully stops the metrics server, if it was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.srv.Shutdown(shutdownCtx)
}
