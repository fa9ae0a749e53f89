// Package metrics exposes Prometheus counters for the bot and the /metrics endpoint.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/redistbot/core/logger"
)

const namespace = "redistbot"

// Metrics groups the collectors on a private registry. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	Registry *prometheus.Registry

	ListingsPublished prometheus.Counter
	ListingsArchived  prometheus.Counter
	ClaimRequests     *prometheus.CounterVec
	Decisions         *prometheus.CounterVec
	StoreWrites       *prometheus.CounterVec
	Deliveries        *prometheus.CounterVec
	HandlerLatency    *prometheus.HistogramVec
}

// New builds and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ListingsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_published_total",
			Help:      "Listings published to the channel.",
		}),
		ListingsArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_archived_total",
			Help:      "Listings that reached zero remaining stock.",
		}),
		ClaimRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claim_requests_total",
			Help:      "Claim requests by outcome.",
		}, []string{"outcome"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negotiation_decisions_total",
			Help:      "Negotiation decisions by kind and outcome.",
		}, []string{"decision", "outcome"}),
		StoreWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Listing store flushes by status.",
		}, []string{"status"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Outbound channel and direct deliveries by kind and status.",
		}, []string{"kind", "status"}),
		HandlerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Telegram handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler", "status"}),
	}
	m.Registry.MustRegister(
		m.ListingsPublished,
		m.ListingsArchived,
		m.ClaimRequests,
		m.Decisions,
		m.StoreWrites,
		m.Deliveries,
		m.HandlerLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Outcome maps an error to a short label value.
func Outcome(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}

func (m *Metrics) Published() {
	if m != nil {
		m.ListingsPublished.Inc()
	}
}

func (m *Metrics) Archived() {
	if m != nil {
		m.ListingsArchived.Inc()
	}
}

func (m *Metrics) ClaimRequested(outcome string) {
	if m != nil {
		m.ClaimRequests.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Decision(decision, outcome string) {
	if m != nil {
		m.Decisions.WithLabelValues(decision, outcome).Inc()
	}
}

// StoreWrite matches listing.WriteObserver.
func (m *Metrics) StoreWrite(err error) {
	if m != nil {
		m.StoreWrites.WithLabelValues(Outcome(err)).Inc()
	}
}

func (m *Metrics) Delivery(kind string, err error) {
	if m != nil {
		m.Deliveries.WithLabelValues(kind, Outcome(err)).Inc()
	}
}

// ObserveHandler records one handled update.
func (m *Metrics) ObserveHandler(handler, status string, d time.Duration) {
	if m == nil {
		return
	}
	if handler == "" {
		handler = "unknown"
	}
	m.HandlerLatency.WithLabelValues(handler, status).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled. An empty addr
// disables the server.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	if addr == "" || m == nil {
		logger.L.Info("metrics disabled", slog.String("component", "metrics"), slog.String("event", "metrics.serve"))
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("metrics listening",
			slog.String("component", "metrics"),
			slog.String("event", "metrics.serve"),
			slog.String("addr", addr),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
