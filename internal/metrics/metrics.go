// Package metrics exposes Prometheus counters for the HTTP API and the order
// event stream.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yourbite/pos-api/internal/events"
)

const namespace = "yourbite"

type ServerMetrics struct {
	Requests    *prometheus.CounterVec
	LatencyMS   *prometheus.HistogramVec
	OrderEvents *prometheus.CounterVec
}

// NewServerMetrics creates the collectors and registers them with reg.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	orderEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "events_total",
		Help:      "Order lifecycle events by type and publish result.",
	}, []string{"type", "result"})

	reg.MustRegister(requests, latency, orderEvents)
	return &ServerMetrics{Requests: requests, LatencyMS: latency, OrderEvents: orderEvents}
}

// Middleware records one request count and latency sample per request,
// labelled with the matched chi route pattern.
func (m *ServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		label := routeLabel(r)
		m.Requests.WithLabelValues(label, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(label).Observe(float64(time.Since(start).Milliseconds()))
	})
}

func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return r.Method + " " + p
		}
	}
	return "unmatched"
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// CountingPublisher counts every event passed to the wrapped publisher.
type CountingPublisher struct {
	next    events.Publisher
	metrics *ServerMetrics
}

func NewCountingPublisher(next events.Publisher, m *ServerMetrics) *CountingPublisher {
	return &CountingPublisher{next: next, metrics: m}
}

func (p *CountingPublisher) Publish(ctx context.Context, e events.Event) error {
	err := p.next.Publish(ctx, e)
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.metrics.OrderEvents.WithLabelValues(e.Type, result).Inc()
	return err
}

func (p *CountingPublisher) Close() error { return p.next.Close() }
