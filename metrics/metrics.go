// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ticketops"

type Metrics struct {
	reg *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	tickets       *prometheus.CounterVec
	rmaMoves      *prometheus.CounterVec
	transfers     *prometheus.CounterVec
	notifications prometheus.Counter
	outbox        *prometheus.CounterVec
	alerts        *prometheus.CounterVec
}

// New builds the collectors on a private registry, with Go and process
// collectors included.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_lookups_total",
			Help: "Response cache lookups by result (hit, miss, shared).",
		}, []string{"result"}),
		tickets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tickets_created_total",
			Help: "Tickets created by source.",
		}, []string{"source"}),
		rmaMoves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rma_transitions_total",
			Help: "RMA track transitions by track and target status.",
		}, []string{"track", "status"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stock_transfers_total",
			Help: "Stock transfer transitions by target status.",
		}, []string{"status"}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_sent_total",
			Help: "Notifications stored for users.",
		}),
		outbox: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "outbox_messages_total",
			Help: "Outbox publish attempts by result.",
		}, []string{"result"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "device_alerts_total",
			Help: "Inbound device alerts by outcome (created, merged, rejected).",
		}, []string{"outcome"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.cacheLookups,
		m.tickets, m.rmaMoves, m.transfers, m.notifications, m.outbox, m.alerts,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Middleware records request count and latency by chi route pattern, and
// cache results from the X-Cache response header.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		switch ww.Header().Get("X-Cache") {
		case "HIT":
			m.cacheLookups.WithLabelValues("hit").Inc()
		case "MISS":
			m.cacheLookups.WithLabelValues("miss").Inc()
		case "SHARED":
			m.cacheLookups.WithLabelValues("shared").Inc()
		}
	})
}

func (m *Metrics) TicketCreated(source string)   { m.tickets.WithLabelValues(source).Inc() }
func (m *Metrics) RMAMoved(track, status string) { m.rmaMoves.WithLabelValues(track, status).Inc() }
func (m *Metrics) TransferMoved(status string)   { m.transfers.WithLabelValues(status).Inc() }
func (m *Metrics) NotificationsSent(n int)       { m.notifications.Add(float64(n)) }
func (m *Metrics) AlertHandled(outcome string)   { m.alerts.WithLabelValues(outcome).Inc() }

// OutboxResult counts one drain pass.
func (m *Metrics) OutboxResult(sent, failed int) {
	m.outbox.WithLabelValues("sent").Add(float64(sent))
	m.outbox.WithLabelValues("failed").Add(float64(failed))
}
