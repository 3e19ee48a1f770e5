// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics exposes Prometheus collectors for login outcomes,
// incidents, notifications and HTTP traffic.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/olegiv/socmon/internal/model"
)

const namespace = "socmon"

// Options configures New.
type Options struct {
	// Registerer defaults to a fresh registry.
	Registerer prometheus.Registerer
	// Gatherer serves /metrics. Defaults to Registerer when it is a registry.
	Gatherer prometheus.Gatherer
	Buckets  []float64
}

// Metrics holds every collector.
type Metrics struct {
	Attempts        *prometheus.CounterVec
	IncidentsOpened prometheus.Counter
	IncidentsClosed prometheus.Counter
	Notifications   *prometheus.CounterVec
	Requests        *prometheus.CounterVec
	Duration        *prometheus.HistogramVec
	InFlight        prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New constructs the collectors and registers them.
func New(opts Options) (*Metrics, error) {
	reg := opts.Registerer
	gatherer := opts.Gatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	}
	if gatherer == nil {
		if g, ok := reg.(prometheus.Gatherer); ok {
			gatherer = g
		} else {
			gatherer = prometheus.DefaultGatherer
		}
	}

	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	m := &Metrics{gatherer: gatherer}
	var err error

	if m.Attempts, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "security_log",
		Name:      "entries_total",
		Help:      "Security log entries appended, partitioned by action and severity.",
	}, []string{"action", "severity"})); err != nil {
		return nil, err
	}

	if m.IncidentsOpened, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "incidents",
		Name:      "opened_total",
		Help:      "Brute-force incidents opened.",
	})); err != nil {
		return nil, err
	}

	if m.IncidentsClosed, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "incidents",
		Name:      "closed_total",
		Help:      "Log entries closed by an administrator.",
	})); err != nil {
		return nil, err
	}

	if m.Notifications, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "deliveries_total",
		Help:      "Incident notifications delivered, partitioned by sink and result.",
	}, []string{"sink", "result"})); err != nil {
		return nil, err
	}

	if m.Requests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests partitioned by method, route, and status code.",
	}, []string{"method", "route", "status"})); err != nil {
		return nil, err
	}

	if m.Duration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Histogram of HTTP request latencies in seconds partitioned by method, route, and status code.",
		Buckets:   buckets,
	}, []string{"method", "route", "status"})); err != nil {
		return nil, err
	}

	if m.InFlight, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "in_flight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})); err != nil {
		return nil, err
	}

	return m, nil
}

// register adds c to reg, reusing an identical collector that is already
// registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return c, fmt.Errorf("registering collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(C)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

// AttemptLogged counts one appended log entry.
func (m *Metrics) AttemptLogged(e model.LogEntry) {
	m.Attempts.WithLabelValues(e.Action, string(e.Severity)).Inc()
}

// IncidentOpened counts one brute-force incident.
func (m *Metrics) IncidentOpened(model.LogEntry) {
	m.IncidentsOpened.Inc()
}

// IncidentClosed counts one closed entry.
func (m *Metrics) IncidentClosed() {
	m.IncidentsClosed.Inc()
}

// NotificationDelivered counts one delivery attempt for sink.
func (m *Metrics) NotificationDelivered(sink string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Notifications.WithLabelValues(sink, result).Inc()
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request count, latency and in-flight requests. Routes
// are labelled with the chi pattern, not the raw path.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := prometheus.Labels{
			"method": r.Method,
			"route":  route,
			"status": strconv.Itoa(status),
		}
		m.Requests.With(labels).Inc()
		m.Duration.With(labels).Observe(time.Since(start).Seconds())
	})
}
