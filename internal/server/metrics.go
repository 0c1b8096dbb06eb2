package server

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "freightview"

// newRegistry exposes the server's counters through a private
// Prometheus registry.
func (s *Server) newRegistry() *prometheus.Registry {
	counter := func(name, help string, v *int64) prometheus.Collector {
		return prometheus.NewCounterFunc(
			prometheus.CounterOpts{Namespace: metricsNamespace, Name: name, Help: help},
			func() float64 { return float64(atomic.LoadInt64(v)) },
		)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: metricsNamespace, Name: "watchers", Help: "Open promotion watch streams"},
			func() float64 { return float64(s.broker.Count()) },
		),
		counter("watchers_dropped_total", "Watchers dropped for falling behind", &s.metrics.WatchersDropped),
		counter("events_published_total", "Promotion events published", &s.metrics.EventsPublished),
		counter("promotions_created_total", "Promotions created", &s.metrics.PromotionsCreated),
		counter("errors_total", "Internal errors", &s.metrics.ErrorCount),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: metricsNamespace, Name: "uptime_seconds", Help: "Uptime in seconds"},
			func() float64 { return time.Since(s.started).Seconds() },
		),
	)
	return reg
}

func (s *Server) metricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
