// Package metrics exposes the chat service's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one service instance.
type Metrics struct {
	registry *prometheus.Registry

	Connections   prometheus.Gauge
	Rooms         prometheus.Gauge
	Events        *prometheus.CounterVec
	Messages      prometheus.Counter
	RateLimited   prometheus.Counter
	PolicyDenials *prometheus.CounterVec
	DroppedFrames prometheus.Counter
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatd",
			Name:      "ws_connections",
			Help:      "Open websocket connections.",
		}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatd",
			Name:      "ws_rooms",
			Help:      "Conversations with at least one joined connection.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatd",
			Name:      "ws_events_total",
			Help:      "Inbound websocket events by type.",
		}, []string{"type"}),
		Messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatd",
			Name:      "messages_relayed_total",
			Help:      "Messages fanned out to conversation rooms.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatd",
			Name:      "ws_rate_limited_total",
			Help:      "Inbound events rejected by the per-connection limiter.",
		}),
		PolicyDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatd",
			Name:      "policy_denials_total",
			Help:      "Requests denied by the access policy, by action.",
		}, []string{"action"}),
		DroppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatd",
			Name:      "ws_dropped_frames_total",
			Help:      "Outbound frames dropped because a connection's buffer was full.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Connections,
		m.Rooms,
		m.Events,
		m.Messages,
		m.RateLimited,
		m.PolicyDenials,
		m.DroppedFrames,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
