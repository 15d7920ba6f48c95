// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the hub.
type Metrics struct {
	clients    prometheus.Gauge
	handshakes *prometheus.CounterVec
	pushes     *prometheus.CounterVec
	dropped    prometheus.Counter
}

// NewMetrics registers the hub collectors with registerer (a private registry if nil).
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	factory := promauto.With(registerer)

	return &Metrics{
		clients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "leadcrm",
			Subsystem: "hub",
			Name:      "connected_clients",
			Help:      "Realtime clients that completed the handshake.",
		}),
		handshakes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadcrm",
			Subsystem: "hub",
			Name:      "handshakes_total",
			Help:      "Realtime handshakes by outcome.",
		}, []string{"outcome"}),
		pushes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadcrm",
			Subsystem: "hub",
			Name:      "pushes_total",
			Help:      "Event frames queued for clients, by event.",
		}, []string{"event"}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "leadcrm",
			Subsystem: "hub",
			Name:      "slow_clients_dropped_total",
			Help:      "Clients disconnected because their send queue was full.",
		}),
	}
}

// ConnectedClients exposes the client gauge.
func (metrics *Metrics) ConnectedClients() prometheus.Gauge { return metrics.clients }

// Handshakes exposes the handshake counter for outcome ("accepted" or "rejected").
func (metrics *Metrics) Handshakes(outcome string) prometheus.Counter {
	return metrics.handshakes.WithLabelValues(outcome)
}

// Pushes exposes the push counter for event.
func (metrics *Metrics) Pushes(event string) prometheus.Counter {
	return metrics.pushes.WithLabelValues(event)
}
