// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the channel's health to Prometheus. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	state             *prometheus.GaugeVec
	reconnectAttempts prometheus.Counter
	eventsReceived    *prometheus.CounterVec
	emitsDropped      prometheus.Counter
}

// NewMetrics registers the channel collectors with registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "leadcrm",
			Subsystem: "realtime",
			Name:      "connection_state",
			Help:      "1 for the current connection state, 0 for the others.",
		}, []string{"state"}),
		reconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "leadcrm",
			Subsystem: "realtime",
			Name:      "reconnect_attempts_total",
			Help:      "Automatic reconnection attempts started.",
		}),
		eventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadcrm",
			Subsystem: "realtime",
			Name:      "events_received_total",
			Help:      "Server events received, by event name.",
		}, []string{"event"}),
		emitsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "leadcrm",
			Subsystem: "realtime",
			Name:      "emits_dropped_total",
			Help:      "Emits discarded because the channel was not connected.",
		}),
	}
}

func (metrics *Metrics) setState(current State) {
	if metrics == nil {
		return
	}
	for _, state := range allStates {
		value := 0.0
		if state == current {
			value = 1
		}
		metrics.state.WithLabelValues(string(state)).Set(value)
	}
}

func (metrics *Metrics) reconnectAttempt() {
	if metrics != nil {
		metrics.reconnectAttempts.Inc()
	}
}

func (metrics *Metrics) eventReceived(event string) {
	if metrics != nil {
		metrics.eventsReceived.WithLabelValues(event).Inc()
	}
}

func (metrics *Metrics) emitDropped() {
	if metrics != nil {
		metrics.emitsDropped.Inc()
	}
}

// State returns the gauge for one connection state.
func (metrics *Metrics) State(state State) prometheus.Gauge {
	return metrics.state.WithLabelValues(string(state))
}

// EventsReceived returns the counter for one event name.
func (metrics *Metrics) EventsReceived(event string) prometheus.Counter {
	return metrics.eventsReceived.WithLabelValues(event)
}

// EmitsDropped returns the counter of emits discarded while offline.
func (metrics *Metrics) EmitsDropped() prometheus.Counter {
	return metrics.emitsDropped
}

// ReconnectAttempts returns the counter of automatic reconnects started.
func (metrics *Metrics) ReconnectAttempts() prometheus.Counter {
	return metrics.reconnectAttempts
}
