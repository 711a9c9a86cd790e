// Package metrics defines the Prometheus collectors exported on /metrics.
//
// Every method is safe to call on a nil *Metrics, so components can be
// constructed without instrumentation in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/killfeedsc/killfeed-go/internal/linesource"
)

const namespace = "killfeed"

// Metrics holds the pipeline collectors.
type Metrics struct {
	linesRead       prometheus.Counter
	eventsParsed    *prometheus.CounterVec
	eventsDropped   prometheus.Counter
	eventsDeduped   prometheus.Counter
	messagesSent    prometheus.Counter
	clients         prometheus.Gauge
	clientsDropped  *prometheus.CounterVec
	sourceState     prometheus.Gauge
	sourceOffset    prometheus.Gauge
	sourceRotations prometheus.Counter
}

// New creates the collectors and registers them with reg.
// A nil reg creates unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		linesRead: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_read_total",
			Help:      "Complete log lines read from Game.log",
		}),
		eventsParsed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_parsed_total",
			Help:      "Events parsed from log lines by type",
		}, []string{"type"}),
		eventsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because the broadcast queue was full",
		}),
		eventsDeduped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_deduplicated_total",
			Help:      "Events suppressed as duplicates",
		}),
		messagesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "WebSocket messages written to viewers",
		}),
		clients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clients_connected",
			Help:      "Currently connected viewers",
		}),
		clientsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clients_dropped_total",
			Help:      "Viewers disconnected by the hub by reason",
		}, []string{"reason"}),
		sourceState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_state",
			Help:      "Line source state (0 searching, 1 streaming, 2 recovering)",
		}),
		sourceOffset: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_offset_bytes",
			Help:      "Read offset within the current log generation",
		}),
		sourceRotations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rotations_total",
			Help:      "Detected log rotations and truncations",
		}),
	}
}

// LineRead records one line read at offset.
func (m *Metrics) LineRead(pos linesource.LogPosition) {
	if m == nil {
		return
	}
	m.linesRead.Inc()
	m.sourceOffset.Set(float64(pos.Offset))
}

// EventParsed records a parsed event.
func (m *Metrics) EventParsed(eventType string) {
	if m == nil {
		return
	}
	m.eventsParsed.WithLabelValues(eventType).Inc()
}

// EventDropped records an event evicted from the broadcast queue.
func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

// EventDeduplicated records a suppressed duplicate.
func (m *Metrics) EventDeduplicated() {
	if m == nil {
		return
	}
	m.eventsDeduped.Inc()
}

// MessageSent records one message written to a viewer.
func (m *Metrics) MessageSent() {
	if m == nil {
		return
	}
	m.messagesSent.Inc()
}

// ClientConnected increments the connected gauge.
func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.clients.Inc()
}

// ClientDisconnected decrements the connected gauge and counts the reason.
func (m *Metrics) ClientDisconnected(reason string) {
	if m == nil {
		return
	}
	m.clients.Dec()
	m.clientsDropped.WithLabelValues(reason).Inc()
}

// SourceStateChanged matches linesource.Config.OnStateChange.
func (m *Metrics) SourceStateChanged(from, to linesource.State) {
	if m == nil {
		return
	}
	m.sourceState.Set(float64(to))
	if from == linesource.Streaming && to == linesource.Recovering {
		m.sourceRotations.Inc()
	}
}
