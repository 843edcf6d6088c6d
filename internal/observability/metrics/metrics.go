package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coach"

// MessagingMetrics exposes counters/histograms for the WhatsApp webhook and
// the reply dispatcher.
type MessagingMetrics struct {
	webhookTotal   *prometheus.CounterVec
	eventsTotal    *prometheus.CounterVec
	actionsTotal   *prometheus.CounterVec
	repliesTotal   *prometheus.CounterVec
	sendLatency    *prometheus.HistogramVec
	generateTotal  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewMessagingMetrics(reg prometheus.Registerer) *MessagingMetrics {
	m := &MessagingMetrics{
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "requests_total",
			Help:      "Inbound WhatsApp webhook requests by outcome",
		}, []string{"method", "outcome"}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Normalized inbound events by channel and kind",
		}, []string{"channel", "kind"}),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "actions_total",
			Help:      "Routing decisions by action kind",
		}, []string{"action"}),
		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "replies_total",
			Help:      "Outbound replies by kind and outcome",
		}, []string{"kind", "outcome"}),
		sendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "send_latency_seconds",
			Help:      "Latency of outbound reply sends",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		generateTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "generated_replies_total",
			Help:      "Reply generation attempts by mode and outcome",
		}, []string{"mode", "outcome"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "latency_seconds",
			Help:      "Latency of inbound webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookTotal, m.eventsTotal, m.actionsTotal, m.repliesTotal, m.sendLatency, m.generateTotal, m.webhookLatency)
	return m
}

func (m *MessagingMetrics) ObserveWebhook(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(method, outcome).Inc()
	m.webhookLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *MessagingMetrics) ObserveEvent(channel, kind string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(channel, kind).Inc()
}

func (m *MessagingMetrics) ObserveAction(action string) {
	if m == nil {
		return
	}
	m.actionsTotal.WithLabelValues(action).Inc()
}

func (m *MessagingMetrics) ObserveReply(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.repliesTotal.WithLabelValues(kind, outcome).Inc()
	m.sendLatency.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *MessagingMetrics) ObserveGeneration(mode, outcome string) {
	if m == nil {
		return
	}
	m.generateTotal.WithLabelValues(mode, outcome).Inc()
}

// CallMetrics tracks the outbound call lifecycle.
type CallMetrics struct {
	transitions *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	active      prometheus.Gauge
	recordings  *prometheus.CounterVec
}

func NewCallMetrics(reg prometheus.Registerer) *CallMetrics {
	m := &CallMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calls",
			Name:      "transitions_total",
			Help:      "Call session state transitions",
		}, []string{"from", "to"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calls",
			Name:      "sessions_total",
			Help:      "Finished call sessions by terminal state and direction",
		}, []string{"state", "direction"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "calls",
			Name:      "session_duration_seconds",
			Help:      "Wall time from dispatch to terminal state",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}, []string{"state"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "calls",
			Name:      "active_sessions",
			Help:      "Call sessions currently running in this process",
		}),
		recordings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calls",
			Name:      "recording_operations_total",
			Help:      "Recording start/stop calls by outcome",
		}, []string{"operation", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitions, m.outcomes, m.duration, m.active, m.recordings)
	return m
}

func (m *CallMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *CallMetrics) ObserveFinished(state, direction string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(state, direction).Inc()
	m.duration.WithLabelValues(state).Observe(elapsed.Seconds())
}

func (m *CallMetrics) ObserveRecording(operation, outcome string) {
	if m == nil {
		return
	}
	m.recordings.WithLabelValues(operation, outcome).Inc()
}

func (m *CallMetrics) SessionStarted() {
	if m == nil {
		return
	}
	m.active.Inc()
}

func (m *CallMetrics) SessionDone() {
	if m == nil {
		return
	}
	m.active.Dec()
}
