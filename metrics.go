package wskeeper

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/wskeeper/metric"
)

// connMetrics holds per-connection Prometheus metrics. A nil *connMetrics is
// valid and skips all instrumentation (nil registry = nil metrics).
type connMetrics struct {
	connects         prometheus.Counter
	reconnects       prometheus.Counter
	attempts         prometheus.Counter
	connectErrors    prometheus.Counter
	messagesSent     prometheus.Counter
	messagesReceived prometheus.Counter
	keepalivePings   prometheus.Counter
	watchdogTimeouts prometheus.Counter
	connectionState  prometheus.Gauge
}

// newConnMetrics creates and registers metrics for one connection. The
// conn_id const label keeps multiple connections distinct within a single
// registry.
func newConnMetrics(registry *metric.Registry, connID string) (*connMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	labels := prometheus.Labels{"conn_id": connID}
	m := &connMetrics{
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "wskeeper",
			Subsystem:   "conn",
			Name:        "connects_total",
			Help:        "Total successful transport connections",
			ConstLabels: labels,
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "wskeeper",
			Subsystem:   "conn",
			Name:        "reconnects_total",
			Help:        "Total successful reconnections after a prior connection",
			ConstLabels: labels,
		}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "wskeeper",
			Subsystem:   "conn",
			Name:        "reconnect_attempts_total",
			Help:        "Total reconnect attempts fired by the scheduler",
			ConstLabels: labels,
		}),
		connectErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "wskeeper",
			Subsystem:   "conn",
			Name:        "connect_errors_total",
			Help:        "Total transport construction failures",
			ConstLabels: labels,
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "wskeeper",
			Subsystem:   "conn",
			Name:        "messages_sent_total",
			Help:        "Total data frames sent",
			ConstLabels: labels,
		}),
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "wskeeper",
			Subsystem:   "conn",
			Name:        "messages_received_total",
			Help:        "Total data frames received",
			ConstLabels: labels,
		}),
		keepalivePings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "wskeeper",
			Subsystem:   "conn",
			Name:        "keepalive_pings_total",
			Help:        "Total keepalive transmissions",
			ConstLabels: labels,
		}),
		watchdogTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "wskeeper",
			Subsystem:   "conn",
			Name:        "watchdog_timeouts_total",
			Help:        "Total inactivity timeouts",
			ConstLabels: labels,
		}),
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "wskeeper",
			Subsystem:   "conn",
			Name:        "state",
			Help:        "Connection readyState (0=connecting, 1=open, 2=closing, 3=closed)",
			ConstLabels: labels,
		}),
	}

	for name, c := range map[string]prometheus.Collector{
		"connects_total":           m.connects,
		"reconnects_total":         m.reconnects,
		"reconnect_attempts_total": m.attempts,
		"connect_errors_total":     m.connectErrors,
		"messages_sent_total":      m.messagesSent,
		"messages_received_total":  m.messagesReceived,
		"keepalive_pings_total":    m.keepalivePings,
		"watchdog_timeouts_total":  m.watchdogTimeouts,
		"state":                    m.connectionState,
	} {
		if err := registry.Register(connID, name, c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *connMetrics) incConnects() {
	if m != nil {
		m.connects.Inc()
	}
}

func (m *connMetrics) incReconnects() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *connMetrics) incAttempts() {
	if m != nil {
		m.attempts.Inc()
	}
}

func (m *connMetrics) incConnectErrors() {
	if m != nil {
		m.connectErrors.Inc()
	}
}

func (m *connMetrics) incMessagesSent() {
	if m != nil {
		m.messagesSent.Inc()
	}
}

func (m *connMetrics) incMessagesReceived() {
	if m != nil {
		m.messagesReceived.Inc()
	}
}

func (m *connMetrics) incKeepalivePings() {
	if m != nil {
		m.keepalivePings.Inc()
	}
}

func (m *connMetrics) incWatchdogTimeouts() {
	if m != nil {
		m.watchdogTimeouts.Inc()
	}
}

func (m *connMetrics) setState(state int32) {
	if m != nil {
		m.connectionState.Set(float64(state))
	}
}
