package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "linechat"

// Metrics groups the Prometheus collectors updated by the Server and its sessions.
type Metrics struct {
	SessionsActive    prometheus.Gauge
	SessionsAccepted  prometheus.Counter
	SessionsReclaimed prometheus.Counter
	Logins            prometheus.Counter
	NameRejections    prometheus.Counter
	Broadcasts        prometheus.Counter
	Deliveries        prometheus.Counter
	SlowConsumers     prometheus.Counter
}

// NewMetrics builds the collectors and registers them with reg.
// A nil reg yields working, unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_active",
			Help:      "Sessions accepted and not yet reclaimed.",
		}),
		SessionsAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_accepted_total",
			Help:      "Connections attached as sessions.",
		}),
		SessionsReclaimed: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_reclaimed_total",
			Help:      "Sessions joined and removed by the reclaimer.",
		}),
		Logins: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "logins_total",
			Help:      "Successful name reservations.",
		}),
		NameRejections: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "name_rejections_total",
			Help:      "Login attempts rejected because the name was taken.",
		}),
		Broadcasts: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "broadcasts_total",
			Help:      "Chat lines broadcast.",
		}),
		Deliveries: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "deliveries_total",
			Help:      "Messages queued on recipient sessions by broadcasts.",
		}),
		SlowConsumers: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "slow_consumer_disconnects_total",
			Help:      "Sessions terminated because their outbound queue hit the configured limit.",
		}),
	}
}
