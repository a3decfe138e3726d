package presence

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	online    prometheus.Gauge
	delivered prometheus.Counter
	failed    prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "teamclock",
			Subsystem: "presence",
			Name:      "online_users",
			Help:      "Number of users with a registered websocket connection.",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "teamclock",
			Subsystem: "presence",
			Name:      "messages_delivered_total",
			Help:      "Messages written to a websocket connection.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "teamclock",
			Subsystem: "presence",
			Name:      "messages_failed_total",
			Help:      "Message writes that failed and dropped the connection.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.online, m.delivered, m.failed)
	}
	return m
}
