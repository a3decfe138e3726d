package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	starts    prometheus.Counter
	stops     prometheus.Counter
	conflicts prometheus.Counter
	idled     prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "teamclock",
			Subsystem: "timer",
			Name:      name,
			Help:      help,
		})
	}
	m := &metrics{
		starts:    counter("starts_total", "Timers started."),
		stops:     counter("stops_total", "Timers stopped."),
		conflicts: counter("start_conflicts_total", "Starts rejected because a timer was already running."),
		idled:     counter("idle_marked_total", "Users marked idle by the sweeper."),
	}
	if reg != nil {
		reg.MustRegister(m.starts, m.stops, m.conflicts, m.idled)
	}
	return m
}
