package recorder

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics are the recorder's operational counters.
type metrics struct {
	pollsTotal     prometheus.Counter
	pollFailures   prometheus.Counter
	delaysRecorded prometheus.Counter
	delaysSkipped  prometheus.Counter
}

func makeMetrics(registerer prometheus.Registerer) *metrics {
	m := metrics{
		pollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delay_recorder_polls_total",
			Help: "Number of trip update feed polls attempted.",
		}),
		pollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delay_recorder_poll_failures_total",
			Help: "Number of trip update feed polls that failed.",
		}),
		delaysRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delay_recorder_delays_recorded_total",
			Help: "Number of observed delays written to the database.",
		}),
		delaysSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delay_recorder_delays_skipped_total",
			Help: "Number of trip update entities skipped for missing schedule data.",
		}),
	}
	registerer.MustRegister(m.pollsTotal, m.pollFailures, m.delaysRecorded, m.delaysSkipped)
	return &m
}
