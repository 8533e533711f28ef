package metrics

import "github.com/prometheus/client_golang/prometheus"

// CommandMetrics tracks outcomes of room commands (create message, react, ...).
type CommandMetrics struct {
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	PublishFailures *prometheus.CounterVec
}

func NewCommandMetrics(reg prometheus.Registerer) *CommandMetrics {
	m := &CommandMetrics{
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "total",
			Help:      "Total number of commands handled, by command and result.",
		}, []string{"command", "result"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "duration_seconds",
			Help:      "Duration of command handling including persistence and publish.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"command"}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "publish_failures_total",
			Help:      "Total number of committed commands whose event could not be published.",
		}, []string{"command"}),
	}

	reg.MustRegister(m.CommandsTotal, m.CommandDuration, m.PublishFailures)
	return m
}
