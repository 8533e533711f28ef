package metrics

import "github.com/prometheus/client_golang/prometheus"

// BroadcastMetrics holds Prometheus metrics for room event fan-out.
type BroadcastMetrics struct {
	EventsPublished *prometheus.CounterVec
	EventsDelivered prometheus.Counter
	SlowEvicted     prometheus.Counter
	FanOutDuration  prometheus.Histogram
}

func NewBroadcastMetrics(reg prometheus.Registerer) *BroadcastMetrics {
	m := &BroadcastMetrics{
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "events_published_total",
			Help:      "Total number of room events published, by kind.",
		}, []string{"kind"}),
		EventsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "events_enqueued_total",
			Help:      "Total number of events placed on subscriber queues.",
		}),
		SlowEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "slow_subscribers_evicted_total",
			Help:      "Total number of subscribers dropped because their queue was full.",
		}),
		FanOutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "fanout_duration_seconds",
			Help:      "Time spent enqueuing one event to every subscriber of a room.",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
	}

	reg.MustRegister(m.EventsPublished, m.EventsDelivered, m.SlowEvicted, m.FanOutDuration)
	return m
}
