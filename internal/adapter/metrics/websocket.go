package metrics

import "github.com/prometheus/client_golang/prometheus"

// SubscriberMetrics tracks subscriber connections and the rooms they hold open.
type SubscriberMetrics struct {
	ActiveConnections prometheus.Gauge
	ActiveRooms       prometheus.Gauge
	Rejected          *prometheus.CounterVec
	Disconnects       *prometheus.CounterVec
}

func NewSubscriberMetrics(reg prometheus.Registerer) *SubscriberMetrics {
	m := &SubscriberMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of open subscriber connections.",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_rooms",
			Help:      "Number of rooms with at least one subscriber.",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "rejected_total",
			Help:      "Total number of subscriptions refused, by reason.",
		}, []string{"reason"}),
		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "disconnects_total",
			Help:      "Total number of subscriber disconnects, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.ActiveConnections, m.ActiveRooms, m.Rejected, m.Disconnects)
	return m
}
