package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	topicSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_topic_subscribers",
		Help: "Current number of topic subscriptions across all drivers.",
	})

	adminObservers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_admin_observers",
		Help: "Current number of admin-observer connections.",
	})

	connectedDrivers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_connected_drivers",
		Help: "Drivers with at least one open ingress connection.",
	})

	droppedDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_dropped_deliveries_total",
		Help: "Messages not delivered because the connection could not accept them.",
	})
)
