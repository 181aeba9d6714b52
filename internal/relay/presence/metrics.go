package presence

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var onlineDrivers = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "relay_online_drivers",
	Help: "Drivers that reported a location within the presence TTL.",
})
