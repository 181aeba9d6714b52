package geocode

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	geocodeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geocode_requests_total",
		Help: "Reverse geocode attempts grouped by outcome.",
	}, []string{"result"})

	geocodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "geocode_request_duration_seconds",
		Help:    "Latency of reverse geocode requests.",
		Buckets: prometheus.DefBuckets,
	})
)
