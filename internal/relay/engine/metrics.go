package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var samplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relay_samples_total",
	Help: "Inbound location samples grouped by outcome.",
}, []string{"result"})
