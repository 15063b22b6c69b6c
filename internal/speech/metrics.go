package speech

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	speechSynthesisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_synthesis_total",
		Help: "Total spoken phrases by provider and status",
	}, []string{"provider", "status"})

	speechFirstByteMS = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "speech_first_byte_ms",
		Help:    "Latency from request to first synthesized audio (ms)",
		Buckets: prometheus.ExponentialBuckets(20, 1.6, 10),
	}, []string{"provider"})
)
