package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatcher_events_total",
		Help: "Assistant events consumed by type",
	}, []string{"type"})

	metricUnmatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_unmatched_speech_total",
		Help: "Recognized utterances that matched no command",
	})

	metricCommandMS = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatcher_command_ms",
		Help:    "Time spent running a command handler (ms)",
		Buckets: prometheus.ExponentialBuckets(5, 2, 12),
	}, []string{"command"})
)
