package assistant

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricConnectMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assistant_connect_ms",
		Help:    "Time to establish the recognition connection (ms)",
		Buckets: prometheus.ExponentialBuckets(10, 1.8, 10),
	})

	metricConnectFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_connect_failures_total",
		Help: "Failed attempts to open a recognition connection",
	})

	metricFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_audio_frames_total",
		Help: "Microphone frames sent to the recognizer",
	})

	metricAudioBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_audio_bytes_total",
		Help: "Microphone bytes sent to the recognizer",
	})

	metricTurnOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_turn_outcomes_total",
		Help: "Turns by how they ended",
	}, []string{"outcome"}) // finished, timeout, no_response, error

	metricFirstTranscriptMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assistant_first_transcript_ms",
		Help:    "Time from turn start to first transcript (ms)",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 10),
	})
)
