package gate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricPresses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gate_start_requests_total",
		Help: "Conversation start requests by result",
	}, []string{"result"}) // accepted, dropped, refused

	metricAdmission = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gate_admission_open",
		Help: "1 while a new conversation may start",
	})

	metricTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gate_turns_total",
		Help: "Turn transitions seen by the gate",
	}, []string{"transition"}) // started, ended, overlap
)
