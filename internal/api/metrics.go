package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricButton = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_button_presses_total",
		Help: "Virtual button presses by result",
	}, []string{"result"})

	metricWSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "api_status_stream_clients",
		Help: "Connected status stream websocket clients",
	})
)
