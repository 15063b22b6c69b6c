package commands

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricCommands = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "commands_total",
	Help: "Voice commands handled by name and result",
}, []string{"command", "result"})
