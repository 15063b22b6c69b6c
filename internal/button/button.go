package button

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var metricPresses = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "button_presses_total",
	Help: "Physical or virtual button presses by source",
}, []string{"source"})

// Source delivers button presses until ctx is done. onPress must not block
// for long; it runs on the source's goroutine.
type Source interface {
	Name() string
	Watch(ctx context.Context, onPress func()) error
}

// Watch runs every source until ctx is done. A source that fails is logged
// and the others keep running.
func Watch(ctx context.Context, log zerolog.Logger, onPress func(), sources ...Source) {
	var wg sync.WaitGroup
	for _, src := range sources {
		if src == nil {
			continue
		}
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			press := func() {
				metricPresses.WithLabelValues(src.Name()).Inc()
				log.Debug().Str("source", src.Name()).Msg("button pressed")
				onPress()
			}
			if err := src.Watch(ctx, press); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Str("source", src.Name()).Msg("button source stopped")
			}
		}(src)
	}
	wg.Wait()
}
