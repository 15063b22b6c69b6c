package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"voicekit/player/internal/assistant"
	"voicekit/player/internal/commands"
	"voicekit/player/internal/gate"
	"voicekit/player/internal/store"
	"voicekit/player/internal/types"
)

var (
	ErrFatal        = errors.New("assistant reported a fatal error")
	ErrStreamClosed = errors.New("assistant event stream closed")
)

// Dispatcher consumes assistant events one at a time. Command handlers run
// inline, so the next event is not read until the previous one is handled.
type Dispatcher struct {
	gate   *gate.Gate
	router *commands.Router
	store  *store.Store
	log    zerolog.Logger
}

func New(g *gate.Gate, router *commands.Router, st *store.Store, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{gate: g, router: router, store: st, log: log}
}

// Run blocks until ctx is done, the stream ends, a fatal assistant error
// arrives or a handler returns commands.ErrHalt.
func (d *Dispatcher) Run(ctx context.Context, events <-chan assistant.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrStreamClosed
			}
			if err := d.handle(ctx, ev); err != nil {
				return err
			}
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev assistant.Event) error {
	metricEvents.WithLabelValues(ev.Type.String()).Inc()
	payload := map[string]any{}

	switch ev.Type {
	case assistant.EventStartFinished:
		d.gate.OnStartFinished()
		d.log.Info().Msg("ready, press the button to talk")

	case assistant.EventTurnStarted:
		sess := types.Session{ID: uuid.New().String(), StartedAt: time.Now().UTC()}
		d.store.BeginTurn(sess)
		d.gate.OnTurnStarted(sess)
		payload["session"] = sess.ID
		d.log.Info().Str("session", sess.ID).Msg("listening")

	case assistant.EventEndOfUtterance:
		d.gate.OnEndOfUtterance()

	case assistant.EventRecognizedSpeech:
		payload["text"] = ev.Text
		d.store.AppendEvent(ev.Type.String(), payload)
		return d.recognized(ctx, ev.Text)

	case assistant.EventTurnFinished, assistant.EventTurnTimeout, assistant.EventNoResponse:
		d.gate.OnTurnEnded(ev.Type.String())

	case assistant.EventAssistantError:
		payload["fatal"] = ev.Fatal
		if ev.Err != nil {
			payload["error"] = ev.Err.Error()
		}
		d.store.AppendEvent(ev.Type.String(), payload)
		if ev.Fatal {
			d.log.Error().Err(ev.Err).Msg("assistant failed")
			return fmt.Errorf("%w: %v", ErrFatal, ev.Err)
		}
		d.log.Warn().Err(ev.Err).Msg("assistant error")
		return nil

	default:
		d.log.Debug().Stringer("event", ev.Type).Msg("ignoring event")
	}
	d.store.AppendEvent(ev.Type.String(), payload)
	return nil
}

func (d *Dispatcher) recognized(ctx context.Context, raw string) error {
	text := commands.Normalize(raw)
	if text == "" {
		return nil
	}
	d.log.Info().Str("text", text).Msg("you said")
	cmd, ok := d.router.Match(text)
	if !ok {
		metricUnmatched.Inc()
		return nil
	}
	// End the turn so the microphone is released before audio plays.
	d.gate.StopTurn()

	start := time.Now()
	err := cmd.Run(ctx)
	metricCommandMS.WithLabelValues(cmd.Name).Observe(float64(time.Since(start).Milliseconds()))
	d.store.AppendEvent("command", map[string]any{"name": cmd.Name, "arg": cmd.Arg})
	if errors.Is(err, commands.ErrHalt) {
		d.log.Info().Str("command", cmd.Name).Msg("halting")
		return err
	}
	return nil
}
