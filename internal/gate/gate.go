package gate

import (
	"sync"

	"github.com/rs/zerolog"

	"voicekit/player/internal/status"
	"voicekit/player/internal/types"
)

// Engine is the part of the recognition engine the gate drives.
type Engine interface {
	StartConversation() error
	StopConversation()
}

// Gate decides whether a new conversation turn may begin. TryStart is safe
// to call from any goroutine; the On* transitions are driven by the event
// dispatcher.
type Gate struct {
	engine    Engine
	indicator status.Indicator
	log       zerolog.Logger

	mu       sync.Mutex
	canStart bool
	session  *types.Session
	state    status.State
}

func New(engine Engine, indicator status.Indicator, log zerolog.Logger) *Gate {
	return &Gate{engine: engine, indicator: indicator, log: log}
}

// TryStart admits a new turn if none is in progress and the engine is ready.
// A request that is not admitted is dropped, never queued.
func (g *Gate) TryStart() bool {
	g.mu.Lock()
	if !g.canStart {
		g.mu.Unlock()
		metricPresses.WithLabelValues("dropped").Inc()
		g.log.Trace().Msg("start request dropped")
		return false
	}
	g.canStart = false
	metricAdmission.Set(0)
	g.mu.Unlock()

	if err := g.engine.StartConversation(); err != nil {
		g.mu.Lock()
		if g.session == nil {
			g.canStart = true
			metricAdmission.Set(1)
		}
		g.mu.Unlock()
		metricPresses.WithLabelValues("refused").Inc()
		g.log.Warn().Err(err).Msg("engine refused to start a turn")
		return false
	}
	metricPresses.WithLabelValues("accepted").Inc()
	return true
}

// OnStartFinished marks the engine ready for its first turn.
func (g *Gate) OnStartFinished() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open()
}

// OnTurnStarted records the new turn and closes admission.
func (g *Gate) OnTurnStarted(sess types.Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session != nil {
		metricTurns.WithLabelValues("overlap").Inc()
		g.log.Warn().Str("open", g.session.ID).Str("new", sess.ID).Msg("turn started before previous turn ended")
	}
	cp := sess
	g.session = &cp
	g.canStart = false
	metricAdmission.Set(0)
	metricTurns.WithLabelValues("started").Inc()
	g.show(status.Listening)
}

// OnEndOfUtterance shows that the engine is working on what it heard.
func (g *Gate) OnEndOfUtterance() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.show(status.Thinking)
}

// OnTurnEnded closes the current turn, whatever the reason, and reopens
// admission.
func (g *Gate) OnTurnEnded(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session != nil {
		g.log.Debug().Str("session", g.session.ID).Str("reason", reason).Msg("turn ended")
		metricTurns.WithLabelValues("ended").Inc()
	}
	g.session = nil
	g.open()
}

// StopTurn asks the engine to end the open turn, if any.
func (g *Gate) StopTurn() {
	g.mu.Lock()
	open := g.session != nil
	g.mu.Unlock()
	if open {
		g.engine.StopConversation()
	}
}

// Ready reports whether a new turn may start now.
func (g *Gate) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.canStart
}

// Snapshot is a point-in-time view of the gate.
type Snapshot struct {
	CanStart bool           `json:"can_start"`
	State    string         `json:"state"`
	Session  *types.Session `json:"session,omitempty"`
}

func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := Snapshot{CanStart: g.canStart, State: g.state.String()}
	if g.session != nil {
		cp := *g.session
		s.Session = &cp
	}
	return s
}

// open must be called with mu held.
func (g *Gate) open() {
	g.canStart = true
	metricAdmission.Set(1)
	g.show(status.Ready)
}

// show must be called with mu held.
func (g *Gate) show(s status.State) {
	g.state = s
	if g.indicator != nil {
		g.indicator.SetState(s)
	}
}
