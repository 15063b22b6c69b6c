package status

import (
	"github.com/rs/zerolog"
)

// State is what the device shows the user.
type State int

const (
	Unknown State = iota
	Ready
	Listening
	Thinking
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Listening:
		return "listening"
	case Thinking:
		return "thinking"
	default:
		return "unknown"
	}
}

// Indicator displays a State. Implementations have no logic of their own.
type Indicator interface {
	SetState(State)
}

// Multi fans a state out to several indicators in order.
type Multi []Indicator

func (m Multi) SetState(s State) {
	for _, ind := range m {
		if ind != nil {
			ind.SetState(s)
		}
	}
}

type logIndicator struct{ log zerolog.Logger }

func NewLogIndicator(log zerolog.Logger) Indicator { return logIndicator{log: log} }

func (l logIndicator) SetState(s State) {
	l.log.Info().Str("state", s.String()).Msg("indicator")
}
