package store

import (
	"sync"
	"time"

	"voicekit/player/internal/types"
)

const maxEvents = 200

// Store keeps a bounded, in-memory log of controller activity. Nothing is
// written to disk.
type Store struct {
	mu     sync.RWMutex
	events []types.Event
	turns  int
	last   *types.Session
}

func New() *Store {
	return &Store{events: []types.Event{}}
}

func (s *Store) AppendEvent(typ string, payload map[string]any) types.Event {
	evt := types.Event{Type: typ, Ts: time.Now().UTC(), Payload: payload}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	if l := len(s.events); l > maxEvents {
		// Keep space for a single truncation marker so the total stays at maxEvents
		keep := maxEvents - 1
		dropped := l - keep
		s.events = append([]types.Event(nil), s.events[l-keep:]...)
		warn := types.Event{Type: "events_truncated", Ts: time.Now().UTC(), Payload: map[string]any{"dropped": dropped, "kept": keep}}
		s.events = append(s.events, warn)
	}
	return evt
}

func (s *Store) ListEvents() []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Event, len(s.events))
	copy(out, s.events)
	return out
}

// BeginTurn records the start of a turn.
func (s *Store) BeginTurn(sess types.Session) {
	s.mu.Lock()
	s.turns++
	cp := sess
	s.last = &cp
	s.mu.Unlock()
}

// TurnCount returns the number of turns started since boot.
func (s *Store) TurnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.turns
}

// LastTurn returns the most recently started turn, if any.
func (s *Store) LastTurn() (types.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return types.Session{}, false
	}
	return *s.last, true
}
