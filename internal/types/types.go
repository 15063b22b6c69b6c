package types

import "time"

// Event is one entry of the in-memory activity log.
type Event struct {
	Type    string         `json:"type"`
	Ts      time.Time      `json:"timestamp"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Session is the handle of one open conversation turn.
type Session struct {
	ID        string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
}
