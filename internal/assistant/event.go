package assistant

import (
	"context"
	"fmt"
	"time"
)

// EventType tags an Event produced by the recognition stream.
type EventType int

const (
	EventStartFinished EventType = iota + 1
	EventTurnStarted
	EventRecognizedSpeech
	EventEndOfUtterance
	EventTurnFinished
	EventTurnTimeout
	EventNoResponse
	EventAssistantError
)

func (t EventType) String() string {
	switch t {
	case EventStartFinished:
		return "start_finished"
	case EventTurnStarted:
		return "turn_started"
	case EventRecognizedSpeech:
		return "recognized_speech"
	case EventEndOfUtterance:
		return "end_of_utterance"
	case EventTurnFinished:
		return "turn_finished"
	case EventTurnTimeout:
		return "turn_timeout"
	case EventNoResponse:
		return "no_response"
	case EventAssistantError:
		return "assistant_error"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Event is immutable once produced.
type Event struct {
	Type  EventType
	Text  string // RecognizedSpeech only
	Fatal bool   // AssistantError only
	Err   error  // AssistantError only
	At    time.Time
}

func (e Event) String() string {
	switch e.Type {
	case EventRecognizedSpeech:
		return fmt.Sprintf("%s(%q)", e.Type, e.Text)
	case EventAssistantError:
		return fmt.Sprintf("%s(fatal=%t, %v)", e.Type, e.Fatal, e.Err)
	default:
		return e.Type.String()
	}
}

// Engine is a speech recognition and dialogue engine.
type Engine interface {
	// Start begins the event stream. The channel is closed when the engine
	// gives up or ctx is cancelled.
	Start(ctx context.Context) (<-chan Event, error)
	// StartConversation asks the engine to open a new turn. It must not block
	// on the consumer of the event stream.
	StartConversation() error
	// StopConversation ends the current turn, if any.
	StopConversation()
}
