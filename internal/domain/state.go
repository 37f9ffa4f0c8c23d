package domain

import (
	"errors"
	"fmt"
)

// SessionState is the lifecycle state of the capture session
type SessionState int

const (
	StateIdle SessionState = iota
	StateStreaming
	StateRecording
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateRecording:
		return "recording"
	default:
		return "unknown"
	}
}

// MarshalText keeps the state readable in JSON views.
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// HasStream reports whether a live stream is bound in this state.
func (s SessionState) HasStream() bool {
	return s == StateStreaming || s == StateRecording
}

// SessionEvent is a user intent driving the session
type SessionEvent int

const (
	EventOpen SessionEvent = iota
	EventStartRecording
	EventStopRecording
	EventCapture
	EventClose
)

func (e SessionEvent) String() string {
	switch e {
	case EventOpen:
		return "open"
	case EventStartRecording:
		return "start-recording"
	case EventStopRecording:
		return "stop-recording"
	case EventCapture:
		return "capture"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned for events not allowed in the current state
var ErrInvalidTransition = errors.New("invalid session transition")

// Transition returns the state reached by applying ev to s.
//
// Open is accepted from every state because a new open supersedes the current
// stream. Close is accepted from every state and always lands in Idle.
// Capture never changes the state.
func Transition(s SessionState, ev SessionEvent) (SessionState, error) {
	switch ev {
	case EventOpen:
		return StateStreaming, nil
	case EventClose:
		return StateIdle, nil
	case EventStartRecording:
		if s == StateStreaming {
			return StateRecording, nil
		}
	case EventStopRecording:
		if s == StateRecording {
			return StateStreaming, nil
		}
	case EventCapture:
		if s.HasStream() {
			return s, nil
		}
	}
	return s, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev, s)
}
