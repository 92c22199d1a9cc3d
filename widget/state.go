package widget

import "errors"

// State is where the controller is in the send cycle
type State int

const (
	// StateIdle accepts a new send
	StateIdle State = iota
	// StateSending has exactly one completion request outstanding
	StateSending
	// StateIdleWithError accepts a new send; the last turn ended in a failure
	StateIdleWithError
)

var (
	// ErrBusy is returned when a send is attempted while a request is outstanding
	ErrBusy = errors.New("a reply is still being generated")
	// ErrEmptyMessage is returned for empty or whitespace-only input
	ErrEmptyMessage = errors.New("message is empty")
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateIdleWithError:
		return "idle-with-error"
	}
	return "unknown"
}

// CanSend reports whether a new request may start from this state
func (s State) CanSend() bool {
	return s == StateIdle || s == StateIdleWithError
}
