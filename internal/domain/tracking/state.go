package tracking

import (
	"errors"
	"strings"
)

// State is the lifecycle state of the background tracking task.
type State string

const (
	StateIdle   State = "IDLE"
	StateActive State = "ACTIVE"
)

var ErrInvalidState = errors.New("invalid tracking state")

// ParseState normalizes (uppercases+trims) and validates a tracking state string.
func ParseState(in string) (State, error) {
	state := State(strings.ToUpper(strings.TrimSpace(in)))
	if state.Valid() {
		return state, nil
	}
	return "", ErrInvalidState
}

// Valid reports whether the state is one of the allowed state constants.
func (state State) Valid() bool {
	switch state {
	case StateIdle, StateActive:
		return true
	default:
		return false
	}
}

// Active reports whether a subscription and a persistent notification exist in this state.
func (state State) Active() bool {
	return state == StateActive
}

// String returns the string representation of the State.
func (state State) String() string {
	return string(state)
}
