package interview

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid interview transition")

type Event string

const (
	EventStart    Event = "start"
	EventSubmit   Event = "submit_response"
	EventComplete Event = "complete"
)

var transitions = map[Status]map[Event]Status{
	StatusNotStarted: {
		EventStart: StatusInProgress,
	},
	StatusInProgress: {
		EventSubmit:   StatusInProgress,
		EventComplete: StatusCompleted,
	},
}

// Transition returns the status reached by applying ev in from.
// Status never moves backwards; every pair missing from the table is rejected.
func Transition(from Status, ev Event) (Status, error) {
	next, ok := transitions[from][ev]
	if !ok {
		return from, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev, from)
	}

	return next, nil
}
