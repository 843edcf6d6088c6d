package calls

import "slices"

// State is a CallSession lifecycle position.
type State string

const (
	StateIdle      State = "idle"
	StateDialing   State = "dialing"
	StateConnected State = "connected"
	StateRecording State = "recording"
	StateEnding    State = "ending"
	StateClosed    State = "closed"
	StateFailed    State = "failed"
)

// transitions lists every allowed forward move. idle→connected is the inbound
// path where a participant joins without a dial step; idle→failed is an
// inbound session nobody joined.
var transitions = map[State][]State{
	StateIdle:      {StateDialing, StateConnected, StateFailed},
	StateDialing:   {StateConnected, StateFailed},
	StateConnected: {StateRecording, StateEnding, StateFailed},
	StateRecording: {StateEnding},
	StateEnding:    {StateClosed},
}

// CanTransition reports whether from→to is part of the lifecycle.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}
