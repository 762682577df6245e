package session

import "sync/atomic"

// State is the session lifecycle phase.
type State int32

const (
	StateNotStarted State = iota
	StateConnecting
	StateInitializing
	StateReady
	StateInterrupting
	StateClosing
	StateClosed
)

var stateNames = map[State]string{
	StateNotStarted:   "not_started",
	StateConnecting:   "connecting",
	StateInitializing: "initializing",
	StateReady:        "ready",
	StateInterrupting: "interrupting",
	StateClosing:      "closing",
	StateClosed:       "closed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

type stateVar struct {
	v atomic.Int32
}

func (s *stateVar) get() State {
	return State(s.v.Load())
}

func (s *stateVar) set(next State) {
	s.v.Store(int32(next))
}

// swap moves from `from` to `to` atomically, reporting success.
func (s *stateVar) swap(from, to State) bool {
	return s.v.CompareAndSwap(int32(from), int32(to))
}
