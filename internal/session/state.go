package session

import "sync"

// State is the controller-level connection state exposed to the UI.
type State int

const (
	StateIdle State = iota
	StateCreatingOffer
	StateAwaitingOffer
	StateWaitingForPeer
	StateNegotiating
	StateConnected
	StateDisconnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCreatingOffer:
		return "creating offer"
	case StateAwaitingOffer:
		return "awaiting offer"
	case StateWaitingForPeer:
		return "waiting for peer"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state machine has stopped for good. Late
// relay or transport events in a terminal state are ignored, never applied.
func (s State) Terminal() bool {
	return s == StateDisconnected || s == StateFailed
}

// Machine owns one controller's connection state. All mutation goes through
// set, which latches terminal states and notifies observers; the UI layer
// only ever reads.
type Machine struct {
	mu        sync.Mutex
	state     State
	observers []func(State)
}

// NewMachine starts in StateIdle.
func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Observe registers a change callback. Callbacks run in registration order
// on the goroutine performing the transition, outside the machine lock.
func (m *Machine) Observe(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// set transitions to s. It reports whether the transition happened: once a
// terminal state is reached nothing reanimates the machine, and repeating
// the current state is a no-op.
func (m *Machine) set(s State) bool {
	m.mu.Lock()
	if m.state.Terminal() || m.state == s {
		m.mu.Unlock()
		return false
	}
	m.state = s
	observers := make([]func(State), len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
	return true
}
