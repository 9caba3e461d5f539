package realtime

import (
	"fmt"
	"sync"
)

// State is the lifecycle position of a voice session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateListening
	StateUserSpeaking
	StateAgentSpeaking
	StateProcessing
	StateDisconnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateListening:
		return "listening"
	case StateUserSpeaking:
		return "user_speaking"
	case StateAgentSpeaking:
		return "agent_speaking"
	case StateProcessing:
		return "processing"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// active session states can move between each other freely as the
// conversation alternates speakers.
var conversationStates = []State{StateListening, StateUserSpeaking, StateAgentSpeaking, StateProcessing}

var transitions = map[State][]State{
	StateIdle:       {StateConnecting},
	StateConnecting: {StateConnected, StateError, StateDisconnected},
	StateConnected:  append([]State{StateError, StateDisconnected}, conversationStates...),
	StateListening:  append([]State{StateError, StateDisconnected}, conversationStates...),
	StateUserSpeaking: append([]State{StateError, StateDisconnected},
		conversationStates...),
	StateAgentSpeaking: append([]State{StateError, StateDisconnected},
		conversationStates...),
	StateProcessing: append([]State{StateError, StateDisconnected},
		conversationStates...),
	StateError:        {StateDisconnected},
	StateDisconnected: nil,
}

// Machine guards session state and rejects moves the lifecycle does
// not allow. Disconnected is terminal.
type Machine struct {
	mu    sync.Mutex
	state State
}

func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// To moves the machine to next, failing on transitions the lifecycle
// does not define. Moving to the current state is a no-op.
func (m *Machine) To(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == next {
		return nil
	}
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid transition %s -> %s", m.state, next)
}

// Is reports whether the machine currently sits in any of the given
// states.
func (m *Machine) Is(states ...State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range states {
		if m.state == s {
			return true
		}
	}
	return false
}
