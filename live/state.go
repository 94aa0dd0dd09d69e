package live

import (
	"errors"
	"fmt"
	"sync"
)

type SessionState int

const (
	StateDisconnected SessionState = iota
	StateResolving
	StateConnecting
	StateHandshakeSent
	StateAccepted
	StateReady
	StateClosed
)

var ErrInvalidTransition = errors.New("invalid session transition")

var transitions = map[SessionState]SessionState{
	StateDisconnected:  StateResolving,
	StateResolving:     StateConnecting,
	StateConnecting:    StateHandshakeSent,
	StateHandshakeSent: StateAccepted,
	StateAccepted:      StateReady,
}

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateResolving:
		return "resolving"
	case StateConnecting:
		return "connecting"
	case StateHandshakeSent:
		return "handshake-sent"
	case StateAccepted:
		return "accepted"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// CanSendChanges reports whether change lists may leave the client.
func (s SessionState) CanSendChanges() bool {
	return s == StateReady
}

// CanRequest reports whether node requests, chat and presence may leave the
// client, which is any time after the server accepted the handshake.
func (s SessionState) CanRequest() bool {
	return s == StateAccepted || s == StateReady
}

type stateMachine struct {
	sync.RWMutex
	state SessionState
}

func (m *stateMachine) State() SessionState {
	m.RLock()
	defer m.RUnlock()
	return m.state
}

// begin starts a new connection attempt from a fresh or closed session.
func (m *stateMachine) begin() error {
	m.Lock()
	defer m.Unlock()
	if m.state != StateDisconnected && m.state != StateClosed {
		return fmt.Errorf("begin from %s: %w", m.state, ErrInvalidTransition)
	}
	m.state = StateResolving
	return nil
}

func (m *stateMachine) transition(to SessionState) error {
	m.Lock()
	defer m.Unlock()
	if next, ok := transitions[m.state]; !ok || next != to {
		return fmt.Errorf("%s to %s: %w", m.state, to, ErrInvalidTransition)
	}
	m.state = to
	return nil
}

func (m *stateMachine) close() SessionState {
	m.Lock()
	defer m.Unlock()
	prev := m.state
	m.state = StateClosed
	return prev
}
