package engine

import (
	"sync"

	"github.com/example/fleetrelay/internal/relay/domain"
	"github.com/example/fleetrelay/internal/relay/registry"
)

// SessionState tracks the lifecycle of one driver-ingress connection.
type SessionState int

const (
	// StateConnected is the initial state; samples are not attributable yet.
	StateConnected SessionState = iota
	// StateIdentified means the connection has declared its driver identity.
	StateIdentified
	// StateStreaming means at least one sample has been relayed.
	StateStreaming
	// StateDisconnected is terminal.
	StateDisconnected
)

// Session is the per-ingress-connection state machine:
// Connected -> Identified -> Streaming -> Disconnected.
type Session struct {
	mu       sync.Mutex
	conn     registry.Conn
	state    SessionState
	driverID domain.DriverID
}

// Conn returns the underlying connection handle.
func (s *Session) Conn() registry.Conn { return s.conn }

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// DriverID returns the identity declared for this session, zero before
// identification.
func (s *Session) DriverID() domain.DriverID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driverID
}

func (s *Session) identify(id domain.DriverID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.driverID = id
	if s.state == StateConnected {
		s.state = StateIdentified
	}
}

func (s *Session) markStreaming() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdentified {
		s.state = StateStreaming
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateDisconnected
}
