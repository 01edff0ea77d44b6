package scanner

import (
	"context"
	"errors"
	"sync"

	"github.com/spec-kit/gate-checkin/internal/auth"
)

var (
	// ErrSessionActive means another operator's session is already scanning.
	ErrSessionActive = errors.New("a scanner session is already active")
	// ErrNoSession means no session is scanning.
	ErrNoSession = errors.New("no active scanner session")
)

// SessionFactory builds a fresh session for an operator.
type SessionFactory func(p *auth.Principal) *Session

// Manager holds at most one active session for the gate.
type Manager struct {
	gate    *auth.Gate
	factory SessionFactory

	mu     sync.Mutex
	active *Session
}

// NewManager returns a manager with no active session.
func NewManager(gate *auth.Gate, factory SessionFactory) *Manager {
	return &Manager{gate: gate, factory: factory}
}

// Start opens a session for p. Starting again as the same operator is a no-op.
func (m *Manager) Start(ctx context.Context, p *auth.Principal) (*Session, error) {
	if err := m.gate.Check(p, auth.CapOperateScanner); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil && m.active.State() == StateScanning {
		if m.active.Principal().UserID == p.UserID {
			return m.active, nil
		}
		return nil, ErrSessionActive
	}

	session := m.factory(p)
	if err := session.Start(ctx); err != nil {
		return nil, err
	}
	m.active = session
	return session, nil
}

// Stop ends the active session owned by p.
func (m *Manager) Stop(p *auth.Principal) error {
	if err := m.gate.Check(p, auth.CapOperateScanner); err != nil {
		return err
	}

	m.mu.Lock()
	session := m.active
	if session == nil {
		m.mu.Unlock()
		return ErrNoSession
	}
	if session.Principal().UserID != p.UserID {
		m.mu.Unlock()
		return ErrSessionActive
	}
	m.active = nil
	m.mu.Unlock()

	session.Stop()
	return nil
}

// Session returns the active session owned by p.
func (m *Manager) Session(p *auth.Principal) (*Session, error) {
	if err := m.gate.Check(p, auth.CapOperateScanner); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.State() != StateScanning {
		return nil, ErrNoSession
	}
	if m.active.Principal().UserID != p.UserID {
		return nil, ErrSessionActive
	}
	return m.active, nil
}

// Shutdown stops whatever session is active.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	session := m.active
	m.active = nil
	m.mu.Unlock()
	if session != nil {
		session.Stop()
	}
}
