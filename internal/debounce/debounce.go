// Package debounce suppresses decodes that arrive too soon after the last
// accepted one, so a code held in front of the camera is redeemed once.
package debounce

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/gate-checkin/internal/clock"
)

// DefaultWindow is the suppression window used when none is configured.
const DefaultWindow = 2 * time.Second

// Window decides whether a decode may proceed. Only allowed decodes move the window start.
type Window interface {
	Allow(ctx context.Context) (bool, error)
}

// Memory is a process-local Window driven by an injected clock.
type Memory struct {
	mu       sync.Mutex
	clock    clock.Clock
	window   time.Duration
	last     time.Time
	accepted bool
}

// NewMemory returns a window of length d. A non-positive d selects DefaultWindow.
func NewMemory(clk clock.Clock, d time.Duration) *Memory {
	if d <= 0 {
		d = DefaultWindow
	}
	return &Memory{clock: clk, window: d}
}

// Allow reports true for the first decode and for any decode at least one
// window after the previous allowed decode.
func (m *Memory) Allow(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if m.accepted && now.Sub(m.last) < m.window {
		return false, nil
	}
	m.last = now
	m.accepted = true
	return true, nil
}

// Reset forgets the last accepted decode.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted = false
	m.last = time.Time{}
}
