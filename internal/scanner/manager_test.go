package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/gate-checkin/internal/auth"
	"github.com/spec-kit/gate-checkin/internal/clock"
	"github.com/spec-kit/gate-checkin/internal/domain"
	apperrors "github.com/spec-kit/gate-checkin/pkg/util/errorutil"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))
	redeemer := newFakeRedeemer()
	return NewManager(auth.NewGate(), func(p *auth.Principal) *Session {
		return NewSession(SessionConfig{Principal: p, Redeemer: redeemer, Clock: clk})
	})
}

func TestManager_SingleActiveSession(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	other := &auth.Principal{UserID: "org-2", Role: domain.RoleOrganizer}

	s, err := m.Start(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, StateScanning, s.State())

	again, err := m.Start(ctx, operator)
	require.NoError(t, err)
	assert.Same(t, s, again)

	_, err = m.Start(ctx, other)
	assert.ErrorIs(t, err, ErrSessionActive)
	assert.ErrorIs(t, m.Stop(other), ErrSessionActive)

	got, err := m.Session(operator)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Stop(operator))
	assert.Equal(t, StateIdle, s.State())
	_, err = m.Session(operator)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.ErrorIs(t, m.Stop(operator), ErrNoSession)

	_, err = m.Start(ctx, other)
	require.NoError(t, err)
	m.Shutdown()
	_, err = m.Session(other)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_RequiresScannerCapability(t *testing.T) {
	m := newTestManager(t)
	attendee := &auth.Principal{UserID: "u-1", Role: domain.RoleAttendee}

	_, err := m.Start(context.Background(), attendee)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = m.Start(context.Background(), nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}
