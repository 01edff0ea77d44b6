package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/gate-checkin/internal/domain"
	"github.com/spec-kit/gate-checkin/internal/repository"
	apperrors "github.com/spec-kit/gate-checkin/pkg/util/errorutil"
)

func seedStore(t *testing.T, env *testEnv) (*domain.Registration, *domain.Registration) {
	t.Helper()
	ctx := context.Background()
	event := env.mustEvent(t, "Keynotes")
	a := env.mustTicket(t, event.ID, "ada@example.com")
	env.clock.Advance(time.Second)
	b := env.mustTicket(t, event.ID, "bob@example.com")
	_, err := env.redemption.Redeem(ctx, env.organizer, a.TicketID)
	require.NoError(t, err)
	_, err = env.announcement.Post(ctx, env.organizer, AnnouncementInput{Title: "Hello", Body: "World"})
	require.NoError(t, err)
	return a, b
}

func TestSnapshot_RoundTripIntoEmptyStore(t *testing.T) {
	src := newTestEnv(t)
	ctx := context.Background()
	seedStore(t, src)

	exported, err := src.snapshot.Export(ctx, src.organizer)
	require.NoError(t, err)
	assert.Len(t, exported.Events, 1)
	assert.Len(t, exported.Registrations, 2)
	assert.Len(t, exported.Checkins, 1)
	assert.Len(t, exported.Announcements, 1)

	var buf bytes.Buffer
	require.NoError(t, jsonEncode(&buf, exported))
	decoded, err := DecodeSnapshot(&buf)
	require.NoError(t, err)

	dst := newTestEnv(t)
	require.NoError(t, dst.snapshot.Import(ctx, dst.organizer, decoded))

	again, err := dst.snapshot.Export(ctx, dst.organizer)
	require.NoError(t, err)
	again.ExportedAt = exported.ExportedAt
	assert.Equal(t, exported, again)
}

func TestSnapshot_ImportReplacesOnlyPresentCollections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedStore(t, env)

	snap, err := DecodeSnapshot(strings.NewReader(`{
		"registrations": [{"ticket_id": "T-imported-AAAAAA", "event_id": "e-x", "name": "Imp", "email": "IMP@example.com", "ticket_type": "General", "checked_in": false, "ts": 1700000000000}],
		"users": [{"email": "ignored@example.com"}]
	}`))
	require.NoError(t, err)
	require.NoError(t, env.snapshot.Import(ctx, env.organizer, snap))

	regs, err := env.registrations.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "T-imported-AAAAAA", regs[0].TicketID)
	assert.Equal(t, "imp@example.com", regs[0].Email)

	evts, err := env.eventRepo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, evts, 1)

	entries, err := env.checkins.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSnapshot_ImportedTicketsAreRedeemable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	event := env.mustEvent(t, "Keynotes")

	err := env.snapshot.Import(ctx, env.organizer, &Snapshot{
		Registrations: []RegistrationRecord{
			{TicketID: "T 1", EventID: event.ID, Name: "Spacey", Email: "s@example.com", TicketType: "General"},
		},
	})
	require.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Equal(t, "ticket_id", apperrors.ToDomainError(err).Details["ticket_id"])
	_, err = env.registrations.GetByTicketID(ctx, "T 1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, env.snapshot.Import(ctx, env.organizer, &Snapshot{
		Registrations: []RegistrationRecord{
			{TicketID: "LEGACY-0042", EventID: event.ID, Name: "Grace", Email: "grace@example.com", TicketType: "VIP", TS: 1700000000000},
		},
	}))
	res, err := env.redemption.Redeem(ctx, env.organizer, "LEGACY-0042")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, res.Outcome)

	reg, err := env.registrations.GetByTicketID(ctx, "LEGACY-0042")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateRedeemed, reg.State())
}

func TestSnapshot_ImportIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, _ := seedStore(t, env)

	snap := &Snapshot{
		Events: []EventRecord{},
		Checkins: []CheckinRecord{
			{ID: "c1", TicketID: "T-dup", TS: 1},
			{ID: "c2", TicketID: "T-dup", TS: 2},
		},
	}
	err := env.snapshot.Import(ctx, env.organizer, snap)
	require.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	evts, err := env.eventRepo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, evts, 1)
	assert.Equal(t, 1, env.ledgerCount(t, a.TicketID))
}

func TestSnapshot_RequiresManageData(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := attendee("ada@example.com")

	_, err := env.snapshot.Export(ctx, p)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	err = env.snapshot.Import(ctx, p, &Snapshot{Events: []EventRecord{}})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	err = env.snapshot.WriteRegistrationsCSV(ctx, p, &bytes.Buffer{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestSnapshot_RegistrationsCSV(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, b := seedStore(t, env)

	var buf bytes.Buffer
	require.NoError(t, env.snapshot.WriteRegistrationsCSV(ctx, env.organizer, &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"TicketId", "EventId", "Name", "Email", "TicketType", "CheckedIn", "Timestamp"}, rows[0])
	assert.Equal(t, a.TicketID, rows[1][0])
	assert.Equal(t, "true", rows[1][5])
	assert.Equal(t, b.TicketID, rows[2][0])
	assert.Equal(t, "false", rows[2][5])
}

func TestLedger_SummaryResolvesThroughRegistrations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	keynotes := env.mustEvent(t, "Keynotes")
	workshops := env.mustEvent(t, "Workshops")

	k1 := env.mustTicket(t, keynotes.ID, "a@example.com")
	env.mustTicket(t, keynotes.ID, "b@example.com")
	w1 := env.mustTicket(t, workshops.ID, "c@example.com")
	for _, id := range []string{k1.TicketID, w1.TicketID} {
		_, err := env.redemption.Redeem(ctx, env.organizer, id)
		require.NoError(t, err)
	}
	require.NoError(t, env.checkins.Append(ctx, &domain.Checkin{TicketID: "T-orphan-ZZZZZZ", At: testStart}))

	summary, err := env.ledger.Summary(ctx, env.organizer)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalRegistrations)
	assert.Equal(t, 2, summary.TotalCheckIns)

	byID := map[string]EventSummary{}
	for _, row := range summary.Events {
		byID[row.EventID] = row
	}
	assert.Equal(t, 2, byID[keynotes.ID].Registrations)
	assert.Equal(t, 1, byID[keynotes.ID].CheckIns)
	assert.Equal(t, 1, byID[workshops.ID].CheckIns)

	entries, err := env.ledger.ListAll(ctx, env.organizer)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	_, err = env.ledger.Summary(ctx, attendee("a@example.com"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}
