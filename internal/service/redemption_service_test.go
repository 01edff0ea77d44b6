package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/gate-checkin/internal/domain"
	"github.com/spec-kit/gate-checkin/internal/events"
	"github.com/spec-kit/gate-checkin/internal/repository"
	apperrors "github.com/spec-kit/gate-checkin/pkg/util/errorutil"
)

func TestRedeem_FirstScanThenDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	event := env.mustEvent(t, "Keynotes")
	reg := env.mustTicket(t, event.ID, "ada@example.com")

	first, err := env.redemption.Redeem(ctx, env.organizer, reg.TicketID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, first.Outcome)
	require.NotNil(t, first.Registration)
	assert.Equal(t, "Holder ada@example.com", first.Registration.Name)
	assert.Equal(t, "General", first.Registration.TicketType)
	require.NotNil(t, first.Event)
	assert.Equal(t, "Keynotes", first.Event.Title)
	require.NotNil(t, first.CheckedInAt)
	assert.True(t, testStart.Equal(*first.CheckedInAt))

	env.clock.Advance(5 * time.Second)
	second, err := env.redemption.Redeem(ctx, env.organizer, reg.TicketID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDuplicate, second.Outcome)
	require.NotNil(t, second.CheckedInAt)
	assert.True(t, testStart.Equal(*second.CheckedInAt))

	assert.Equal(t, 1, env.ledgerCount(t, reg.TicketID))
	assert.True(t, env.storedFlag(t, reg.TicketID))

	found, err := env.regs.FindByTicketID(ctx, env.organizer, reg.TicketID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateRedeemed, found.State())

	assert.Contains(t, env.recorded.types(), events.EventTicketRedeemed)
	assert.Contains(t, env.recorded.types(), events.EventDuplicateScan)
}

func TestRedeem_UnknownTicketWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, code := range []string{"T-doesnotexist-ABCDEF", "https://example.com/not-a-ticket", ""} {
		result, err := env.redemption.Redeem(ctx, env.organizer, code)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeUnknown, result.Outcome)
		assert.Nil(t, result.Registration)
	}

	entries, err := env.checkins.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRedeem_RequiresScannerCapability(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	event := env.mustEvent(t, "Keynotes")
	reg := env.mustTicket(t, event.ID, "ada@example.com")

	_, err := env.redemption.Redeem(ctx, attendee("ada@example.com"), reg.TicketID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	assert.Zero(t, env.ledgerCount(t, reg.TicketID))
	assert.False(t, env.storedFlag(t, reg.TicketID))
}

func TestRedeem_ConcurrentScansAdmitOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	event := env.mustEvent(t, "Keynotes")
	reg := env.mustTicket(t, event.ID, "ada@example.com")

	const gates = 16
	outcomes := make(chan domain.RedemptionOutcome, gates)
	var wg sync.WaitGroup
	for i := 0; i < gates; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := env.redemption.Redeem(ctx, env.organizer, reg.TicketID)
			if err != nil {
				outcomes <- domain.RedemptionOutcome("error: " + err.Error())
				return
			}
			outcomes <- result.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	counts := map[domain.RedemptionOutcome]int{}
	for o := range outcomes {
		counts[o]++
	}
	assert.Equal(t, 1, counts[domain.OutcomeSuccess])
	assert.Equal(t, gates-1, counts[domain.OutcomeDuplicate])
	assert.Equal(t, 1, env.ledgerCount(t, reg.TicketID))
}

// failingFlags fails the flag update after the ledger append succeeded.
type failingFlags struct {
	repository.RegistrationRepository
}

func (failingFlags) SetCheckedIn(context.Context, string) (bool, error) {
	return false, errors.New("disk I/O error")
}

func TestRedeem_StorageFailureRollsBackLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	event := env.mustEvent(t, "Keynotes")
	reg := env.mustTicket(t, event.ID, "ada@example.com")

	broken := env.newRedemption(failingFlags{env.registrations}, env.checkins)
	_, err := broken.Redeem(ctx, env.organizer, reg.TicketID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStorage))

	assert.Zero(t, env.ledgerCount(t, reg.TicketID))
	assert.False(t, env.storedFlag(t, reg.TicketID))

	// The ticket is still redeemable once storage recovers.
	result, err := env.redemption.Redeem(ctx, env.organizer, reg.TicketID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, result.Outcome)
}

func TestRedeem_LedgerAheadOfFlagIsRepaired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	event := env.mustEvent(t, "Keynotes")
	reg := env.mustTicket(t, event.ID, "ada@example.com")

	// Simulates a crash between the ledger append and the flag update.
	require.NoError(t, env.checkins.Append(ctx, &domain.Checkin{TicketID: reg.TicketID, At: testStart}))
	require.False(t, env.storedFlag(t, reg.TicketID))

	found, err := env.regs.FindByTicketID(ctx, env.organizer, reg.TicketID)
	require.NoError(t, err)
	assert.True(t, found.CheckedIn)

	result, err := env.redemption.Redeem(ctx, env.organizer, reg.TicketID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDuplicate, result.Outcome)
	assert.Equal(t, 1, env.ledgerCount(t, reg.TicketID))
	assert.True(t, env.storedFlag(t, reg.TicketID))
}

func TestRedeem_FlagAheadOfLedgerStaysDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	event := env.mustEvent(t, "Keynotes")
	reg := env.mustTicket(t, event.ID, "ada@example.com")

	_, err := env.registrations.MarkCheckedIn(ctx, reg.TicketID)
	require.NoError(t, err)

	result, err := env.redemption.Redeem(ctx, env.organizer, reg.TicketID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDuplicate, result.Outcome)
	assert.Nil(t, result.CheckedInAt)
	assert.Zero(t, env.ledgerCount(t, reg.TicketID))
}
