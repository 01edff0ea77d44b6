package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/gate-checkin/internal/auth"
	"github.com/spec-kit/gate-checkin/internal/clock"
	"github.com/spec-kit/gate-checkin/internal/domain"
	"github.com/spec-kit/gate-checkin/internal/events"
	"github.com/spec-kit/gate-checkin/internal/repository"
	"github.com/spec-kit/gate-checkin/internal/ticketid"
)

// errAlreadyRedeemed aborts the redemption transaction when another
// redemption of the same ticket committed first.
var errAlreadyRedeemed = errors.New("ticket already redeemed")

// RedemptionService turns a decoded ticket identifier into a gate decision.
type RedemptionService struct {
	registrations repository.RegistrationRepository
	checkins      repository.CheckinRepository
	events        repository.EventRepository
	tx            repository.Transactor
	gate          *auth.Gate
	clock         clock.Clock
	logger        *zap.Logger
	publisher
}

// RedemptionDependencies bundles requirements for the redemption service.
type RedemptionDependencies struct {
	RegistrationRepo repository.RegistrationRepository
	CheckinRepo      repository.CheckinRepository
	EventRepo        repository.EventRepository
	Tx               repository.Transactor
	Gate             *auth.Gate
	Clock            clock.Clock
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
}

// NewRedemptionService constructs the service.
func NewRedemptionService(deps RedemptionDependencies) *RedemptionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedemptionService{
		registrations: deps.RegistrationRepo,
		checkins:      deps.CheckinRepo,
		events:        deps.EventRepo,
		tx:            deps.Tx,
		gate:          deps.Gate,
		clock:         deps.Clock,
		logger:        logger,
		publisher:     publisher{dispatcher: deps.Dispatcher, clock: deps.Clock},
	}
}

// Redeem checks a ticket in. The first redemption of a known ticket appends
// exactly one ledger entry and sets the flag in the same transaction; any
// later redemption is a duplicate and writes nothing new. A storage failure
// leaves both the ledger and the flag untouched.
func (s *RedemptionService) Redeem(ctx context.Context, p *auth.Principal, ticketID string) (domain.RedemptionResult, error) {
	if err := s.gate.Check(p, auth.CapOperateScanner); err != nil {
		return domain.RedemptionResult{}, err
	}

	ticketID = strings.TrimSpace(ticketID)
	result := domain.RedemptionResult{Outcome: domain.OutcomeUnknown, TicketID: ticketID}
	if !ticketid.Plausible(ticketID) {
		s.report(ctx, p, result)
		return result, nil
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		reg, err := s.registrations.GetByTicketID(ctx, ticketID)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return storageError("get registration", err)
		}
		result.Registration = reg

		if reg.CheckedIn {
			result.Outcome = domain.OutcomeDuplicate
			// Repairs a flag left behind by an interrupted redemption.
			if _, err := s.registrations.SetCheckedIn(ctx, ticketID); err != nil {
				return storageError("repair checked-in flag", err)
			}
			entry, err := s.checkins.GetByTicketID(ctx, ticketID)
			switch {
			case err == nil:
				at := entry.At
				result.CheckedInAt = &at
			case !isNotFound(err):
				return storageError("get checkin", err)
			}
			return nil
		}

		now := s.clock.Now()
		if err := s.checkins.Append(ctx, &domain.Checkin{TicketID: ticketID, At: now}); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errAlreadyRedeemed
			}
			return storageError("append checkin", err)
		}
		changed, err := s.registrations.SetCheckedIn(ctx, ticketID)
		if err != nil {
			return storageError("set checked in", err)
		}
		if !changed {
			return errAlreadyRedeemed
		}

		reg.CheckedIn = true
		result.Outcome = domain.OutcomeSuccess
		result.CheckedInAt = &now
		return nil
	})
	if errors.Is(err, errAlreadyRedeemed) {
		result.Outcome = domain.OutcomeDuplicate
		result.Registration.CheckedIn = true
		if entry, lookupErr := s.checkins.GetByTicketID(ctx, ticketID); lookupErr == nil {
			at := entry.At
			result.CheckedInAt = &at
		}
		err = nil
	}
	if err != nil {
		s.logger.Error("redemption failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return domain.RedemptionResult{}, err
	}

	if result.Registration != nil {
		event, err := s.events.GetByID(ctx, result.Registration.EventID)
		switch {
		case err == nil:
			result.Event = event
		case !isNotFound(err):
			s.logger.Warn("event lookup failed", zap.String("event_id", result.Registration.EventID), zap.Error(err))
		}
	}

	s.report(ctx, p, result)
	return result, nil
}

func (s *RedemptionService) report(ctx context.Context, p *auth.Principal, result domain.RedemptionResult) {
	var eventType events.EventType
	switch result.Outcome {
	case domain.OutcomeSuccess:
		eventType = events.EventTicketRedeemed
	case domain.OutcomeDuplicate:
		eventType = events.EventDuplicateScan
	default:
		eventType = events.EventUnknownScan
	}

	payload := events.RedemptionPayload{Outcome: result.Outcome, CheckedIn: result.CheckedInAt}
	if result.Registration != nil {
		payload.EventID = result.Registration.EventID
		payload.Holder = result.Registration.Name
	}
	s.logger.Info("ticket scanned",
		zap.String("ticket_id", result.TicketID),
		zap.String("outcome", string(result.Outcome)))
	s.publish(ctx, events.Event{
		Type:     eventType,
		TicketID: result.TicketID,
		Actor:    actorOf(p),
		Payload:  payload,
	})
}
