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
	apperrors "github.com/spec-kit/gate-checkin/pkg/util/errorutil"
)

// maxMintAttempts bounds retries when a freshly minted identifier collides.
const maxMintAttempts = 3

// RegistrationService issues tickets and answers ticket lookups.
type RegistrationService struct {
	registrations repository.RegistrationRepository
	events        repository.EventRepository
	gate          *auth.Gate
	ids           *ticketid.Generator
	clock         clock.Clock
	logger        *zap.Logger
	publisher
}

// RegistrationDependencies bundles requirements for the registration service.
type RegistrationDependencies struct {
	RegistrationRepo repository.RegistrationRepository
	EventRepo        repository.EventRepository
	Gate             *auth.Gate
	IDs              *ticketid.Generator
	Clock            clock.Clock
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
}

// RegistrationInput is the self-registration payload. Name and email
// default to the caller's account when left empty.
type RegistrationInput struct {
	EventID    string `json:"event_id" validate:"required"`
	Name       string `json:"name" validate:"required,max=120"`
	Email      string `json:"email" validate:"required,email"`
	TicketType string `json:"ticket_type" validate:"required,max=40"`
	Notes      string `json:"notes" validate:"max=1000"`
}

// NewRegistrationService constructs the service.
func NewRegistrationService(deps RegistrationDependencies) *RegistrationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		registrations: deps.RegistrationRepo,
		events:        deps.EventRepo,
		gate:          deps.Gate,
		ids:           deps.IDs,
		clock:         deps.Clock,
		logger:        logger,
		publisher:     publisher{dispatcher: deps.Dispatcher, clock: deps.Clock},
	}
}

// Create issues a ticket for the caller. The new registration is not checked in.
func (s *RegistrationService) Create(ctx context.Context, p *auth.Principal, in RegistrationInput) (*domain.Registration, error) {
	if err := s.gate.Check(p, auth.CapSelfRegister); err != nil {
		return nil, err
	}

	in.EventID = strings.TrimSpace(in.EventID)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.TicketType = strings.TrimSpace(in.TicketType)
	in.Notes = strings.TrimSpace(in.Notes)
	if in.Name == "" {
		in.Name = p.Name
	}
	if in.Email == "" {
		in.Email = normalizeEmail(p.Email)
	}
	if in.Email != normalizeEmail(p.Email) {
		return nil, apperrors.NewForbidden("attendees may only register themselves")
	}
	if err := apperrors.ValidateStruct("invalid registration", in); err != nil {
		return nil, err
	}

	if _, err := s.events.GetByID(ctx, in.EventID); err != nil {
		if isNotFound(err) {
			return nil, apperrors.NewValidationError("invalid registration", map[string]any{"event_id": "unknown event"})
		}
		return nil, storageError("get event", err)
	}

	reg := &domain.Registration{
		EventID:    in.EventID,
		Name:       in.Name,
		Email:      in.Email,
		TicketType: in.TicketType,
		Notes:      in.Notes,
		CreatedAt:  s.clock.Now(),
	}
	var err error
	for attempt := 0; attempt < maxMintAttempts; attempt++ {
		reg.TicketID = s.ids.Generate()
		if err = s.registrations.Create(ctx, reg); !errors.Is(err, repository.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return nil, storageError("create registration", err)
	}

	s.logger.Info("ticket issued",
		zap.String("ticket_id", reg.TicketID),
		zap.String("event_id", reg.EventID))
	s.publish(ctx, events.Event{
		Type:     events.EventTicketIssued,
		TicketID: reg.TicketID,
		Actor:    actorOf(p),
		Payload:  events.TicketIssuedPayload{EventID: reg.EventID, Email: reg.Email, TicketType: reg.TicketType},
	})
	return reg, nil
}

// FindByTicketID returns one registration. Attendees only see their own.
func (s *RegistrationService) FindByTicketID(ctx context.Context, p *auth.Principal, ticketID string) (*domain.Registration, error) {
	ownOnly, err := s.lookupScope(p)
	if err != nil {
		return nil, err
	}

	ticketID = strings.TrimSpace(ticketID)
	reg, err := s.registrations.GetByTicketID(ctx, ticketID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, storageError("get registration", err)
	}
	if ownOnly && reg.Email != normalizeEmail(p.Email) {
		return nil, apperrors.NewForbidden("ticket belongs to another attendee")
	}
	return reg, nil
}

// FindByEmail lists the registrations held under email, empty when none.
func (s *RegistrationService) FindByEmail(ctx context.Context, p *auth.Principal, email string) ([]domain.Registration, error) {
	ownOnly, err := s.lookupScope(p)
	if err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	if ownOnly && email != normalizeEmail(p.Email) {
		return nil, apperrors.NewForbidden("attendees may only list their own tickets")
	}
	regs, err := s.registrations.ListByEmail(ctx, email)
	if err != nil {
		return nil, storageError("list registrations", err)
	}
	return regs, nil
}

// ListOwn lists the caller's tickets.
func (s *RegistrationService) ListOwn(ctx context.Context, p *auth.Principal) ([]domain.Registration, error) {
	return s.FindByEmail(ctx, p, p.Email)
}

// Reconcile persists the checked-in flag for tickets whose ledger entry
// was written but whose flag update was lost.
func (s *RegistrationService) Reconcile(ctx context.Context, p *auth.Principal) (int, error) {
	if err := s.gate.Check(p, auth.CapManageData); err != nil {
		return 0, err
	}
	n, err := s.registrations.ReconcileFlags(ctx)
	if err != nil {
		return 0, storageError("reconcile flags", err)
	}
	if n > 0 {
		s.logger.Warn("reconciled checked-in flags", zap.Int("count", n))
	}
	return n, nil
}

// lookupScope reports whether the caller is restricted to their own tickets.
func (s *RegistrationService) lookupScope(p *auth.Principal) (bool, error) {
	if s.gate.Allows(p.EffectiveRole(), auth.CapSearchTickets) {
		return false, nil
	}
	if err := s.gate.Check(p, auth.CapViewOwnTickets); err != nil {
		return false, err
	}
	return true, nil
}
