package service

import (
	"context"

	"github.com/spec-kit/gate-checkin/internal/auth"
	"github.com/spec-kit/gate-checkin/internal/domain"
	"github.com/spec-kit/gate-checkin/internal/repository"
)

// LedgerService exposes the check-in ledger and per-event attendance.
type LedgerService struct {
	checkins      repository.CheckinRepository
	registrations repository.RegistrationRepository
	events        repository.EventRepository
	gate          *auth.Gate
}

// LedgerDependencies bundles requirements.
type LedgerDependencies struct {
	CheckinRepo      repository.CheckinRepository
	RegistrationRepo repository.RegistrationRepository
	EventRepo        repository.EventRepository
	Gate             *auth.Gate
}

// EventSummary is the attendance row for one event.
type EventSummary struct {
	EventID       string `json:"event_id"`
	Title         string `json:"title"`
	Date          string `json:"date"`
	Capacity      int    `json:"capacity"`
	Registrations int    `json:"registrations"`
	CheckIns      int    `json:"check_ins"`
}

// AttendanceSummary aggregates every event.
type AttendanceSummary struct {
	Events             []EventSummary `json:"events"`
	TotalRegistrations int            `json:"total_registrations"`
	TotalCheckIns      int            `json:"total_check_ins"`
}

// NewLedgerService constructs the service.
func NewLedgerService(deps LedgerDependencies) *LedgerService {
	return &LedgerService{
		checkins:      deps.CheckinRepo,
		registrations: deps.RegistrationRepo,
		events:        deps.EventRepo,
		gate:          deps.Gate,
	}
}

// ListAll returns every ledger entry in check-in order.
func (s *LedgerService) ListAll(ctx context.Context, p *auth.Principal) ([]domain.Checkin, error) {
	if err := s.gate.Check(p, auth.CapViewAnalytics); err != nil {
		return nil, err
	}
	entries, err := s.checkins.ListAll(ctx)
	if err != nil {
		return nil, storageError("list checkins", err)
	}
	return entries, nil
}

// Summary counts registrations and check-ins per event. Ledger entries are
// attributed through their registration; entries without one are ignored.
func (s *LedgerService) Summary(ctx context.Context, p *auth.Principal) (*AttendanceSummary, error) {
	if err := s.gate.Check(p, auth.CapViewAnalytics); err != nil {
		return nil, err
	}

	evts, err := s.events.List(ctx)
	if err != nil {
		return nil, storageError("list events", err)
	}
	regCounts, err := s.registrations.CountByEvent(ctx)
	if err != nil {
		return nil, storageError("count registrations", err)
	}
	checkinCounts, err := s.checkins.CountByEvent(ctx)
	if err != nil {
		return nil, storageError("count checkins", err)
	}

	summary := &AttendanceSummary{Events: make([]EventSummary, 0, len(evts))}
	for _, e := range evts {
		row := EventSummary{
			EventID:       e.ID,
			Title:         e.Title,
			Date:          e.Date,
			Capacity:      e.Capacity,
			Registrations: regCounts[e.ID],
			CheckIns:      checkinCounts[e.ID],
		}
		summary.TotalRegistrations += row.Registrations
		summary.TotalCheckIns += row.CheckIns
		summary.Events = append(summary.Events, row)
	}
	return summary, nil
}
