package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/gate-checkin/internal/auth"
	"github.com/spec-kit/gate-checkin/internal/clock"
	"github.com/spec-kit/gate-checkin/internal/domain"
	"github.com/spec-kit/gate-checkin/internal/repository"
	apperrors "github.com/spec-kit/gate-checkin/pkg/util/errorutil"
)

// EventService manages the event catalogue.
type EventService struct {
	events repository.EventRepository
	gate   *auth.Gate
	clock  clock.Clock
	logger *zap.Logger
}

// EventDependencies bundles requirements for the event service.
type EventDependencies struct {
	EventRepo repository.EventRepository
	Gate      *auth.Gate
	Clock     clock.Clock
	Logger    *zap.Logger
}

// EventCreateInput describes an event to schedule.
type EventCreateInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Date        string `json:"date" validate:"required,calendar_date"`
	StartTime   string `json:"start_time" validate:"omitempty,clock_time"`
	EndTime     string `json:"end_time" validate:"omitempty,clock_time"`
	Location    string `json:"location" validate:"max=200"`
	Capacity    int    `json:"capacity" validate:"gte=0"`
	Track       string `json:"track" validate:"max=80"`
	Description string `json:"description" validate:"max=2000"`
}

// NewEventService constructs the service.
func NewEventService(deps EventDependencies) *EventService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{events: deps.EventRepo, gate: deps.Gate, clock: deps.Clock, logger: logger}
}

// Create schedules an event. Events cannot be edited afterwards.
func (s *EventService) Create(ctx context.Context, p *auth.Principal, in EventCreateInput) (*domain.Event, error) {
	if err := s.gate.Check(p, auth.CapManageEvents); err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	if err := apperrors.ValidateStruct("invalid event", in); err != nil {
		return nil, err
	}
	if in.StartTime != "" && in.EndTime != "" && in.EndTime < in.StartTime {
		return nil, apperrors.NewValidationError("invalid event", map[string]any{"end_time": "before start_time"})
	}

	event := &domain.Event{
		Title:       in.Title,
		Date:        in.Date,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Location:    strings.TrimSpace(in.Location),
		Capacity:    in.Capacity,
		Track:       strings.TrimSpace(in.Track),
		Description: strings.TrimSpace(in.Description),
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, storageError("create event", err)
	}
	s.logger.Info("event created", zap.String("event_id", event.ID), zap.String("date", event.Date))
	return event, nil
}

// List returns events ordered by date.
func (s *EventService) List(ctx context.Context, p *auth.Principal) ([]domain.Event, error) {
	if err := s.gate.Check(p, auth.CapViewEvents); err != nil {
		return nil, err
	}
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, storageError("list events", err)
	}
	return events, nil
}

// Get returns a single event.
func (s *EventService) Get(ctx context.Context, p *auth.Principal, id string) (*domain.Event, error) {
	if err := s.gate.Check(p, auth.CapViewEvents); err != nil {
		return nil, err
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NewNotFound("event", map[string]any{"event_id": id})
		}
		return nil, storageError("get event", err)
	}
	return event, nil
}

// SeedSamples adds the two first-run events when the catalogue is empty.
func (s *EventService) SeedSamples(ctx context.Context) error {
	n, err := s.events.Count(ctx)
	if err != nil {
		return storageError("count events", err)
	}
	if n > 0 {
		return nil
	}

	today := s.clock.Now()
	samples := []domain.Event{
		{
			Title:       "Tech Fest '25 - Keynotes",
			Date:        today.Format("2006-01-02"),
			StartTime:   "10:00",
			EndTime:     "13:00",
			Location:    "Main Auditorium",
			Capacity:    500,
			Track:       "Main",
			Description: "Opening keynotes and welcome.",
		},
		{
			Title:       "Workshops Day",
			Date:        today.AddDate(0, 0, 1).Format("2006-01-02"),
			StartTime:   "09:00",
			EndTime:     "16:00",
			Location:    "Lab Block",
			Capacity:    200,
			Track:       "Workshops",
			Description: "Hands-on sessions.",
		},
	}
	for i := range samples {
		if err := s.events.Create(ctx, &samples[i]); err != nil {
			return storageError("seed events", err)
		}
	}
	s.logger.Info("seeded sample events", zap.Int("count", len(samples)))
	return nil
}
