package service

import (
	"context"
	"strings"

	"github.com/spec-kit/gate-checkin/internal/auth"
	"github.com/spec-kit/gate-checkin/internal/clock"
	"github.com/spec-kit/gate-checkin/internal/domain"
	"github.com/spec-kit/gate-checkin/internal/events"
	"github.com/spec-kit/gate-checkin/internal/repository"
	apperrors "github.com/spec-kit/gate-checkin/pkg/util/errorutil"
)

// AnnouncementService posts and lists announcements.
type AnnouncementService struct {
	items repository.AnnouncementRepository
	gate  *auth.Gate
	clock clock.Clock
	publisher
}

// AnnouncementDependencies bundles requirements.
type AnnouncementDependencies struct {
	AnnouncementRepo repository.AnnouncementRepository
	Gate             *auth.Gate
	Clock            clock.Clock
	Dispatcher       events.Dispatcher
}

// AnnouncementInput is the post payload.
type AnnouncementInput struct {
	Title string `json:"title" validate:"required,max=200"`
	Body  string `json:"body" validate:"required,max=4000"`
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(deps AnnouncementDependencies) *AnnouncementService {
	return &AnnouncementService{
		items:     deps.AnnouncementRepo,
		gate:      deps.Gate,
		clock:     deps.Clock,
		publisher: publisher{dispatcher: deps.Dispatcher, clock: deps.Clock},
	}
}

// Post publishes an announcement.
func (s *AnnouncementService) Post(ctx context.Context, p *auth.Principal, in AnnouncementInput) (*domain.Announcement, error) {
	if err := s.gate.Check(p, auth.CapPostAnnouncements); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	if err := apperrors.ValidateStruct("invalid announcement", in); err != nil {
		return nil, err
	}

	a := &domain.Announcement{Title: in.Title, Body: in.Body, CreatedAt: s.clock.Now()}
	if err := s.items.Create(ctx, a); err != nil {
		return nil, storageError("create announcement", err)
	}
	s.publish(ctx, events.Event{
		Type:    events.EventAnnouncementPosted,
		Actor:   actorOf(p),
		Payload: events.AnnouncementPostedPayload{AnnouncementID: a.ID, Title: a.Title},
	})
	return a, nil
}

// List returns announcements newest first.
func (s *AnnouncementService) List(ctx context.Context, p *auth.Principal) ([]domain.Announcement, error) {
	if err := s.gate.Check(p, auth.CapReadAnnouncements); err != nil {
		return nil, err
	}
	items, err := s.items.List(ctx)
	if err != nil {
		return nil, storageError("list announcements", err)
	}
	return items, nil
}

// SeedWelcome posts the first-run welcome message when none exist.
func (s *AnnouncementService) SeedWelcome(ctx context.Context) error {
	n, err := s.items.Count(ctx)
	if err != nil {
		return storageError("count announcements", err)
	}
	if n > 0 {
		return nil
	}
	a := &domain.Announcement{
		Title:     "Welcome!",
		Body:      "Registration opens at 8:30 AM near Main Gate.",
		CreatedAt: s.clock.Now(),
	}
	if err := s.items.Create(ctx, a); err != nil {
		return storageError("seed announcement", err)
	}
	return nil
}
