package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/gate-checkin/internal/api/dto"
	"github.com/spec-kit/gate-checkin/internal/auth"
	"github.com/spec-kit/gate-checkin/internal/service"
	apperrors "github.com/spec-kit/gate-checkin/pkg/util/errorutil"
)

// EventsHandler serves the event schedule and announcements.
type EventsHandler struct {
	events        *service.EventService
	announcements *service.AnnouncementService
}

// NewEventsHandler constructs handler.
func NewEventsHandler(events *service.EventService, announcements *service.AnnouncementService) *EventsHandler {
	return &EventsHandler{events: events, announcements: announcements}
}

// ListEvents GET /events.
func (h *EventsHandler) ListEvents(c *fiber.Ctx) error {
	list, err := h.events.List(c.UserContext(), auth.PrincipalFromContext(c))
	if err != nil {
		return err
	}
	items := make([]dto.EventResponse, 0, len(list))
	for i := range list {
		items = append(items, dto.NewEventResponse(&list[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateEvent POST /events.
func (h *EventsHandler) CreateEvent(c *fiber.Ctx) error {
	var req dto.CreateEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	event, err := h.events.Create(c.UserContext(), auth.PrincipalFromContext(c), service.EventCreateInput{
		Title:       req.Title,
		Date:        req.Date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Location:    req.Location,
		Capacity:    req.Capacity,
		Track:       req.Track,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewEventResponse(event)})
}

// ListAnnouncements GET /announcements.
func (h *EventsHandler) ListAnnouncements(c *fiber.Ctx) error {
	list, err := h.announcements.List(c.UserContext(), auth.PrincipalFromContext(c))
	if err != nil {
		return err
	}
	items := make([]dto.AnnouncementResponse, 0, len(list))
	for i := range list {
		items = append(items, dto.NewAnnouncementResponse(&list[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// PostAnnouncement POST /announcements.
func (h *EventsHandler) PostAnnouncement(c *fiber.Ctx) error {
	var req dto.CreateAnnouncementRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	item, err := h.announcements.Post(c.UserContext(), auth.PrincipalFromContext(c), service.AnnouncementInput{
		Title: req.Title,
		Body:  req.Body,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAnnouncementResponse(item)})
}
