package dto

import (
	"time"

	"github.com/spec-kit/gate-checkin/internal/domain"
)

// CreateEventRequest payload.
type CreateEventRequest struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Location    string `json:"location"`
	Capacity    int    `json:"capacity"`
	Track       string `json:"track"`
	Description string `json:"description"`
}

// EventResponse is the public view of an event.
type EventResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time,omitempty"`
	EndTime     string `json:"end_time,omitempty"`
	Location    string `json:"location,omitempty"`
	Capacity    int    `json:"capacity"`
	Track       string `json:"track,omitempty"`
	Description string `json:"description,omitempty"`
}

// NewEventResponse maps an event.
func NewEventResponse(e *domain.Event) EventResponse {
	return EventResponse{
		ID:          e.ID,
		Title:       e.Title,
		Date:        e.Date,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Location:    e.Location,
		Capacity:    e.Capacity,
		Track:       e.Track,
		Description: e.Description,
	}
}

// CreateAnnouncementRequest payload.
type CreateAnnouncementRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// AnnouncementResponse is the public view of an announcement.
type AnnouncementResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAnnouncementResponse maps an announcement.
func NewAnnouncementResponse(a *domain.Announcement) AnnouncementResponse {
	return AnnouncementResponse{ID: a.ID, Title: a.Title, Body: a.Body, CreatedAt: a.CreatedAt}
}
