package events

import (
	"time"

	"github.com/spec-kit/gate-checkin/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketIssued       EventType = "ticket_issued"
	EventTicketRedeemed     EventType = "ticket_redeemed"
	EventDuplicateScan      EventType = "duplicate_scan"
	EventUnknownScan        EventType = "unknown_scan"
	EventAnnouncementPosted EventType = "announcement_posted"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketIssuedPayload payload.
type TicketIssuedPayload struct {
	EventID    string `json:"event_id"`
	Email      string `json:"email"`
	TicketType string `json:"ticket_type"`
}

// RedemptionPayload accompanies ticket_redeemed, duplicate_scan and unknown_scan.
type RedemptionPayload struct {
	Outcome   domain.RedemptionOutcome `json:"outcome"`
	EventID   string                   `json:"event_id,omitempty"`
	Holder    string                   `json:"holder,omitempty"`
	CheckedIn *time.Time               `json:"checked_in_at,omitempty"`
}

// AnnouncementPostedPayload payload.
type AnnouncementPostedPayload struct {
	AnnouncementID string `json:"announcement_id"`
	Title          string `json:"title"`
}
