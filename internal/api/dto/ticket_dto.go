package dto

import (
	"time"

	"github.com/spec-kit/gate-checkin/internal/domain"
)

// CreateRegistrationRequest payload. Name and email default to the caller's account.
type CreateRegistrationRequest struct {
	EventID    string `json:"event_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	TicketType string `json:"ticket_type"`
	Notes      string `json:"notes"`
}

// TicketResponse is the public view of a registration.
type TicketResponse struct {
	TicketID   string             `json:"ticket_id"`
	EventID    string             `json:"event_id"`
	Name       string             `json:"name"`
	Email      string             `json:"email"`
	TicketType string             `json:"ticket_type"`
	Notes      string             `json:"notes,omitempty"`
	CheckedIn  bool               `json:"checked_in"`
	State      domain.TicketState `json:"state"`
	CreatedAt  time.Time          `json:"created_at"`
}

// NewTicketResponse maps a registration.
func NewTicketResponse(r *domain.Registration) TicketResponse {
	return TicketResponse{
		TicketID:   r.TicketID,
		EventID:    r.EventID,
		Name:       r.Name,
		Email:      r.Email,
		TicketType: r.TicketType,
		Notes:      r.Notes,
		CheckedIn:  r.CheckedIn,
		State:      r.State(),
		CreatedAt:  r.CreatedAt,
	}
}

// NewTicketList maps registrations.
func NewTicketList(regs []domain.Registration) []TicketResponse {
	items := make([]TicketResponse, 0, len(regs))
	for i := range regs {
		items = append(items, NewTicketResponse(&regs[i]))
	}
	return items
}

// ScanCodeRequest is a manually entered or externally decoded code.
type ScanCodeRequest struct {
	Code string `json:"code"`
}

// RedemptionResponse describes what the gate should display.
type RedemptionResponse struct {
	Outcome     domain.RedemptionOutcome `json:"outcome"`
	TicketID    string                   `json:"ticket_id"`
	Holder      string                   `json:"holder,omitempty"`
	TicketType  string                   `json:"ticket_type,omitempty"`
	Event       *EventResponse           `json:"event,omitempty"`
	CheckedInAt *time.Time               `json:"checked_in_at,omitempty"`
}

// NewRedemptionResponse maps a redemption result.
func NewRedemptionResponse(r *domain.RedemptionResult) *RedemptionResponse {
	if r == nil {
		return nil
	}
	resp := &RedemptionResponse{Outcome: r.Outcome, TicketID: r.TicketID, CheckedInAt: r.CheckedInAt}
	if r.Registration != nil {
		resp.Holder = r.Registration.Name
		resp.TicketType = r.Registration.TicketType
	}
	if r.Event != nil {
		ev := NewEventResponse(r.Event)
		resp.Event = &ev
	}
	return resp
}

// ScanResponse is the result of one submitted code or frame.
type ScanResponse struct {
	Outcome    string              `json:"outcome"`
	Code       string              `json:"code,omitempty"`
	At         time.Time           `json:"at"`
	Redemption *RedemptionResponse `json:"redemption,omitempty"`
}

// ScannerSessionResponse describes the gate's scanning state.
type ScannerSessionResponse struct {
	State    string `json:"state"`
	Operator string `json:"operator"`
}
