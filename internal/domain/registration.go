package domain

import "time"

// TicketState is the redemption state of a ticket identifier.
type TicketState string

const (
	TicketStateUnknown    TicketState = "UNKNOWN"
	TicketStateRegistered TicketState = "REGISTERED"
	TicketStateRedeemed   TicketState = "REDEEMED"
)

// Registration is a ticket held by an attendee for one event.
// CheckedIn is the only field mutated after creation.
type Registration struct {
	TicketID   string
	EventID    string
	Name       string
	Email      string
	TicketType string
	Notes      string
	CreatedAt  time.Time
	CheckedIn  bool
}

// State maps the registration to its redemption state.
func (r *Registration) State() TicketState {
	if r == nil {
		return TicketStateUnknown
	}
	if r.CheckedIn {
		return TicketStateRedeemed
	}
	return TicketStateRegistered
}
