package domain

import "time"

// Checkin is an append-only ledger entry for a first redemption.
// Event association is resolved through the registration, never stored here.
type Checkin struct {
	ID       string
	TicketID string
	At       time.Time
}

// RedemptionOutcome classifies a redeem attempt.
type RedemptionOutcome string

const (
	OutcomeSuccess   RedemptionOutcome = "success"
	OutcomeDuplicate RedemptionOutcome = "duplicate"
	OutcomeUnknown   RedemptionOutcome = "unknown"
)

// RedemptionResult is what the gate displays after a redeem attempt.
type RedemptionResult struct {
	Outcome      RedemptionOutcome
	TicketID     string
	Registration *Registration
	Event        *Event
	CheckedInAt  *time.Time
}
