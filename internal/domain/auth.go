package domain

import "time"

// Role is the permission tier of a caller.
type Role string

const (
	RoleOrganizer Role = "organizer"
	RoleAttendee  Role = "attendee"
	// RoleGuest is the implicit role of an unauthenticated visitor.
	RoleGuest Role = "guest"
)

// Valid reports whether r can be assigned to an account.
func (r Role) Valid() bool {
	return r == RoleOrganizer || r == RoleAttendee
}

// Token represents issued session token metadata.
type Token struct {
	Value     string
	UserID    string
	Role      Role
	ExpiresAt time.Time
	IssuedAt  time.Time
}
