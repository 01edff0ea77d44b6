package domain

import "time"

// User is an account that can sign in as organizer or attendee.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}
