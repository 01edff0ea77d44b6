package domain

import "time"

// Announcement is a message posted by organizers for everyone.
type Announcement struct {
	ID        string
	Title     string
	Body      string
	CreatedAt time.Time
}
