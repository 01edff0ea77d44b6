package domain

// Event is a scheduled, ticketed happening. Immutable once created.
type Event struct {
	ID          string
	Title       string
	Date        string // 2006-01-02
	StartTime   string // 15:04, optional
	EndTime     string // 15:04, optional
	Location    string
	Capacity    int
	Track       string
	Description string
}
