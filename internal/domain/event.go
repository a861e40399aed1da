package domain

import "time"

// Event represents a scheduled happening with its own status lifecycle.
type Event struct {
	ID     string
	Name   string
	Status Status
	// StartsAt and EndsAt are nil until the event is published.
	StartsAt  *time.Time
	EndsAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Over reports whether the event's scheduled end has passed at the given
// instant. Events without a schedule are never over.
func (e Event) Over(now time.Time) bool {
	return e.EndsAt != nil && !e.EndsAt.After(now)
}
