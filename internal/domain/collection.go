package domain

import "time"

// Collection is the starter resource seeded for a newly created team.
type Collection struct {
	ID          int64
	TeamID      int64
	CreatorID   int64
	Name        string
	Description string
	CreatedAt   time.Time
}
