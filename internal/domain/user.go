package domain

import "time"

// User represents an account scoped to a team. The triple
// (provider, external_user_id, team_id) identifies at most one row.
type User struct {
	ID             int64
	TeamID         int64
	Provider       string
	ExternalUserID string
	Name           string
	Email          string
	AvatarURL      string
	IsAdmin        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
