package domain

import "time"

// Team represents a tenant keyed by its external organization domain.
type Team struct {
	ID             int64
	ExternalOrgKey string
	Name           string
	AvatarURL      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
