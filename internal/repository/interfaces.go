package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/teamdocs-auth/internal/domain"
)

// TeamLookup is the tagged result of a find-or-create: exactly one of the
// two branches (created or existing) was taken, atomically.
type TeamLookup struct {
	Team    domain.Team
	Created bool
}

// UserLookup is the tagged result of a user find-or-create.
type UserLookup struct {
	User    domain.User
	Created bool
}

// TeamRepository exposes persistence for teams. FindOrCreate must be atomic
// with respect to concurrent callers on the same ExternalOrgKey: exactly one
// row is ever created, and losers observe the winner's row.
type TeamRepository interface {
	FindOrCreate(ctx context.Context, team domain.Team) (TeamLookup, error)
	GetByID(ctx context.Context, teamID int64) (domain.Team, error)
}

// UserRepository exposes persistence for users. FindOrCreate carries the
// same atomicity contract keyed on (provider, external_user_id, team_id).
type UserRepository interface {
	FindOrCreate(ctx context.Context, user domain.User) (UserLookup, error)
	GetByID(ctx context.Context, userID int64) (domain.User, error)
}

// CollectionRepository persists the starter resource seeded for new teams.
type CollectionRepository interface {
	Create(ctx context.Context, collection domain.Collection) (domain.Collection, error)
}

// SigninStateStore persists short-lived handshake state structures.
type SigninStateStore interface {
	SaveState(ctx context.Context, key string, data domain.SigninState, ttl time.Duration) error
	GetState(ctx context.Context, key string) (*domain.SigninState, error)
	DeleteState(ctx context.Context, key string) error
}
