package bootstrap

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"

	"github.com/smallbiznis/teamdocs-auth/internal/domain"
	"github.com/smallbiznis/teamdocs-auth/internal/repository"
)

const (
	welcomeCollectionName        = "Welcome"
	welcomeCollectionDescription = "Your team's first collection. Add documents to get started."
)

// Seeder runs the one-time initialization for a newly created team.
type Seeder struct {
	collections repository.CollectionRepository
	node        *snowflake.Node
}

// NewSeeder constructs a Seeder.
func NewSeeder(collections repository.CollectionRepository, node *snowflake.Node) *Seeder {
	return &Seeder{collections: collections, node: node}
}

// Seed creates the starter collection owned by the team's first user. It is
// invoked only when the team resolution reported a freshly created team, so
// it runs at most once per team lifetime.
func (s *Seeder) Seed(ctx context.Context, team domain.Team, firstUser domain.User) error {
	collection := domain.Collection{
		ID:          s.node.Generate().Int64(),
		TeamID:      team.ID,
		CreatorID:   firstUser.ID,
		Name:        welcomeCollectionName,
		Description: welcomeCollectionDescription,
	}
	if _, err := s.collections.Create(ctx, collection); err != nil {
		return fmt.Errorf("seed welcome collection: %w", err)
	}
	return nil
}
