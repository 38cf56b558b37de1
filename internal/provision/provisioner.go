package provision

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/smallbiznis/teamdocs-auth/internal/bootstrap"
	"github.com/smallbiznis/teamdocs-auth/internal/domain"
	"github.com/smallbiznis/teamdocs-auth/internal/identity"
	"github.com/smallbiznis/teamdocs-auth/internal/repository"
)

// Result reports the resolved team/user pair and which branches created
// new rows during this request.
type Result struct {
	Team        domain.Team
	User        domain.User
	TeamCreated bool
	UserCreated bool
}

// Provisioner turns a normalized identity claim into a consistent local
// (team, user) pair, creating either lazily on first sign-in.
type Provisioner struct {
	teams  repository.TeamRepository
	users  repository.UserRepository
	seeder *bootstrap.Seeder
	node   *snowflake.Node
	logger *zap.Logger
}

// NewProvisioner wires the provisioning core.
func NewProvisioner(
	teams repository.TeamRepository,
	users repository.UserRepository,
	seeder *bootstrap.Seeder,
	node *snowflake.Node,
	logger *zap.Logger,
) *Provisioner {
	return &Provisioner{teams: teams, users: users, seeder: seeder, node: node, logger: logger}
}

// Provision resolves the team, then the user, then runs the first-team
// bootstrap when the team is new. Stages run strictly in that order; a
// persistence failure aborts at the current stage with no compensation.
// Bootstrap failures are reported but never fail the sign-in: the team
// exists without its seed resource, which is a recoverable state.
func (p *Provisioner) Provision(ctx context.Context, provider string, claim identity.Claim) (Result, error) {
	teamLookup, err := p.resolveTeam(ctx, claim)
	if err != nil {
		return Result{}, err
	}

	userLookup, err := p.resolveUser(ctx, provider, claim, teamLookup)
	if err != nil {
		return Result{}, err
	}

	if teamLookup.Created {
		if err := p.seeder.Seed(ctx, teamLookup.Team, userLookup.User); err != nil {
			p.log().Error("team bootstrap failed",
				zap.Int64("team_id", teamLookup.Team.ID),
				zap.Int64("user_id", userLookup.User.ID),
				zap.Error(err),
			)
		}
	}

	return Result{
		Team:        teamLookup.Team,
		User:        userLookup.User,
		TeamCreated: teamLookup.Created,
		UserCreated: userLookup.Created,
	}, nil
}

func (p *Provisioner) resolveTeam(ctx context.Context, claim identity.Claim) (repository.TeamLookup, error) {
	lookup, err := p.teams.FindOrCreate(ctx, domain.Team{
		ID:             p.node.Generate().Int64(),
		ExternalOrgKey: claim.OrgDomain,
		Name:           claim.TeamName,
		AvatarURL:      claim.TeamAvatarURL,
	})
	if err != nil {
		return repository.TeamLookup{}, fmt.Errorf("resolve team: %w", err)
	}
	return lookup, nil
}

// resolveUser keys on (provider, subject, team). The first user resolved in
// the same request that created the team becomes its administrator.
func (p *Provisioner) resolveUser(ctx context.Context, provider string, claim identity.Claim, team repository.TeamLookup) (repository.UserLookup, error) {
	lookup, err := p.users.FindOrCreate(ctx, domain.User{
		ID:             p.node.Generate().Int64(),
		TeamID:         team.Team.ID,
		Provider:       provider,
		ExternalUserID: claim.SubjectID,
		Name:           claim.Name,
		Email:          claim.Email,
		AvatarURL:      claim.AvatarURL,
		IsAdmin:        team.Created,
	})
	if err != nil {
		return repository.UserLookup{}, fmt.Errorf("resolve user: %w", err)
	}
	return lookup, nil
}

func (p *Provisioner) log() *zap.Logger {
	if p != nil && p.logger != nil {
		return p.logger
	}
	return zap.L()
}
