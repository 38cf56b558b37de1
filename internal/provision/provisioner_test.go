package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/teamdocs-auth/internal/bootstrap"
	"github.com/smallbiznis/teamdocs-auth/internal/domain"
	"github.com/smallbiznis/teamdocs-auth/internal/identity"
	"github.com/smallbiznis/teamdocs-auth/internal/repository"
)

func annClaim(t *testing.T) identity.Claim {
	t.Helper()
	claim, err := identity.Normalize(identity.Profile{
		SubjectID:    "42",
		Name:         "Ann Lee",
		Email:        "ann@acme.com",
		Picture:      "http://x/p.png",
		HostedDomain: "acme.com",
	})
	require.NoError(t, err)
	return claim
}

func TestProvisionFirstSignIn(t *testing.T) {
	h := newProvisionTestHarness(t)
	ctx := context.Background()

	result, err := h.provisioner.Provision(ctx, "google", annClaim(t))
	require.NoError(t, err)
	require.True(t, result.TeamCreated)
	require.True(t, result.UserCreated)
	require.Equal(t, "Acme", result.Team.Name)
	require.Equal(t, "acme.com", result.Team.ExternalOrgKey)
	require.Equal(t, "https://logo.clearbit.com/acme.com", result.Team.AvatarURL)
	require.Equal(t, "Ann Lee", result.User.Name)
	require.Equal(t, "ann@acme.com", result.User.Email)
	require.True(t, result.User.IsAdmin)
	require.Equal(t, result.Team.ID, result.User.TeamID)

	collections := h.collections.list()
	require.Len(t, collections, 1)
	require.Equal(t, "Welcome", collections[0].Name)
	require.Equal(t, result.Team.ID, collections[0].TeamID)
	require.Equal(t, result.User.ID, collections[0].CreatorID)
}

func TestProvisionRepeatSignIn(t *testing.T) {
	h := newProvisionTestHarness(t)
	ctx := context.Background()

	first, err := h.provisioner.Provision(ctx, "google", annClaim(t))
	require.NoError(t, err)
	second, err := h.provisioner.Provision(ctx, "google", annClaim(t))
	require.NoError(t, err)

	require.Equal(t, first.Team.ID, second.Team.ID)
	require.Equal(t, first.User.ID, second.User.ID)
	require.False(t, second.TeamCreated)
	require.False(t, second.UserCreated)
	require.True(t, second.User.IsAdmin)
	require.Len(t, h.collections.list(), 1)
}

func TestProvisionSecondUserIsNotAdmin(t *testing.T) {
	h := newProvisionTestHarness(t)
	ctx := context.Background()

	_, err := h.provisioner.Provision(ctx, "google", annClaim(t))
	require.NoError(t, err)

	claim, err := identity.Normalize(identity.Profile{
		SubjectID:    "43",
		Name:         "Bob Kim",
		Email:        "bob@acme.com",
		HostedDomain: "acme.com",
	})
	require.NoError(t, err)

	result, err := h.provisioner.Provision(ctx, "google", claim)
	require.NoError(t, err)
	require.False(t, result.TeamCreated)
	require.True(t, result.UserCreated)
	require.False(t, result.User.IsAdmin)
	require.Len(t, h.collections.list(), 1)
}

func TestProvisionDoesNotSyncExistingUserProfile(t *testing.T) {
	h := newProvisionTestHarness(t)
	ctx := context.Background()

	_, err := h.provisioner.Provision(ctx, "google", annClaim(t))
	require.NoError(t, err)

	changed, err := identity.Normalize(identity.Profile{
		SubjectID:    "42",
		Name:         "Ann L. Renamed",
		Email:        "ann.renamed@acme.com",
		Picture:      "http://x/new.png",
		HostedDomain: "acme.com",
	})
	require.NoError(t, err)

	result, err := h.provisioner.Provision(ctx, "google", changed)
	require.NoError(t, err)
	require.False(t, result.UserCreated)
	require.Equal(t, "Ann Lee", result.User.Name)
	require.Equal(t, "ann@acme.com", result.User.Email)
	require.Equal(t, "http://x/p.png", result.User.AvatarURL)
}

func TestProvisionDoesNotOverwriteExistingTeamName(t *testing.T) {
	h := newProvisionTestHarness(t)
	ctx := context.Background()

	first, err := h.provisioner.Provision(ctx, "google", annClaim(t))
	require.NoError(t, err)

	claim := annClaim(t)
	claim.SubjectID = "99"
	claim.TeamName = "Renamed"
	claim.TeamAvatarURL = "https://logo.clearbit.com/other.example"

	result, err := h.provisioner.Provision(ctx, "google", claim)
	require.NoError(t, err)
	require.Equal(t, first.Team.ID, result.Team.ID)
	require.Equal(t, "Acme", result.Team.Name)
	require.Equal(t, "https://logo.clearbit.com/acme.com", result.Team.AvatarURL)
}

func TestProvisionConcurrentFirstSignIn(t *testing.T) {
	h := newProvisionTestHarness(t)
	ctx := context.Background()

	const n = 16
	claim := annClaim(t)
	results := make([]Result, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.provisioner.Provision(ctx, "google", claim)
		}(i)
	}
	wg.Wait()

	teamCreations := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, results[0].Team.ID, results[i].Team.ID)
		require.Equal(t, results[0].User.ID, results[i].User.ID)
		if results[i].TeamCreated {
			teamCreations++
		}
	}
	require.Equal(t, 1, teamCreations)
	require.Equal(t, 1, h.teams.count())
	require.Len(t, h.collections.list(), 1)
}

func TestProvisionBootstrapFailureDoesNotFailSignIn(t *testing.T) {
	h := newProvisionTestHarness(t)
	h.collections.failWith(errors.New("collections unavailable"))
	ctx := context.Background()

	result, err := h.provisioner.Provision(ctx, "google", annClaim(t))
	require.NoError(t, err)
	require.True(t, result.TeamCreated)
	require.True(t, result.User.IsAdmin)
	require.Equal(t, 1, h.collections.attempts())

	// No retry on subsequent sign-ins: the team already exists, so the
	// bootstrap gate never reopens.
	h.collections.failWith(nil)
	again, err := h.provisioner.Provision(ctx, "google", annClaim(t))
	require.NoError(t, err)
	require.False(t, again.TeamCreated)
	require.Equal(t, 1, h.collections.attempts())
	require.Empty(t, h.collections.list())
}

func TestProvisionTeamFailureAborts(t *testing.T) {
	h := newProvisionTestHarness(t)
	h.teams.failWith(errors.New("db down"))
	ctx := context.Background()

	_, err := h.provisioner.Provision(ctx, "google", annClaim(t))
	require.Error(t, err)
	require.Equal(t, 0, h.users.count())
	require.Equal(t, 0, h.collections.attempts())
}

func TestProvisionUserFailureAborts(t *testing.T) {
	h := newProvisionTestHarness(t)
	h.users.failWith(errors.New("db down"))
	ctx := context.Background()

	_, err := h.provisioner.Provision(ctx, "google", annClaim(t))
	require.Error(t, err)
	// The team commit stands: a valid, resumable state for retry.
	require.Equal(t, 1, h.teams.count())
	require.Equal(t, 0, h.collections.attempts())
}

// ---- Test harness and fakes ----

type provisionTestHarness struct {
	provisioner *Provisioner
	teams       *memTeamRepo
	users       *memUserRepo
	collections *memCollectionRepo
}

func newProvisionTestHarness(t *testing.T) *provisionTestHarness {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	teams := newMemTeamRepo()
	users := newMemUserRepo()
	collections := newMemCollectionRepo()
	seeder := bootstrap.NewSeeder(collections, node)

	return &provisionTestHarness{
		provisioner: NewProvisioner(teams, users, seeder, node, zap.NewNop()),
		teams:       teams,
		users:       users,
		collections: collections,
	}
}

type memTeamRepo struct {
	mu    sync.Mutex
	byKey map[string]domain.Team
	err   error
}

func newMemTeamRepo() *memTeamRepo {
	return &memTeamRepo{byKey: map[string]domain.Team{}}
}

func (m *memTeamRepo) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *memTeamRepo) FindOrCreate(ctx context.Context, team domain.Team) (repository.TeamLookup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return repository.TeamLookup{}, m.err
	}
	if existing, ok := m.byKey[team.ExternalOrgKey]; ok {
		return repository.TeamLookup{Team: existing, Created: false}, nil
	}
	m.byKey[team.ExternalOrgKey] = team
	return repository.TeamLookup{Team: team, Created: true}, nil
}

func (m *memTeamRepo) GetByID(ctx context.Context, teamID int64) (domain.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, team := range m.byKey {
		if team.ID == teamID {
			return team, nil
		}
	}
	return domain.Team{}, fmt.Errorf("team %d not found", teamID)
}

func (m *memTeamRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byKey)
}

type memUserRepo struct {
	mu    sync.Mutex
	byKey map[string]domain.User
	err   error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byKey: map[string]domain.User{}}
}

func userKey(user domain.User) string {
	return fmt.Sprintf("%s/%s/%d", user.Provider, user.ExternalUserID, user.TeamID)
}

func (m *memUserRepo) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *memUserRepo) FindOrCreate(ctx context.Context, user domain.User) (repository.UserLookup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return repository.UserLookup{}, m.err
	}
	key := userKey(user)
	if existing, ok := m.byKey[key]; ok {
		return repository.UserLookup{User: existing, Created: false}, nil
	}
	m.byKey[key] = user
	return repository.UserLookup{User: user, Created: true}, nil
}

func (m *memUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.byKey {
		if user.ID == userID {
			return user, nil
		}
	}
	return domain.User{}, fmt.Errorf("user %d not found", userID)
}

func (m *memUserRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byKey)
}

type memCollectionRepo struct {
	mu      sync.Mutex
	created []domain.Collection
	tries   int
	err     error
}

func newMemCollectionRepo() *memCollectionRepo {
	return &memCollectionRepo{}
}

func (m *memCollectionRepo) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *memCollectionRepo) Create(ctx context.Context, collection domain.Collection) (domain.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tries++
	if m.err != nil {
		return domain.Collection{}, m.err
	}
	m.created = append(m.created, collection)
	return collection, nil
}

func (m *memCollectionRepo) list() []domain.Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Collection{}, m.created...)
}

func (m *memCollectionRepo) attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tries
}
