package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smallbiznis/teamdocs-auth/internal/domain"
)

// Compile-time interface assertions.
var (
	_ TeamRepository       = (*PostgresTeamRepo)(nil)
	_ UserRepository       = (*PostgresUserRepo)(nil)
	_ CollectionRepository = (*PostgresCollectionRepo)(nil)
)

// PostgresTeamRepo implements TeamRepository using pgx.
type PostgresTeamRepo struct {
	db *pgxpool.Pool
}

func NewPostgresTeamRepo(pool *pgxpool.Pool) *PostgresTeamRepo {
	return &PostgresTeamRepo{db: pool}
}

const teamColumns = `id, external_org_key, name, avatar_url, created_at, updated_at`

const insertTeamSQL = `INSERT INTO teams (id, external_org_key, name, avatar_url)
VALUES ($1, $2, $3, $4)
ON CONFLICT (external_org_key) DO NOTHING
RETURNING ` + teamColumns

const selectTeamByOrgKeySQL = `SELECT ` + teamColumns + ` FROM teams WHERE external_org_key = $1`

// FindOrCreate inserts the team guarded by the external_org_key unique
// constraint. When the insert loses the race it re-reads the winner's row,
// so concurrent first-signers from one organization converge on a single
// team and exactly one caller observes Created=true.
func (r *PostgresTeamRepo) FindOrCreate(ctx context.Context, team domain.Team) (TeamLookup, error) {
	row := r.db.QueryRow(ctx, insertTeamSQL, team.ID, team.ExternalOrgKey, team.Name, team.AvatarURL)
	created, err := scanTeam(row)
	if err == nil {
		return TeamLookup{Team: created, Created: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return TeamLookup{}, fmt.Errorf("insert team: %w", err)
	}

	existing, err := scanTeam(r.db.QueryRow(ctx, selectTeamByOrgKeySQL, team.ExternalOrgKey))
	if err != nil {
		return TeamLookup{}, fmt.Errorf("get team by org key: %w", err)
	}
	return TeamLookup{Team: existing, Created: false}, nil
}

func (r *PostgresTeamRepo) GetByID(ctx context.Context, teamID int64) (domain.Team, error) {
	team, err := scanTeam(r.db.QueryRow(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, teamID))
	if err != nil {
		return domain.Team{}, fmt.Errorf("get team by id: %w", err)
	}
	return team, nil
}

// PostgresUserRepo implements UserRepository.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const userColumns = `id, team_id, provider, external_user_id, name, email, avatar_url, is_admin, created_at, updated_at`

const insertUserSQL = `INSERT INTO users (id, team_id, provider, external_user_id, name, email, avatar_url, is_admin)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (provider, external_user_id, team_id) DO NOTHING
RETURNING ` + userColumns

const selectUserByIdentitySQL = `SELECT ` + userColumns + ` FROM users
WHERE provider = $1 AND external_user_id = $2 AND team_id = $3`

// FindOrCreate mirrors the team contract on (provider, external_user_id,
// team_id). Existing rows are returned untouched: sign-in is not a
// profile-sync operation.
func (r *PostgresUserRepo) FindOrCreate(ctx context.Context, user domain.User) (UserLookup, error) {
	row := r.db.QueryRow(ctx, insertUserSQL,
		user.ID,
		user.TeamID,
		user.Provider,
		user.ExternalUserID,
		user.Name,
		user.Email,
		user.AvatarURL,
		user.IsAdmin,
	)
	created, err := scanUser(row)
	if err == nil {
		return UserLookup{User: created, Created: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return UserLookup{}, fmt.Errorf("insert user: %w", err)
	}

	existing, err := scanUser(r.db.QueryRow(ctx, selectUserByIdentitySQL, user.Provider, user.ExternalUserID, user.TeamID))
	if err != nil {
		return UserLookup{}, fmt.Errorf("get user by identity: %w", err)
	}
	return UserLookup{User: existing, Created: false}, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

// PostgresCollectionRepo implements CollectionRepository.
type PostgresCollectionRepo struct {
	db *pgxpool.Pool
}

func NewPostgresCollectionRepo(pool *pgxpool.Pool) *PostgresCollectionRepo {
	return &PostgresCollectionRepo{db: pool}
}

const insertCollectionSQL = `INSERT INTO collections (id, team_id, creator_id, name, description)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, team_id, creator_id, name, description, created_at`

func (r *PostgresCollectionRepo) Create(ctx context.Context, collection domain.Collection) (domain.Collection, error) {
	var inserted domain.Collection
	err := r.db.QueryRow(ctx, insertCollectionSQL,
		collection.ID,
		collection.TeamID,
		collection.CreatorID,
		collection.Name,
		collection.Description,
	).Scan(
		&inserted.ID,
		&inserted.TeamID,
		&inserted.CreatorID,
		&inserted.Name,
		&inserted.Description,
		&inserted.CreatedAt,
	)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("insert collection: %w", err)
	}
	return inserted, nil
}

func scanTeam(row pgx.Row) (domain.Team, error) {
	var team domain.Team
	err := row.Scan(
		&team.ID,
		&team.ExternalOrgKey,
		&team.Name,
		&team.AvatarURL,
		&team.CreatedAt,
		&team.UpdatedAt,
	)
	return team, err
}

func scanUser(row pgx.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.TeamID,
		&user.Provider,
		&user.ExternalUserID,
		&user.Name,
		&user.Email,
		&user.AvatarURL,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}
