package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rafacaro85/polla-mundialista-core/models"
)

var ErrLeagueNotFound = errors.New("league not found")

// LeagueRepository is the narrow read interface onto the league-membership
// collaborator's data: the core only needs existence and the block flag.
type LeagueRepository interface {
	GetByID(ctx context.Context, id int) (*models.League, error)
	// GetMembership returns the membership row, or nil when the user is not
	// a member of the league.
	GetMembership(ctx context.Context, leagueID, userID int) (*models.LeagueMember, error)
}

type postgresLeagueRepository struct {
	db *sql.DB
}

func NewPostgresLeagueRepository(db *sql.DB) LeagueRepository {
	return &postgresLeagueRepository{db: db}
}

func (r *postgresLeagueRepository) GetByID(ctx context.Context, id int) (*models.League, error) {
	query := `SELECT id, tournament_id, name, created_at FROM leagues WHERE id = $1`

	l := &models.League{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&l.ID, &l.TournamentID, &l.Name, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeagueNotFound
		}
		return nil, fmt.Errorf("failed to scan league by id %d: %w", id, err)
	}
	return l, nil
}

func (r *postgresLeagueRepository) GetMembership(ctx context.Context, leagueID, userID int) (*models.LeagueMember, error) {
	query := `SELECT league_id, user_id, blocked FROM league_members WHERE league_id = $1 AND user_id = $2`

	m := &models.LeagueMember{}
	err := r.db.QueryRowContext(ctx, query, leagueID, userID).Scan(&m.LeagueID, &m.UserID, &m.Blocked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan league membership: %w", err)
	}
	return m, nil
}
