package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/rafacaro85/polla-mundialista-core/models"
)

var (
	ErrTeamNotFound     = errors.New("team not found")
	ErrTeamNameConflict = errors.New("team name already exists in this tournament")
)

type TeamRepository interface {
	GetByID(ctx context.Context, id int) (*models.Team, error)
	GetByName(ctx context.Context, tournamentID int, name string) (*models.Team, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Team, error)
	UpdateCrestKey(ctx context.Context, id int, crestKey *string) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

const teamColumns = `id, tournament_id, name, group_tag, crest_key`

func scanTeam(scanner interface{ Scan(...interface{}) error }) (*models.Team, error) {
	t := &models.Team{}
	if err := scanner.Scan(&t.ID, &t.TournamentID, &t.Name, &t.GroupTag, &t.CrestKey); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`
	t, err := scanTeam(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to scan team by id %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTeamRepository) GetByName(ctx context.Context, tournamentID int, name string) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE tournament_id = $1 AND name = $2`
	t, err := scanTeam(r.db.QueryRowContext(ctx, query, tournamentID, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to scan team %q: %w", name, err)
	}
	return t, nil
}

func (r *postgresTeamRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE tournament_id = $1 ORDER BY group_tag ASC, name ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	teams := make([]*models.Team, 0)
	for rows.Next() {
		t, scanErr := scanTeam(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan team row: %w", scanErr)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (r *postgresTeamRepository) UpdateCrestKey(ctx context.Context, id int, crestKey *string) error {
	query := `UPDATE teams SET crest_key = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, crestKey, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Constraint == "teams_tournament_id_name_key" {
			return ErrTeamNameConflict
		}
		return err
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}
