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
	ErrBracketNotFound    = errors.New("bracket not found")
	ErrBracketUserInvalid = errors.New("bracket user conflict or invalid")
)

const bracketColumns = `
	id, user_id, tournament_id, league_id, picks_json, credited_json, points, updated_at`

type BracketRepository interface {
	GetByUserScope(ctx context.Context, userID, tournamentID int, leagueID *int) (*models.Bracket, error)
	// ListByTournament pages through all brackets of a tournament in id
	// order; afterID=0 starts from the beginning.
	ListByTournament(ctx context.Context, tournamentID, afterID, limit int) ([]*models.Bracket, error)
	Upsert(ctx context.Context, exec SQLExecutor, b *models.Bracket) error
	Delete(ctx context.Context, userID, tournamentID int, leagueID *int) error
	UpdateScore(ctx context.Context, exec SQLExecutor, id, points int, creditedJSON string) error
	ResetScores(ctx context.Context, exec SQLExecutor, tournamentID int) error
}

type postgresBracketRepository struct {
	db *sql.DB
}

func NewPostgresBracketRepository(db *sql.DB) BracketRepository {
	return &postgresBracketRepository{db: db}
}

func scanBracket(scanner interface{ Scan(...interface{}) error }) (*models.Bracket, error) {
	b := &models.Bracket{}
	err := scanner.Scan(
		&b.ID, &b.UserID, &b.TournamentID, &b.LeagueID,
		&b.PicksJSON, &b.CreditedJSON, &b.Points, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *postgresBracketRepository) GetByUserScope(ctx context.Context, userID, tournamentID int, leagueID *int) (*models.Bracket, error) {
	query := `
		SELECT` + bracketColumns + `
		FROM brackets
		WHERE user_id = $1 AND tournament_id = $2 AND league_id IS NOT DISTINCT FROM $3`

	b, err := scanBracket(r.db.QueryRowContext(ctx, query, userID, tournamentID, leagueID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketNotFound
		}
		return nil, fmt.Errorf("failed to scan bracket: %w", err)
	}
	return b, nil
}

func (r *postgresBracketRepository) ListByTournament(ctx context.Context, tournamentID, afterID, limit int) ([]*models.Bracket, error) {
	query := `
		SELECT` + bracketColumns + `
		FROM brackets
		WHERE tournament_id = $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, tournamentID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query brackets for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	brackets := make([]*models.Bracket, 0)
	for rows.Next() {
		b, scanErr := scanBracket(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan bracket row: %w", scanErr)
		}
		brackets = append(brackets, b)
	}
	return brackets, rows.Err()
}

func (r *postgresBracketRepository) Upsert(ctx context.Context, exec SQLExecutor, b *models.Bracket) error {
	exec = executorOrDB(exec, r.db)
	query := `
		INSERT INTO brackets
			(user_id, tournament_id, league_id, picks_json, credited_json, points, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id, tournament_id, scope_key) DO UPDATE
		SET picks_json = EXCLUDED.picks_json,
		    updated_at = NOW()
		RETURNING id, credited_json, points, updated_at`

	err := exec.QueryRowContext(ctx, query,
		b.UserID, b.TournamentID, b.LeagueID,
		b.PicksJSON, b.CreditedJSON, b.Points,
	).Scan(&b.ID, &b.CreditedJSON, &b.Points, &b.UpdatedAt)

	return r.handleBracketError(err)
}

func (r *postgresBracketRepository) Delete(ctx context.Context, userID, tournamentID int, leagueID *int) error {
	query := `
		DELETE FROM brackets
		WHERE user_id = $1 AND tournament_id = $2 AND league_id IS NOT DISTINCT FROM $3`

	result, err := r.db.ExecContext(ctx, query, userID, tournamentID, leagueID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrBracketNotFound)
}

func (r *postgresBracketRepository) UpdateScore(ctx context.Context, exec SQLExecutor, id, points int, creditedJSON string) error {
	exec = executorOrDB(exec, r.db)
	query := `UPDATE brackets SET points = $1, credited_json = $2, updated_at = NOW() WHERE id = $3`
	result, err := exec.ExecContext(ctx, query, points, creditedJSON, id)
	if err != nil {
		return fmt.Errorf("failed to update score for bracket %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrBracketNotFound)
}

func (r *postgresBracketRepository) ResetScores(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	exec = executorOrDB(exec, r.db)
	query := `UPDATE brackets SET points = 0, credited_json = '{}', updated_at = NOW() WHERE tournament_id = $1`
	if _, err := exec.ExecContext(ctx, query, tournamentID); err != nil {
		return fmt.Errorf("failed to reset bracket scores for tournament %d: %w", tournamentID, err)
	}
	return nil
}

func (r *postgresBracketRepository) handleBracketError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Constraint {
		case "brackets_user_id_fkey":
			return ErrBracketUserInvalid
		case "brackets_tournament_id_fkey":
			return ErrMatchTournamentInvalid
		}
	}
	return err
}
