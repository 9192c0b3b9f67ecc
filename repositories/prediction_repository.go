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
	ErrPredictionNotFound    = errors.New("prediction not found")
	ErrPredictionUserInvalid = errors.New("prediction user conflict or invalid")
)

const predictionColumns = `
	id, user_id, match_id, league_id, home_goals, away_goals, points, joker, override, updated_at`

// LeaderboardRow is one aggregated line of a tournament or league ranking:
// prediction points plus bracket points per user.
type LeaderboardRow struct {
	UserID        int    `json:"user_id"`
	Nickname      string `json:"nickname"`
	MatchPoints   int    `json:"match_points"`
	BracketPoints int    `json:"bracket_points"`
	TotalPoints   int    `json:"total_points"`
}

type PredictionRepository interface {
	// GetEffective resolves the prediction visible in a scope: the
	// league-scoped row if one exists, else the global row.
	GetEffective(ctx context.Context, userID, matchID int, leagueID *int) (*models.Prediction, error)
	ListByMatch(ctx context.Context, matchID int) ([]*models.Prediction, error)
	Upsert(ctx context.Context, exec SQLExecutor, p *models.Prediction) error
	Delete(ctx context.Context, userID, matchID int, leagueID *int) error
	UpdatePoints(ctx context.Context, exec SQLExecutor, id, points int) error
	// DeactivateJokers clears the joker flag on every prediction the user
	// holds for the given phase in the given scope, except the one match.
	DeactivateJokers(ctx context.Context, exec SQLExecutor, userID, tournamentID int, phase models.Phase, leagueID *int, exceptMatchID int) error
	// ListJokered returns the user's jokered global predictions for a phase,
	// used to materialize league-scoped override rows.
	ListJokered(ctx context.Context, userID, tournamentID int, phase models.Phase) ([]*models.Prediction, error)
	Leaderboard(ctx context.Context, tournamentID int, leagueID *int) ([]LeaderboardRow, error)
}

type postgresPredictionRepository struct {
	db *sql.DB
}

func NewPostgresPredictionRepository(db *sql.DB) PredictionRepository {
	return &postgresPredictionRepository{db: db}
}

func scanPrediction(scanner interface{ Scan(...interface{}) error }) (*models.Prediction, error) {
	p := &models.Prediction{}
	err := scanner.Scan(
		&p.ID, &p.UserID, &p.MatchID, &p.LeagueID,
		&p.HomeGoals, &p.AwayGoals, &p.Points, &p.Joker, &p.Override, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresPredictionRepository) GetEffective(ctx context.Context, userID, matchID int, leagueID *int) (*models.Prediction, error) {
	// Scoped rows win over the global row; NULLS LAST keeps the global row
	// as the fallback when no league id is supplied.
	query := `
		SELECT` + predictionColumns + `
		FROM predictions
		WHERE user_id = $1 AND match_id = $2
		  AND (league_id IS NOT DISTINCT FROM $3 OR league_id IS NULL)
		ORDER BY league_id NULLS LAST
		LIMIT 1`

	p, err := scanPrediction(r.db.QueryRowContext(ctx, query, userID, matchID, leagueID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPredictionNotFound
		}
		return nil, fmt.Errorf("failed to scan effective prediction: %w", err)
	}
	return p, nil
}

func (r *postgresPredictionRepository) ListByMatch(ctx context.Context, matchID int) ([]*models.Prediction, error) {
	query := `SELECT` + predictionColumns + ` FROM predictions WHERE match_id = $1 ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions for match %d: %w", matchID, err)
	}
	defer rows.Close()

	predictions := make([]*models.Prediction, 0)
	for rows.Next() {
		p, scanErr := scanPrediction(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan prediction row: %w", scanErr)
		}
		predictions = append(predictions, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during prediction rows iteration: %w", err)
	}
	return predictions, nil
}

func (r *postgresPredictionRepository) Upsert(ctx context.Context, exec SQLExecutor, p *models.Prediction) error {
	exec = executorOrDB(exec, r.db)
	// scope_key collapses NULL league ids so the partial-unique trick is not
	// needed; it is a generated column: COALESCE(league_id, 0).
	query := `
		INSERT INTO predictions
			(user_id, match_id, league_id, home_goals, away_goals, points, joker, override, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (user_id, match_id, scope_key) DO UPDATE
		SET home_goals = EXCLUDED.home_goals,
		    away_goals = EXCLUDED.away_goals,
		    joker = EXCLUDED.joker,
		    override = EXCLUDED.override,
		    updated_at = NOW()
		RETURNING id, points, updated_at`

	err := exec.QueryRowContext(ctx, query,
		p.UserID, p.MatchID, p.LeagueID,
		p.HomeGoals, p.AwayGoals, p.Points, p.Joker, p.Override,
	).Scan(&p.ID, &p.Points, &p.UpdatedAt)

	return r.handlePredictionError(err)
}

func (r *postgresPredictionRepository) Delete(ctx context.Context, userID, matchID int, leagueID *int) error {
	query := `
		DELETE FROM predictions
		WHERE user_id = $1 AND match_id = $2 AND league_id IS NOT DISTINCT FROM $3`

	result, err := r.db.ExecContext(ctx, query, userID, matchID, leagueID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPredictionNotFound)
}

func (r *postgresPredictionRepository) UpdatePoints(ctx context.Context, exec SQLExecutor, id, points int) error {
	exec = executorOrDB(exec, r.db)
	query := `UPDATE predictions SET points = $1 WHERE id = $2`
	result, err := exec.ExecContext(ctx, query, points, id)
	if err != nil {
		return fmt.Errorf("failed to update points for prediction %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrPredictionNotFound)
}

func (r *postgresPredictionRepository) DeactivateJokers(ctx context.Context, exec SQLExecutor, userID, tournamentID int, phase models.Phase, leagueID *int, exceptMatchID int) error {
	exec = executorOrDB(exec, r.db)
	query := `
		UPDATE predictions p
		SET joker = FALSE
		FROM matches m
		WHERE p.match_id = m.id
		  AND p.user_id = $1
		  AND m.tournament_id = $2
		  AND m.phase = $3
		  AND p.league_id IS NOT DISTINCT FROM $4
		  AND p.match_id <> $5
		  AND p.joker`

	if _, err := exec.ExecContext(ctx, query, userID, tournamentID, phase, leagueID, exceptMatchID); err != nil {
		return fmt.Errorf("failed to deactivate jokers for user %d phase %s: %w", userID, phase, err)
	}
	return nil
}

func (r *postgresPredictionRepository) ListJokered(ctx context.Context, userID, tournamentID int, phase models.Phase) ([]*models.Prediction, error) {
	query := `
		SELECT p.id, p.user_id, p.match_id, p.league_id, p.home_goals, p.away_goals,
		       p.points, p.joker, p.override, p.updated_at
		FROM predictions p
		JOIN matches m ON m.id = p.match_id
		WHERE p.user_id = $1
		  AND m.tournament_id = $2
		  AND m.phase = $3
		  AND p.league_id IS NULL
		  AND p.joker`

	rows, err := r.db.QueryContext(ctx, query, userID, tournamentID, phase)
	if err != nil {
		return nil, fmt.Errorf("failed to query jokered predictions: %w", err)
	}
	defer rows.Close()

	predictions := make([]*models.Prediction, 0, 1)
	for rows.Next() {
		p, scanErr := scanPrediction(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan jokered prediction: %w", scanErr)
		}
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}

func (r *postgresPredictionRepository) Leaderboard(ctx context.Context, tournamentID int, leagueID *int) ([]LeaderboardRow, error) {
	// League scope: a scoped row masks the user's global row for the same
	// match, mirroring GetEffective. The global scope only reads global rows.
	query := `
		WITH effective AS (
			SELECT DISTINCT ON (p.user_id, p.match_id)
				p.user_id, p.match_id, p.points
			FROM predictions p
			JOIN matches m ON m.id = p.match_id
			WHERE m.tournament_id = $1
			  AND (p.league_id IS NOT DISTINCT FROM $2 OR p.league_id IS NULL)
			ORDER BY p.user_id, p.match_id, p.league_id NULLS LAST
		)
		SELECT u.id, u.nickname,
		       COALESCE(SUM(e.points), 0) AS match_points,
		       COALESCE(MAX(b.points), 0) AS bracket_points
		FROM users u
		LEFT JOIN effective e ON e.user_id = u.id
		LEFT JOIN brackets b ON b.user_id = u.id
			AND b.tournament_id = $1
			AND b.league_id IS NOT DISTINCT FROM $2
		GROUP BY u.id, u.nickname
		HAVING COALESCE(SUM(e.points), 0) > 0 OR COALESCE(MAX(b.points), 0) > 0
		ORDER BY match_points + bracket_points DESC, u.nickname ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	board := make([]LeaderboardRow, 0)
	for rows.Next() {
		var row LeaderboardRow
		if scanErr := rows.Scan(&row.UserID, &row.Nickname, &row.MatchPoints, &row.BracketPoints); scanErr != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", scanErr)
		}
		row.TotalPoints = row.MatchPoints + row.BracketPoints
		board = append(board, row)
	}
	return board, rows.Err()
}

func (r *postgresPredictionRepository) handlePredictionError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Constraint {
		case "predictions_user_id_fkey":
			return ErrPredictionUserInvalid
		case "predictions_match_id_fkey":
			return ErrMatchNotFound
		}
	}
	return err
}
