package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rafacaro85/polla-mundialista-core/models"
)

type PendingActionRepository interface {
	// UpsertOpen records a stalled promotion for a bracket position; a second
	// call for the same open stall only refreshes the reason.
	UpsertOpen(ctx context.Context, exec SQLExecutor, tournamentID, bracketPos int, reason string) error
	// ResolveOpen closes any open stall of the bracket position.
	ResolveOpen(ctx context.Context, exec SQLExecutor, tournamentID, bracketPos int) error
	ListOpen(ctx context.Context) ([]*models.PendingAction, error)
}

type postgresPendingActionRepository struct {
	db *sql.DB
}

func NewPostgresPendingActionRepository(db *sql.DB) PendingActionRepository {
	return &postgresPendingActionRepository{db: db}
}

func (r *postgresPendingActionRepository) UpsertOpen(ctx context.Context, exec SQLExecutor, tournamentID, bracketPos int, reason string) error {
	exec = executorOrDB(exec, r.db)
	// Partial unique index on (tournament_id, bracket_pos) WHERE resolved_at
	// IS NULL keeps at most one open row per position.
	query := `
		INSERT INTO pending_actions (tournament_id, bracket_pos, reason, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tournament_id, bracket_pos) WHERE resolved_at IS NULL
		DO UPDATE SET reason = EXCLUDED.reason`

	if _, err := exec.ExecContext(ctx, query, tournamentID, bracketPos, reason); err != nil {
		return fmt.Errorf("failed to record pending action for bracket pos %d: %w", bracketPos, err)
	}
	return nil
}

func (r *postgresPendingActionRepository) ResolveOpen(ctx context.Context, exec SQLExecutor, tournamentID, bracketPos int) error {
	exec = executorOrDB(exec, r.db)
	query := `
		UPDATE pending_actions
		SET resolved_at = NOW()
		WHERE tournament_id = $1 AND bracket_pos = $2 AND resolved_at IS NULL`

	if _, err := exec.ExecContext(ctx, query, tournamentID, bracketPos); err != nil {
		return fmt.Errorf("failed to resolve pending action for bracket pos %d: %w", bracketPos, err)
	}
	return nil
}

func (r *postgresPendingActionRepository) ListOpen(ctx context.Context) ([]*models.PendingAction, error) {
	query := `
		SELECT id, tournament_id, bracket_pos, reason, created_at, resolved_at
		FROM pending_actions
		WHERE resolved_at IS NULL
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query open pending actions: %w", err)
	}
	defer rows.Close()

	actions := make([]*models.PendingAction, 0)
	for rows.Next() {
		a := &models.PendingAction{}
		if scanErr := rows.Scan(&a.ID, &a.TournamentID, &a.BracketPos, &a.Reason, &a.CreatedAt, &a.ResolvedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan pending action row: %w", scanErr)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
