package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rafacaro85/polla-mundialista-core/models"
)

var (
	ErrPhaseStatusNotFound = errors.New("phase status not found")
	// ErrPhaseAlreadyUnlocked signals that an unlock hit a row that was
	// already unlocked; manual unlocks must not silently succeed twice.
	ErrPhaseAlreadyUnlocked = errors.New("phase is already unlocked")
)

const phaseStatusColumns = `id, tournament_id, phase, unlocked, completed, unlocked_at`

type PhaseStatusRepository interface {
	Get(ctx context.Context, tournamentID int, phase models.Phase) (*models.PhaseStatus, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.PhaseStatus, error)
	MarkCompleted(ctx context.Context, exec SQLExecutor, tournamentID int, phase models.Phase) error
	// Unlock flips a locked phase to unlocked and stamps the time. It
	// returns ErrPhaseAlreadyUnlocked when the row was already unlocked.
	Unlock(ctx context.Context, exec SQLExecutor, tournamentID int, phase models.Phase) error
}

type postgresPhaseStatusRepository struct {
	db *sql.DB
}

func NewPostgresPhaseStatusRepository(db *sql.DB) PhaseStatusRepository {
	return &postgresPhaseStatusRepository{db: db}
}

func scanPhaseStatus(scanner interface{ Scan(...interface{}) error }) (*models.PhaseStatus, error) {
	ps := &models.PhaseStatus{}
	err := scanner.Scan(&ps.ID, &ps.TournamentID, &ps.Phase, &ps.Unlocked, &ps.Completed, &ps.UnlockedAt)
	if err != nil {
		return nil, err
	}
	return ps, nil
}

func (r *postgresPhaseStatusRepository) Get(ctx context.Context, tournamentID int, phase models.Phase) (*models.PhaseStatus, error) {
	query := `SELECT ` + phaseStatusColumns + ` FROM phase_statuses WHERE tournament_id = $1 AND phase = $2`

	ps, err := scanPhaseStatus(r.db.QueryRowContext(ctx, query, tournamentID, phase))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPhaseStatusNotFound
		}
		return nil, fmt.Errorf("failed to scan phase status %s of tournament %d: %w", phase, tournamentID, err)
	}
	return ps, nil
}

func (r *postgresPhaseStatusRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.PhaseStatus, error) {
	query := `SELECT ` + phaseStatusColumns + ` FROM phase_statuses WHERE tournament_id = $1`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query phase statuses for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	byPhase := make(map[models.Phase]*models.PhaseStatus)
	for rows.Next() {
		ps, scanErr := scanPhaseStatus(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan phase status row: %w", scanErr)
		}
		byPhase[ps.Phase] = ps
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during phase status rows iteration: %w", err)
	}

	// Return in tournament order rather than table order.
	statuses := make([]*models.PhaseStatus, 0, len(byPhase))
	for _, phase := range models.PhasesInOrder() {
		if ps, ok := byPhase[phase]; ok {
			statuses = append(statuses, ps)
		}
	}
	return statuses, nil
}

func (r *postgresPhaseStatusRepository) MarkCompleted(ctx context.Context, exec SQLExecutor, tournamentID int, phase models.Phase) error {
	exec = executorOrDB(exec, r.db)
	// Idempotent: re-marking a completed phase affects zero rows and is fine.
	query := `UPDATE phase_statuses SET completed = TRUE WHERE tournament_id = $1 AND phase = $2 AND NOT completed`
	if _, err := exec.ExecContext(ctx, query, tournamentID, phase); err != nil {
		return fmt.Errorf("failed to mark phase %s completed for tournament %d: %w", phase, tournamentID, err)
	}
	return nil
}

func (r *postgresPhaseStatusRepository) Unlock(ctx context.Context, exec SQLExecutor, tournamentID int, phase models.Phase) error {
	exec = executorOrDB(exec, r.db)
	query := `
		UPDATE phase_statuses
		SET unlocked = TRUE, unlocked_at = NOW()
		WHERE tournament_id = $1 AND phase = $2 AND NOT unlocked`

	result, err := exec.ExecContext(ctx, query, tournamentID, phase)
	if err != nil {
		return fmt.Errorf("failed to unlock phase %s for tournament %d: %w", phase, tournamentID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		// Either the row does not exist or it is already unlocked.
		var exists bool
		checkErr := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM phase_statuses WHERE tournament_id = $1 AND phase = $2)`,
			tournamentID, phase,
		).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("failed to check phase status existence: %w", checkErr)
		}
		if !exists {
			return ErrPhaseStatusNotFound
		}
		return ErrPhaseAlreadyUnlocked
	}
	return nil
}
