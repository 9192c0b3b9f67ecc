package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rafacaro85/polla-mundialista-core/models"
)

type StandingOverrideRepository interface {
	ListByGroup(ctx context.Context, tournamentID int, groupTag string) ([]models.GroupStandingOverride, error)
}

type postgresStandingOverrideRepository struct {
	db *sql.DB
}

func NewPostgresStandingOverrideRepository(db *sql.DB) StandingOverrideRepository {
	return &postgresStandingOverrideRepository{db: db}
}

func (r *postgresStandingOverrideRepository) ListByGroup(ctx context.Context, tournamentID int, groupTag string) ([]models.GroupStandingOverride, error) {
	query := `
		SELECT id, tournament_id, group_tag, team, position
		FROM group_standing_overrides
		WHERE tournament_id = $1 AND group_tag = $2
		ORDER BY position ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID, groupTag)
	if err != nil {
		return nil, fmt.Errorf("failed to query standing overrides for group %s: %w", groupTag, err)
	}
	defer rows.Close()

	overrides := make([]models.GroupStandingOverride, 0)
	for rows.Next() {
		var o models.GroupStandingOverride
		if scanErr := rows.Scan(&o.ID, &o.TournamentID, &o.GroupTag, &o.Team, &o.Position); scanErr != nil {
			return nil, fmt.Errorf("failed to scan standing override row: %w", scanErr)
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}
