package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/rafacaro85/polla-mundialista-core/models"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchTournamentInvalid = errors.New("match tournament conflict or invalid")
)

const matchColumns = `
	id, tournament_id, phase, group_tag,
	home_team, away_team, home_crest_url, away_crest_url,
	home_placeholder, away_placeholder,
	bracket_pos, leg, next_match_id, next_slot,
	home_score, away_score, shootout_winner,
	status, locked, kickoff_at, created_at`

// MatchFilter narrows ListByTournament. Nil fields are not applied.
type MatchFilter struct {
	Phase      *models.Phase
	GroupTag   *string
	Status     *models.MatchStatus
	BracketPos *int
}

// AdminMatchUpdate carries the optional field updates an administrator may
// apply to a match. Nil fields are left untouched.
type AdminMatchUpdate struct {
	HomeScore       *int
	AwayScore       *int
	ShootoutWinner  *string
	Status          *models.MatchStatus
	Locked          *bool
	HomePlaceholder *string
	AwayPlaceholder *string
	NextMatchID     *int
	NextSlot        *int
}

type MatchRepository interface {
	GetByID(ctx context.Context, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, filter MatchFilter) ([]*models.Match, error)
	UpdateScoreStatus(ctx context.Context, exec SQLExecutor, id int, homeScore, awayScore int, shootoutWinner *string, status models.MatchStatus) error
	UpdateSlotTeam(ctx context.Context, exec SQLExecutor, id, slot int, team string, crestURL *string) error
	ClearSlotIfTeamIn(ctx context.Context, exec SQLExecutor, id, slot int, teams []string) error
	ApplyAdminUpdate(ctx context.Context, id int, update AdminMatchUpdate) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func scanMatch(scanner interface{ Scan(...interface{}) error }) (*models.Match, error) {
	m := &models.Match{}
	err := scanner.Scan(
		&m.ID, &m.TournamentID, &m.Phase, &m.GroupTag,
		&m.HomeTeam, &m.AwayTeam, &m.HomeCrestURL, &m.AwayCrestURL,
		&m.HomePlaceholder, &m.AwayPlaceholder,
		&m.BracketPos, &m.Leg, &m.NextMatchID, &m.NextSlot,
		&m.HomeScore, &m.AwayScore, &m.ShootoutWinner,
		&m.Status, &m.Locked, &m.KickoffAt, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1`
	m, err := scanMatch(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int, filter MatchFilter) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT` + matchColumns + ` FROM matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	placeholderIndex := 2

	appendClause := func(column string, value interface{}) {
		queryBuilder.WriteString(" AND " + column + " = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, value)
		placeholderIndex++
	}

	if filter.Phase != nil {
		appendClause("phase", *filter.Phase)
	}
	if filter.GroupTag != nil {
		appendClause("group_tag", *filter.GroupTag)
	}
	if filter.Status != nil {
		appendClause("status", *filter.Status)
	}
	if filter.BracketPos != nil {
		appendClause("bracket_pos", *filter.BracketPos)
	}

	queryBuilder.WriteString(" ORDER BY kickoff_at ASC, id ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateScoreStatus(ctx context.Context, exec SQLExecutor, id int, homeScore, awayScore int, shootoutWinner *string, status models.MatchStatus) error {
	exec = executorOrDB(exec, r.db)
	query := `
		UPDATE matches
		SET home_score = $1, away_score = $2, shootout_winner = $3, status = $4
		WHERE id = $5`

	result, err := exec.ExecContext(ctx, query, homeScore, awayScore, shootoutWinner, status, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

// UpdateSlotTeam resolves one team slot. The update touches only the columns
// of that slot and is a no-op when the slot already holds the team, so
// re-running promotion cannot clobber the sibling slot or churn rows.
func (r *postgresMatchRepository) UpdateSlotTeam(ctx context.Context, exec SQLExecutor, id, slot int, team string, crestURL *string) error {
	exec = executorOrDB(exec, r.db)
	var query string
	if slot == models.SlotHome {
		query = `
			UPDATE matches
			SET home_team = $1, home_crest_url = $2
			WHERE id = $3 AND home_team IS DISTINCT FROM $1`
	} else {
		query = `
			UPDATE matches
			SET away_team = $1, away_crest_url = $2
			WHERE id = $3 AND away_team IS DISTINCT FROM $1`
	}

	if _, err := exec.ExecContext(ctx, query, team, crestURL, id); err != nil {
		return fmt.Errorf("failed to resolve slot %d of match %d: %w", slot, id, err)
	}
	return nil
}

// ClearSlotIfTeamIn clears a slot only when it currently holds one of the
// given team names. Placeholder codes are untouched.
func (r *postgresMatchRepository) ClearSlotIfTeamIn(ctx context.Context, exec SQLExecutor, id, slot int, teams []string) error {
	exec = executorOrDB(exec, r.db)
	if len(teams) == 0 {
		return nil
	}

	var query string
	if slot == models.SlotHome {
		query = `
			UPDATE matches
			SET home_team = NULL, home_crest_url = NULL
			WHERE id = $1 AND home_team = ANY($2)`
	} else {
		query = `
			UPDATE matches
			SET away_team = NULL, away_crest_url = NULL
			WHERE id = $1 AND away_team = ANY($2)`
	}

	if _, err := exec.ExecContext(ctx, query, id, pq.Array(teams)); err != nil {
		return fmt.Errorf("failed to clear slot %d of match %d: %w", slot, id, err)
	}
	return nil
}

func (r *postgresMatchRepository) ApplyAdminUpdate(ctx context.Context, id int, update AdminMatchUpdate) error {
	var queryBuilder strings.Builder
	queryBuilder.WriteString("UPDATE matches SET ")

	args := make([]interface{}, 0, 10)
	setClauses := make([]string, 0, 10)
	appendSet := func(column string, value interface{}) {
		args = append(args, value)
		setClauses = append(setClauses, column+" = $"+strconv.Itoa(len(args)))
	}

	if update.HomeScore != nil {
		appendSet("home_score", *update.HomeScore)
	}
	if update.AwayScore != nil {
		appendSet("away_score", *update.AwayScore)
	}
	if update.ShootoutWinner != nil {
		appendSet("shootout_winner", *update.ShootoutWinner)
	}
	if update.Status != nil {
		appendSet("status", *update.Status)
	}
	if update.Locked != nil {
		appendSet("locked", *update.Locked)
	}
	if update.HomePlaceholder != nil {
		appendSet("home_placeholder", *update.HomePlaceholder)
	}
	if update.AwayPlaceholder != nil {
		appendSet("away_placeholder", *update.AwayPlaceholder)
	}
	if update.NextMatchID != nil {
		appendSet("next_match_id", *update.NextMatchID)
	}
	if update.NextSlot != nil {
		appendSet("next_slot", *update.NextSlot)
	}

	if len(setClauses) == 0 {
		return nil
	}

	queryBuilder.WriteString(strings.Join(setClauses, ", "))
	args = append(args, id)
	queryBuilder.WriteString(" WHERE id = $" + strconv.Itoa(len(args)))

	result, err := r.db.ExecContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Constraint {
		case "matches_tournament_id_fkey":
			return ErrMatchTournamentInvalid
		case "matches_next_match_id_fkey":
			return fmt.Errorf("next match reference invalid: %w", err)
		}
	}
	return err
}
