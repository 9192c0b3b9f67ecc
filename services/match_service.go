package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rafacaro85/polla-mundialista-core/cache"
	"github.com/rafacaro85/polla-mundialista-core/engine"
	"github.com/rafacaro85/polla-mundialista-core/events"
	"github.com/rafacaro85/polla-mundialista-core/live"
	"github.com/rafacaro85/polla-mundialista-core/models"
	"github.com/rafacaro85/polla-mundialista-core/repositories"
)

// FinishMatchInput carries the authoritative final result reported from
// outside the core.
type FinishMatchInput struct {
	HomeScore      int     `json:"home_score"`
	AwayScore      int     `json:"away_score"`
	ShootoutWinner *string `json:"shootout_winner,omitempty"`
}

// AdminMatchUpdateInput mirrors the optional match fields an administrator
// may patch directly.
type AdminMatchUpdateInput struct {
	HomeScore       *int                `json:"home_score,omitempty"`
	AwayScore       *int                `json:"away_score,omitempty"`
	ShootoutWinner  *string             `json:"shootout_winner,omitempty"`
	Status          *models.MatchStatus `json:"status,omitempty"`
	Locked          *bool               `json:"locked,omitempty"`
	HomePlaceholder *string             `json:"home_placeholder,omitempty"`
	AwayPlaceholder *string             `json:"away_placeholder,omitempty"`
	NextMatchID     *int                `json:"next_match_id,omitempty"`
	NextSlot        *int                `json:"next_slot,omitempty"`
}

type MatchService interface {
	GetMatch(ctx context.Context, id int) (*models.Match, error)
	// ListMatchesByPhase returns the fixtures of a phase, refusing when the
	// phase is still locked and the caller is not an administrator.
	ListMatchesByPhase(ctx context.Context, tournamentID int, phase models.Phase, callerRole models.UserRole) ([]*models.Match, error)
	// FinishMatch records the final score, rescores every attached
	// prediction in the same transaction, and kicks off the async cascade.
	FinishMatch(ctx context.Context, matchID int, input FinishMatchInput) (*models.Match, error)
	// AdminUpdate patches match fields; editing the score of a finished
	// match re-triggers the cascade so points and promotion converge.
	AdminUpdate(ctx context.Context, matchID int, input AdminMatchUpdateInput) (*models.Match, error)
}

type matchService struct {
	db             *sql.DB
	matchRepo      repositories.MatchRepository
	predictionRepo repositories.PredictionRepository
	phaseRepo      repositories.PhaseStatusRepository
	leaderboards   *cache.LeaderboardCache
	dispatcher     *events.Dispatcher
	hub            *live.Hub
	logger         *slog.Logger
}

func NewMatchService(
	db *sql.DB,
	matchRepo repositories.MatchRepository,
	predictionRepo repositories.PredictionRepository,
	phaseRepo repositories.PhaseStatusRepository,
	leaderboards *cache.LeaderboardCache,
	dispatcher *events.Dispatcher,
	hub *live.Hub,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		db:             db,
		matchRepo:      matchRepo,
		predictionRepo: predictionRepo,
		phaseRepo:      phaseRepo,
		leaderboards:   leaderboards,
		dispatcher:     dispatcher,
		hub:            hub,
		logger:         logger,
	}
}

func (s *matchService) GetMatch(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

func (s *matchService) ListMatchesByPhase(ctx context.Context, tournamentID int, phase models.Phase, callerRole models.UserRole) ([]*models.Match, error) {
	if !phase.Valid() {
		return nil, ErrInvalidPhase
	}

	status, err := s.phaseRepo.Get(ctx, tournamentID, phase)
	if err != nil {
		if errors.Is(err, repositories.ErrPhaseStatusNotFound) {
			return nil, ErrPhaseStatusNotFound
		}
		return nil, err
	}
	if !status.Unlocked && callerRole != models.RoleAdmin {
		return nil, ErrPhaseLocked
	}

	return s.matchRepo.ListByTournament(ctx, tournamentID, repositories.MatchFilter{Phase: &phase})
}

func (s *matchService) FinishMatch(ctx context.Context, matchID int, input FinishMatchInput) (*models.Match, error) {
	if input.HomeScore < 0 || input.AwayScore < 0 {
		return nil, ErrInvalidScore
	}

	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Locked {
		return nil, ErrMatchLocked
	}
	if input.ShootoutWinner != nil {
		if match.HomeTeam == nil || match.AwayTeam == nil ||
			(*input.ShootoutWinner != *match.HomeTeam && *input.ShootoutWinner != *match.AwayTeam) {
			return nil, ErrShootoutWinnerUnknown
		}
	}

	// The score write and the prediction rescoring commit or roll back
	// together: a visible finished match never carries stale points.
	if err := s.rescoreTx(ctx, match, input); err != nil {
		return nil, err
	}

	match, err = s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	s.afterScoreChange(ctx, match)
	return match, nil
}

func (s *matchService) rescoreTx(ctx context.Context, match *models.Match, input FinishMatchInput) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	var txErr error
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed", slog.Any("error", rbErr))
			}
		}
	}()

	txErr = s.matchRepo.UpdateScoreStatus(ctx, tx, match.ID, input.HomeScore, input.AwayScore, input.ShootoutWinner, models.MatchStatusFinished)
	if txErr != nil {
		return txErr
	}

	predictions, listErr := s.predictionRepo.ListByMatch(ctx, match.ID)
	if listErr != nil {
		txErr = listErr
		return txErr
	}

	finished := *match
	finished.HomeScore = &input.HomeScore
	finished.AwayScore = &input.AwayScore
	finished.Status = models.MatchStatusFinished

	for _, p := range predictions {
		points := engine.PredictionPoints(&finished, p)
		if points == p.Points {
			continue
		}
		if txErr = s.predictionRepo.UpdatePoints(ctx, tx, p.ID, points); txErr != nil {
			return txErr
		}
	}

	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("failed to commit score transaction for match %d: %w", match.ID, txErr)
	}

	s.logger.Info("match finished and rescored",
		slog.Int("match_id", match.ID),
		slog.Int("predictions", len(predictions)))
	return nil
}

// afterScoreChange invalidates cached rankings and dispatches the slow
// cascade. Runs only after the primary transaction committed.
func (s *matchService) afterScoreChange(ctx context.Context, match *models.Match) {
	leagueIDs, err := s.affectedLeagues(ctx, match.ID)
	if err != nil {
		s.logger.Error("failed to collect affected leagues", slog.Any("error", err))
	}
	if err := s.leaderboards.Invalidate(ctx, match.TournamentID, leagueIDs); err != nil {
		s.logger.Warn("leaderboard cache invalidation failed", slog.Any("error", err))
	}

	s.dispatcher.Publish(events.Event{
		Type:         events.EventMatchFinished,
		TournamentID: match.TournamentID,
		MatchID:      match.ID,
	})
	s.hub.BroadcastFact(live.Fact{
		Type:         live.FactMatchFinished,
		TournamentID: match.TournamentID,
		MatchID:      match.ID,
	})
}

func (s *matchService) affectedLeagues(ctx context.Context, matchID int) ([]int, error) {
	predictions, err := s.predictionRepo.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	leagueIDs := make([]int, 0)
	for _, p := range predictions {
		if p.LeagueID != nil && !seen[*p.LeagueID] {
			seen[*p.LeagueID] = true
			leagueIDs = append(leagueIDs, *p.LeagueID)
		}
	}
	return leagueIDs, nil
}

func (s *matchService) AdminUpdate(ctx context.Context, matchID int, input AdminMatchUpdateInput) (*models.Match, error) {
	if _, err := s.GetMatch(ctx, matchID); err != nil {
		return nil, err
	}
	if (input.HomeScore != nil && *input.HomeScore < 0) || (input.AwayScore != nil && *input.AwayScore < 0) {
		return nil, ErrInvalidScore
	}
	if input.NextSlot != nil && *input.NextSlot != models.SlotHome && *input.NextSlot != models.SlotAway {
		return nil, ErrValidationFailed
	}

	update := repositories.AdminMatchUpdate{
		HomeScore:       input.HomeScore,
		AwayScore:       input.AwayScore,
		ShootoutWinner:  input.ShootoutWinner,
		Status:          input.Status,
		Locked:          input.Locked,
		HomePlaceholder: input.HomePlaceholder,
		AwayPlaceholder: input.AwayPlaceholder,
		NextMatchID:     input.NextMatchID,
		NextSlot:        input.NextSlot,
	}
	if err := s.matchRepo.ApplyAdminUpdate(ctx, matchID, update); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	// A retroactive score correction on a finished match must flow through
	// the same pipeline as a fresh result.
	if match.Finished() && (input.HomeScore != nil || input.AwayScore != nil || input.Status != nil) {
		if _, err := s.FinishMatch(ctx, matchID, FinishMatchInput{
			HomeScore:      *match.HomeScore,
			AwayScore:      *match.AwayScore,
			ShootoutWinner: match.ShootoutWinner,
		}); err != nil && !errors.Is(err, ErrMatchLocked) {
			return nil, err
		}
	}
	return match, nil
}
