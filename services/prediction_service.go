package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rafacaro85/polla-mundialista-core/models"
	"github.com/rafacaro85/polla-mundialista-core/repositories"
)

// SubmitPredictionInput is a player's forecast for one match. LeagueID nil
// targets the global scope; set, it writes a league-scoped row that masks
// the global one inside that league.
type SubmitPredictionInput struct {
	MatchID   int  `json:"match_id"`
	LeagueID  *int `json:"league_id,omitempty"`
	HomeGoals int  `json:"home_goals"`
	AwayGoals int  `json:"away_goals"`
	Joker     bool `json:"joker"`
}

type PredictionService interface {
	GetPrediction(ctx context.Context, userID, matchID int, leagueID *int) (*models.Prediction, error)
	Submit(ctx context.Context, userID int, input SubmitPredictionInput) (*models.Prediction, error)
	Delete(ctx context.Context, userID, matchID int, leagueID *int) error
	// DisableJokerInLeague shadows the user's global jokered prediction with
	// a league-scoped copy whose joker flag is off. The global row is not
	// touched, so other leagues still see the doubled points.
	DisableJokerInLeague(ctx context.Context, userID, tournamentID, leagueID int, phase models.Phase) error
}

type predictionService struct {
	db             *sql.DB
	predictionRepo repositories.PredictionRepository
	matchRepo      repositories.MatchRepository
	leagueRepo     repositories.LeagueRepository
	logger         *slog.Logger
}

func NewPredictionService(
	db *sql.DB,
	predictionRepo repositories.PredictionRepository,
	matchRepo repositories.MatchRepository,
	leagueRepo repositories.LeagueRepository,
	logger *slog.Logger,
) PredictionService {
	return &predictionService{
		db:             db,
		predictionRepo: predictionRepo,
		matchRepo:      matchRepo,
		leagueRepo:     leagueRepo,
		logger:         logger,
	}
}

func (s *predictionService) GetPrediction(ctx context.Context, userID, matchID int, leagueID *int) (*models.Prediction, error) {
	p, err := s.predictionRepo.GetEffective(ctx, userID, matchID, leagueID)
	if err != nil {
		if errors.Is(err, repositories.ErrPredictionNotFound) {
			return nil, ErrPredictionNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *predictionService) Submit(ctx context.Context, userID int, input SubmitPredictionInput) (*models.Prediction, error) {
	if input.HomeGoals < 0 || input.AwayGoals < 0 {
		return nil, ErrInvalidScore
	}

	match, err := s.matchRepo.GetByID(ctx, input.MatchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	// The betting window closes at kickoff, hard.
	if !match.KickoffAt.After(time.Now()) || match.Status != models.MatchStatusScheduled {
		return nil, ErrMatchAlreadyStarted
	}
	if match.Locked {
		return nil, ErrMatchLocked
	}

	if input.LeagueID != nil {
		if err := s.checkMembership(ctx, userID, *input.LeagueID); err != nil {
			return nil, err
		}
	}

	prediction := &models.Prediction{
		UserID:    userID,
		MatchID:   input.MatchID,
		LeagueID:  input.LeagueID,
		HomeGoals: input.HomeGoals,
		AwayGoals: input.AwayGoals,
		Joker:     input.Joker,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
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

	if txErr = s.predictionRepo.Upsert(ctx, tx, prediction); txErr != nil {
		if errors.Is(txErr, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, txErr
	}

	// One joker per phase per scope: activating this one retires the rest.
	if input.Joker {
		if txErr = s.predictionRepo.DeactivateJokers(ctx, tx, userID, match.TournamentID, match.Phase, input.LeagueID, input.MatchID); txErr != nil {
			return nil, txErr
		}
		// In a league scope the user's global joker stays effective through
		// the scoped-row fallback. Mask it with joker-off shadows so the
		// league sees exactly one active joker.
		if input.LeagueID != nil {
			if txErr = s.shadowGlobalJokers(ctx, tx, userID, match.TournamentID, *input.LeagueID, match.Phase, input.MatchID); txErr != nil {
				return nil, txErr
			}
		}
	}

	if txErr = tx.Commit(); txErr != nil {
		return nil, fmt.Errorf("failed to commit prediction for match %d: %w", input.MatchID, txErr)
	}
	return prediction, nil
}

func (s *predictionService) Delete(ctx context.Context, userID, matchID int, leagueID *int) error {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return ErrMatchNotFound
		}
		return err
	}
	if !match.KickoffAt.After(time.Now()) || match.Status != models.MatchStatusScheduled {
		return ErrMatchAlreadyStarted
	}

	if err := s.predictionRepo.Delete(ctx, userID, matchID, leagueID); err != nil {
		if errors.Is(err, repositories.ErrPredictionNotFound) {
			return ErrPredictionNotFound
		}
		return err
	}
	return nil
}

func (s *predictionService) DisableJokerInLeague(ctx context.Context, userID, tournamentID, leagueID int, phase models.Phase) error {
	if !phase.Valid() {
		return ErrInvalidPhase
	}
	if err := s.checkMembership(ctx, userID, leagueID); err != nil {
		return err
	}

	jokered, err := s.predictionRepo.ListJokered(ctx, userID, tournamentID, phase)
	if err != nil {
		return err
	}
	if len(jokered) == 0 {
		return ErrPredictionNotFound
	}

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

	if txErr = s.shadowGlobalJokers(ctx, tx, userID, tournamentID, leagueID, phase, 0); txErr != nil {
		return txErr
	}

	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("failed to commit joker override: %w", txErr)
	}

	s.logger.Info("joker disabled in league",
		slog.Int("user_id", userID),
		slog.Int("league_id", leagueID),
		slog.String("phase", string(phase)))
	return nil
}

// shadowGlobalJokers writes league-scoped joker-off copies of the user's
// global jokered predictions for a phase. Matches that already carry a
// league-scoped row keep it untouched; the global row itself is never
// modified, so other scopes still see the joker.
func (s *predictionService) shadowGlobalJokers(ctx context.Context, exec repositories.SQLExecutor, userID, tournamentID, leagueID int, phase models.Phase, exceptMatchID int) error {
	jokered, err := s.predictionRepo.ListJokered(ctx, userID, tournamentID, phase)
	if err != nil {
		return err
	}

	for _, global := range jokered {
		if global.MatchID == exceptMatchID {
			continue
		}
		effective, err := s.predictionRepo.GetEffective(ctx, userID, global.MatchID, &leagueID)
		if err != nil && !errors.Is(err, repositories.ErrPredictionNotFound) {
			return err
		}
		if err == nil && effective.LeagueID != nil {
			// The league row already masks the global one for this match.
			continue
		}
		shadow := &models.Prediction{
			UserID:    userID,
			MatchID:   global.MatchID,
			LeagueID:  &leagueID,
			HomeGoals: global.HomeGoals,
			AwayGoals: global.AwayGoals,
			Joker:     false,
			Override:  true,
		}
		if err := s.predictionRepo.Upsert(ctx, exec, shadow); err != nil {
			return err
		}
	}
	return nil
}

func (s *predictionService) checkMembership(ctx context.Context, userID, leagueID int) error {
	if _, err := s.leagueRepo.GetByID(ctx, leagueID); err != nil {
		if errors.Is(err, repositories.ErrLeagueNotFound) {
			return ErrLeagueNotFound
		}
		return err
	}
	member, err := s.leagueRepo.GetMembership(ctx, leagueID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrForbiddenOperation
	}
	if member.Blocked {
		return ErrParticipantBlocked
	}
	return nil
}
