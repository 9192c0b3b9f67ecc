package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rafacaro85/polla-mundialista-core/events"
	"github.com/rafacaro85/polla-mundialista-core/live"
	"github.com/rafacaro85/polla-mundialista-core/models"
	"github.com/rafacaro85/polla-mundialista-core/repositories"
)

// NextPhaseInfo describes a phase together with its successor's gate state.
type NextPhaseInfo struct {
	Current *models.PhaseStatus `json:"current"`
	Next    *models.PhaseStatus `json:"next,omitempty"`
}

type PhaseService interface {
	GetStatus(ctx context.Context, tournamentID int, phase models.Phase) (*models.PhaseStatus, error)
	ListStatuses(ctx context.Context, tournamentID int) ([]*models.PhaseStatus, error)
	GetNextPhaseInfo(ctx context.Context, tournamentID int, phase models.Phase) (*NextPhaseInfo, error)
	// CheckAndAdvance marks the phase completed when all of its matches are
	// terminal and unlocks the successor. Safe to call repeatedly.
	CheckAndAdvance(ctx context.Context, tournamentID int, phase models.Phase) error
	// ForceUnlock is the administrative escape hatch. Unlocking an already
	// unlocked phase is an error, not a silent second success.
	ForceUnlock(ctx context.Context, tournamentID int, phase models.Phase) error
}

type phaseService struct {
	matchRepo  repositories.MatchRepository
	phaseRepo  repositories.PhaseStatusRepository
	dispatcher *events.Dispatcher
	hub        *live.Hub
	logger     *slog.Logger
}

func NewPhaseService(
	matchRepo repositories.MatchRepository,
	phaseRepo repositories.PhaseStatusRepository,
	dispatcher *events.Dispatcher,
	hub *live.Hub,
	logger *slog.Logger,
) PhaseService {
	return &phaseService{
		matchRepo:  matchRepo,
		phaseRepo:  phaseRepo,
		dispatcher: dispatcher,
		hub:        hub,
		logger:     logger,
	}
}

func (s *phaseService) GetStatus(ctx context.Context, tournamentID int, phase models.Phase) (*models.PhaseStatus, error) {
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
	return status, nil
}

func (s *phaseService) ListStatuses(ctx context.Context, tournamentID int) ([]*models.PhaseStatus, error) {
	statuses, err := s.phaseRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, fmt.Errorf("%w: tournament %d", ErrNotFound, tournamentID)
	}
	return statuses, nil
}

func (s *phaseService) GetNextPhaseInfo(ctx context.Context, tournamentID int, phase models.Phase) (*NextPhaseInfo, error) {
	current, err := s.GetStatus(ctx, tournamentID, phase)
	if err != nil {
		return nil, err
	}

	info := &NextPhaseInfo{Current: current}
	if next, ok := phase.Next(); ok {
		nextStatus, err := s.phaseRepo.Get(ctx, tournamentID, next)
		if err != nil && !errors.Is(err, repositories.ErrPhaseStatusNotFound) {
			return nil, err
		}
		info.Next = nextStatus
	}
	return info, nil
}

func (s *phaseService) CheckAndAdvance(ctx context.Context, tournamentID int, phase models.Phase) error {
	if !phase.Valid() {
		return ErrInvalidPhase
	}

	status, err := s.phaseRepo.Get(ctx, tournamentID, phase)
	if err != nil {
		if errors.Is(err, repositories.ErrPhaseStatusNotFound) {
			// Tournament formats without this phase (no round of 32, say)
			// have no gate to move.
			return nil
		}
		return fmt.Errorf("failed to load phase status %s: %w", phase, err)
	}

	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID, repositories.MatchFilter{Phase: &phase})
	if err != nil {
		return fmt.Errorf("failed to load %s matches: %w", phase, err)
	}
	if len(matches) == 0 && !status.Unlocked {
		// A seeded gate with no fixtures completes vacuously, but only once
		// its predecessor has passed the unlock on.
		return nil
	}

	for _, m := range matches {
		if m.Status != models.MatchStatusFinished {
			s.logger.Debug("phase not yet complete",
				slog.String("phase", string(phase)),
				slog.Int("pending_match_id", m.ID))
			return nil
		}
	}

	alreadyCompleted := status.Completed

	if err := s.phaseRepo.MarkCompleted(ctx, nil, tournamentID, phase); err != nil {
		return err
	}

	if !alreadyCompleted {
		s.logger.Info("phase completed",
			slog.Int("tournament_id", tournamentID),
			slog.String("phase", string(phase)))
		s.dispatcher.Publish(events.Event{
			Type:         events.EventPhaseCompleted,
			TournamentID: tournamentID,
			Phase:        phase,
		})
		s.hub.BroadcastFact(live.Fact{
			Type:         live.FactPhaseCompleted,
			TournamentID: tournamentID,
			Phase:        phase,
		})
	}

	// Unlock the next phase the format actually plays: walk past phases
	// without a status row so an omitted round cannot strand the gate.
	next := phase
	for {
		var ok bool
		next, ok = next.Next()
		if !ok {
			return nil
		}

		err = s.phaseRepo.Unlock(ctx, nil, tournamentID, next)
		switch {
		case err == nil:
			s.logger.Info("phase unlocked",
				slog.Int("tournament_id", tournamentID),
				slog.String("phase", string(next)))
			s.hub.BroadcastFact(live.Fact{
				Type:         live.FactPhaseUnlocked,
				TournamentID: tournamentID,
				Phase:        next,
			})
			// The unlocked phase may itself have no fixtures; let it
			// complete vacuously and pass the gate on.
			return s.CheckAndAdvance(ctx, tournamentID, next)
		case errors.Is(err, repositories.ErrPhaseAlreadyUnlocked):
			return nil
		case errors.Is(err, repositories.ErrPhaseStatusNotFound):
			continue
		default:
			return err
		}
	}
}

func (s *phaseService) ForceUnlock(ctx context.Context, tournamentID int, phase models.Phase) error {
	if !phase.Valid() {
		return ErrInvalidPhase
	}

	err := s.phaseRepo.Unlock(ctx, nil, tournamentID, phase)
	switch {
	case err == nil:
		s.logger.Info("phase force-unlocked",
			slog.Int("tournament_id", tournamentID),
			slog.String("phase", string(phase)))
		s.hub.BroadcastFact(live.Fact{
			Type:         live.FactPhaseUnlocked,
			TournamentID: tournamentID,
			Phase:        phase,
		})
		return nil
	case errors.Is(err, repositories.ErrPhaseAlreadyUnlocked):
		return ErrPhaseAlreadyUnlocked
	case errors.Is(err, repositories.ErrPhaseStatusNotFound):
		return ErrPhaseStatusNotFound
	default:
		return err
	}
}
