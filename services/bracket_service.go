package services

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/rafacaro85/polla-mundialista-core/cache"
	"github.com/rafacaro85/polla-mundialista-core/engine"
	"github.com/rafacaro85/polla-mundialista-core/models"
	"github.com/rafacaro85/polla-mundialista-core/repositories"
)

// bracketPageSize bounds how many brackets a crediting pass holds in memory.
const bracketPageSize = 200

type BracketService interface {
	GetBracket(ctx context.Context, userID, tournamentID int, leagueID *int) (*models.Bracket, error)
	// Submit stores the user's advancing-team picks, keyed by match id.
	// Picks on matches that already started are rejected.
	Submit(ctx context.Context, userID, tournamentID int, leagueID *int, picks map[int]string) (*models.Bracket, error)
	Clear(ctx context.Context, userID, tournamentID int, leagueID *int) error
	// CreditMatch awards phase points to every bracket that picked the
	// winner of the tie the match belongs to. Already-credited matches are
	// skipped, so redelivery of the same fact is harmless.
	CreditMatch(ctx context.Context, tournamentID, matchID int) error
	// Resync zeroes every bracket of the tournament and replays all
	// finished knockout matches in phase order. The recovery hatch for any
	// crediting drift.
	Resync(ctx context.Context, tournamentID int) error
}

type bracketService struct {
	bracketRepo  repositories.BracketRepository
	matchRepo    repositories.MatchRepository
	leagueRepo   repositories.LeagueRepository
	leaderboards *cache.LeaderboardCache
	logger       *slog.Logger
}

func NewBracketService(
	bracketRepo repositories.BracketRepository,
	matchRepo repositories.MatchRepository,
	leagueRepo repositories.LeagueRepository,
	leaderboards *cache.LeaderboardCache,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		bracketRepo:  bracketRepo,
		matchRepo:    matchRepo,
		leagueRepo:   leagueRepo,
		leaderboards: leaderboards,
		logger:       logger,
	}
}

func (s *bracketService) GetBracket(ctx context.Context, userID, tournamentID int, leagueID *int) (*models.Bracket, error) {
	b, err := s.bracketRepo.GetByUserScope(ctx, userID, tournamentID, leagueID)
	if err != nil {
		if errors.Is(err, repositories.ErrBracketNotFound) {
			return nil, ErrBracketNotFound
		}
		return nil, err
	}
	picks, err := b.ParsePicks()
	if err != nil {
		return nil, err
	}
	b.Picks = picks
	return b, nil
}

func (s *bracketService) Submit(ctx context.Context, userID, tournamentID int, leagueID *int, picks map[int]string) (*models.Bracket, error) {
	if len(picks) == 0 {
		return nil, ErrValidationFailed
	}
	if leagueID != nil {
		if err := s.checkMembership(ctx, userID, *leagueID); err != nil {
			return nil, err
		}
	}

	for matchID, team := range picks {
		if team == "" {
			return nil, ErrBracketPickInvalid
		}
		match, err := s.matchRepo.GetByID(ctx, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return nil, ErrBracketPickInvalid
			}
			return nil, err
		}
		if match.TournamentID != tournamentID || !match.Phase.IsKnockout() {
			return nil, ErrBracketPickInvalid
		}
		if match.Status != models.MatchStatusScheduled {
			return nil, ErrBracketPhaseClosed
		}
	}

	b := &models.Bracket{
		UserID:       userID,
		TournamentID: tournamentID,
		LeagueID:     leagueID,
		CreditedJSON: "{}",
	}
	if err := b.SetPicks(picks); err != nil {
		return nil, err
	}
	if err := s.bracketRepo.Upsert(ctx, nil, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *bracketService) Clear(ctx context.Context, userID, tournamentID int, leagueID *int) error {
	err := s.bracketRepo.Delete(ctx, userID, tournamentID, leagueID)
	if errors.Is(err, repositories.ErrBracketNotFound) {
		return ErrBracketNotFound
	}
	return err
}

func (s *bracketService) CreditMatch(ctx context.Context, tournamentID, matchID int) error {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return ErrMatchNotFound
		}
		return err
	}
	if !match.Phase.IsKnockout() || !match.Finished() {
		return nil
	}

	legs, err := s.tieLegs(ctx, match)
	if err != nil {
		return err
	}
	outcome := engine.ResolveTie(legs)
	if outcome.Pending {
		// Not decidable yet (missing leg, or a stalled aggregate the
		// operator still has to resolve). The resync path picks it up later.
		return nil
	}

	return s.creditTie(ctx, tournamentID, match.Phase, legs, outcome.Winner)
}

// creditTie walks every bracket of the tournament and credits the tie's
// decisive match to those that picked the winner under any of its legs.
func (s *bracketService) creditTie(ctx context.Context, tournamentID int, phase models.Phase, legs []*models.Match, winner string) error {
	value := engine.BracketPoints(phase)
	if value == 0 {
		return nil
	}
	decisiveID := decisiveLeg(legs).ID

	credited := 0
	leagueIDs := make(map[int]bool)
	afterID := 0
	for {
		page, err := s.bracketRepo.ListByTournament(ctx, tournamentID, afterID, bracketPageSize)
		if err != nil {
			return err
		}
		for _, b := range page {
			afterID = b.ID
			changed, err := s.creditBracket(ctx, b, legs, decisiveID, winner, value)
			if err != nil {
				return err
			}
			if changed {
				credited++
				if b.LeagueID != nil {
					leagueIDs[*b.LeagueID] = true
				}
			}
		}
		if len(page) < bracketPageSize {
			break
		}
	}

	if credited > 0 {
		ids := make([]int, 0, len(leagueIDs))
		for id := range leagueIDs {
			ids = append(ids, id)
		}
		if err := s.leaderboards.Invalidate(ctx, tournamentID, ids); err != nil {
			s.logger.Warn("leaderboard cache invalidation failed", slog.Any("error", err))
		}
		s.logger.Info("bracket points credited",
			slog.Int("tournament_id", tournamentID),
			slog.Int("match_id", decisiveID),
			slog.String("winner", winner),
			slog.Int("brackets", credited))
	}
	return nil
}

func (s *bracketService) creditBracket(ctx context.Context, b *models.Bracket, legs []*models.Match, decisiveID int, winner string, value int) (bool, error) {
	creditedSet, err := b.ParseCredited()
	if err != nil {
		return false, err
	}
	if creditedSet[decisiveID] {
		return false, nil
	}

	picks, err := b.ParsePicks()
	if err != nil {
		return false, err
	}
	pick, ok := "", false
	for _, leg := range legs {
		if p, found := picks[leg.ID]; found {
			pick, ok = p, true
			break
		}
	}
	if !ok || pick != winner {
		return false, nil
	}

	creditedSet[decisiveID] = true
	if err := b.SetCredited(creditedSet); err != nil {
		return false, err
	}
	if err := s.bracketRepo.UpdateScore(ctx, nil, b.ID, b.Points+value, b.CreditedJSON); err != nil {
		return false, err
	}
	return true, nil
}

func (s *bracketService) Resync(ctx context.Context, tournamentID int) error {
	if err := s.bracketRepo.ResetScores(ctx, nil, tournamentID); err != nil {
		return err
	}

	finished := models.MatchStatusFinished
	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID, repositories.MatchFilter{Status: &finished})
	if err != nil {
		return err
	}

	// One crediting pass per tie, replayed in tournament phase order.
	type tieKey struct {
		phase models.Phase
		pos   int
	}
	ties := make(map[tieKey][]*models.Match)
	for _, m := range matches {
		if !m.Phase.IsKnockout() {
			continue
		}
		pos := m.ID
		if m.BracketPos != nil {
			pos = *m.BracketPos
		}
		key := tieKey{phase: m.Phase, pos: pos}
		ties[key] = append(ties[key], m)
	}

	keys := make([]tieKey, 0, len(ties))
	for k := range ties {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].phase != keys[j].phase {
			return keys[i].phase.Index() < keys[j].phase.Index()
		}
		return keys[i].pos < keys[j].pos
	})

	for _, key := range keys {
		legs := ties[key]
		outcome := engine.ResolveTie(legs)
		if outcome.Pending {
			continue
		}
		if err := s.creditTie(ctx, tournamentID, key.phase, legs, outcome.Winner); err != nil {
			return err
		}
	}

	if err := s.leaderboards.Invalidate(ctx, tournamentID, nil); err != nil {
		s.logger.Warn("leaderboard cache invalidation failed", slog.Any("error", err))
	}
	s.logger.Info("bracket scores resynced", slog.Int("tournament_id", tournamentID))
	return nil
}

// tieLegs returns every leg sharing the match's bracket position, or just
// the match itself when it has none.
func (s *bracketService) tieLegs(ctx context.Context, match *models.Match) ([]*models.Match, error) {
	if match.BracketPos == nil {
		return []*models.Match{match}, nil
	}
	legs, err := s.matchRepo.ListByTournament(ctx, match.TournamentID, repositories.MatchFilter{
		Phase:      &match.Phase,
		BracketPos: match.BracketPos,
	})
	if err != nil {
		return nil, err
	}
	if len(legs) == 0 {
		return []*models.Match{match}, nil
	}
	return legs, nil
}

func decisiveLeg(legs []*models.Match) *models.Match {
	decisive := legs[0]
	for _, leg := range legs[1:] {
		if leg.Leg > decisive.Leg {
			decisive = leg
		}
	}
	return decisive
}

func (s *bracketService) checkMembership(ctx context.Context, userID, leagueID int) error {
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
