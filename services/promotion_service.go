package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/rafacaro85/polla-mundialista-core/engine"
	"github.com/rafacaro85/polla-mundialista-core/models"
	"github.com/rafacaro85/polla-mundialista-core/repositories"
)

// PromotionService moves real teams into the placeholder slots of later
// rounds as results arrive: group winners and runners-up, the best
// third-placed wildcards, knockout tie winners along the successor graph and
// semifinal losers into the third-place match. Every write is an idempotent
// single-slot update, so re-running any pass on unchanged input is a no-op.
type PromotionService interface {
	// HandleMatchFinished reacts to one finished match. Callers pass ids
	// only; state is re-read here so stale event payloads cannot mislead.
	HandleMatchFinished(ctx context.Context, tournamentID, matchID int) error
	// SweepAll re-runs promotion across every group and knockout tie of the
	// tournament. The admin recovery hatch after manual corrections.
	SweepAll(ctx context.Context, tournamentID int) error
	// ListPendingActions returns the open stalls awaiting an operator.
	ListPendingActions(ctx context.Context) ([]*models.PendingAction, error)
}

type promotionService struct {
	matchRepo    repositories.MatchRepository
	pendingRepo  repositories.PendingActionRepository
	standingsSvc StandingsService
	phaseSvc     PhaseService
	logger       *slog.Logger
}

func NewPromotionService(
	matchRepo repositories.MatchRepository,
	pendingRepo repositories.PendingActionRepository,
	standingsSvc StandingsService,
	phaseSvc PhaseService,
	logger *slog.Logger,
) PromotionService {
	return &promotionService{
		matchRepo:    matchRepo,
		pendingRepo:  pendingRepo,
		standingsSvc: standingsSvc,
		phaseSvc:     phaseSvc,
		logger:       logger,
	}
}

func (s *promotionService) HandleMatchFinished(ctx context.Context, tournamentID, matchID int) error {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return ErrMatchNotFound
		}
		return err
	}
	if match.TournamentID != tournamentID {
		return ErrValidationFailed
	}

	if match.Phase == models.PhaseGroup {
		if match.GroupTag != nil {
			if err := s.promoteGroup(ctx, tournamentID, *match.GroupTag); err != nil {
				return err
			}
		}
		if err := s.promoteThirdPlaces(ctx, tournamentID); err != nil {
			return err
		}
	} else {
		if err := s.advanceKnockout(ctx, match); err != nil {
			return err
		}
	}

	return s.phaseSvc.CheckAndAdvance(ctx, tournamentID, match.Phase)
}

// promoteGroup resolves the "1X"/"2X" placeholder slots of a completed
// group. An unfinished group only gets its stale slots cleared, so a score
// correction that reshuffles the table cannot leave a wrong team seeded.
func (s *promotionService) promoteGroup(ctx context.Context, tournamentID int, groupTag string) error {
	groupPhase := models.PhaseGroup
	groupMatches, err := s.matchRepo.ListByTournament(ctx, tournamentID, repositories.MatchFilter{
		Phase:    &groupPhase,
		GroupTag: &groupTag,
	})
	if err != nil {
		return err
	}
	if len(groupMatches) == 0 {
		return nil
	}

	standings, err := s.standingsSvc.GroupStandings(ctx, tournamentID, groupTag)
	if err != nil {
		return err
	}
	teamNames := make([]string, len(standings))
	crests := make(map[string]*string, len(standings))
	for i, entry := range standings {
		teamNames[i] = entry.Team
		crests[entry.Team] = entry.CrestURL
	}

	complete := true
	for _, m := range groupMatches {
		if !m.Finished() {
			complete = false
			break
		}
	}

	targets := map[string]models.GroupStanding{}
	if complete && len(standings) >= 2 {
		targets["1"+groupTag] = standings[0]
		targets["2"+groupTag] = standings[1]
	}

	knockouts, err := s.knockoutMatches(ctx, tournamentID)
	if err != nil {
		return err
	}

	for _, m := range knockouts {
		for _, slot := range []int{models.SlotHome, models.SlotAway} {
			code := m.SlotPlaceholder(slot)
			if code != "1"+groupTag && code != "2"+groupTag {
				continue
			}
			entry, resolved := targets[code]
			if !resolved {
				if err := s.matchRepo.ClearSlotIfTeamIn(ctx, nil, m.ID, slot, teamNames); err != nil {
					return err
				}
				continue
			}
			if err := s.matchRepo.UpdateSlotTeam(ctx, nil, m.ID, slot, entry.Team, entry.CrestURL); err != nil {
				return err
			}
			s.logger.Info("group slot resolved",
				slog.Int("match_id", m.ID),
				slog.String("placeholder", code),
				slog.String("team", entry.Team))
		}
	}
	return nil
}

// promoteThirdPlaces fills the "3RD-n" wildcard slots once every group of
// the tournament has finished. Before that, slots holding a team from the
// third-place pool are cleared when the pool re-ranks under them.
func (s *promotionService) promoteThirdPlaces(ctx context.Context, tournamentID int) error {
	groupPhase := models.PhaseGroup
	groupMatches, err := s.matchRepo.ListByTournament(ctx, tournamentID, repositories.MatchFilter{Phase: &groupPhase})
	if err != nil {
		return err
	}
	if len(groupMatches) == 0 {
		return nil
	}

	complete := true
	for _, m := range groupMatches {
		if !m.Finished() {
			complete = false
			break
		}
	}

	ranked, err := s.standingsSvc.ThirdPlaceRanking(ctx, tournamentID)
	if err != nil {
		return err
	}
	poolNames := make([]string, len(ranked))
	byCode := make(map[string]engine.ThirdPlaceRank, len(ranked))
	for i, entry := range ranked {
		poolNames[i] = entry.Team
		byCode[engine.WildcardPlaceholder(entry.PoolRank)] = entry
	}

	knockouts, err := s.knockoutMatches(ctx, tournamentID)
	if err != nil {
		return err
	}

	for _, m := range knockouts {
		for _, slot := range []int{models.SlotHome, models.SlotAway} {
			code := m.SlotPlaceholder(slot)
			entry, isWildcard := byCode[code]
			if !isWildcard {
				continue
			}
			if !complete {
				if err := s.matchRepo.ClearSlotIfTeamIn(ctx, nil, m.ID, slot, poolNames); err != nil {
					return err
				}
				continue
			}
			if err := s.matchRepo.UpdateSlotTeam(ctx, nil, m.ID, slot, entry.Team, entry.CrestURL); err != nil {
				return err
			}
			s.logger.Info("wildcard slot resolved",
				slog.Int("match_id", m.ID),
				slog.String("placeholder", code),
				slog.String("team", entry.Team))
		}
	}
	return nil
}

// advanceKnockout settles the tie the match belongs to and seeds the winner
// into its successor slot. A level aggregate with no recorded shootout
// winner raises a pending action instead of guessing.
func (s *promotionService) advanceKnockout(ctx context.Context, match *models.Match) error {
	legs, err := s.tieLegs(ctx, match)
	if err != nil {
		return err
	}

	pos := match.ID
	if match.BracketPos != nil {
		pos = *match.BracketPos
	}

	outcome := engine.ResolveTie(legs)
	if outcome.Pending {
		if allLegsTerminal(legs) {
			s.logger.Warn("knockout tie stalled",
				slog.Int("tournament_id", match.TournamentID),
				slog.Int("bracket_pos", pos),
				slog.String("reason", outcome.Reason))
			return s.pendingRepo.UpsertOpen(ctx, nil, match.TournamentID, pos, outcome.Reason)
		}
		return nil
	}

	if err := s.pendingRepo.ResolveOpen(ctx, nil, match.TournamentID, pos); err != nil {
		return err
	}

	decisive := decisiveLeg(legs)
	if decisive.NextMatchID != nil && decisive.NextSlot != nil {
		if err := s.matchRepo.UpdateSlotTeam(ctx, nil, *decisive.NextMatchID, *decisive.NextSlot, outcome.Winner, outcome.WinnerCrest); err != nil {
			return err
		}
		s.logger.Info("knockout winner advanced",
			slog.Int("from_match_id", decisive.ID),
			slog.Int("to_match_id", *decisive.NextMatchID),
			slog.String("team", outcome.Winner))
	}

	if match.Phase == models.PhaseSemi {
		if err := s.routeSemifinalLoser(ctx, match.TournamentID, pos, outcome); err != nil {
			return err
		}
	}
	return nil
}

// routeSemifinalLoser seeds the third-place match: the loser of the semi
// with the lower bracket position takes the home slot, the other the away.
func (s *promotionService) routeSemifinalLoser(ctx context.Context, tournamentID, semiPos int, outcome engine.TieOutcome) error {
	semiPhase := models.PhaseSemi
	semis, err := s.matchRepo.ListByTournament(ctx, tournamentID, repositories.MatchFilter{Phase: &semiPhase})
	if err != nil {
		return err
	}
	positions := make([]int, 0, 2)
	seen := make(map[int]bool)
	for _, m := range semis {
		p := m.ID
		if m.BracketPos != nil {
			p = *m.BracketPos
		}
		if !seen[p] {
			seen[p] = true
			positions = append(positions, p)
		}
	}
	sort.Ints(positions)

	slot := 0
	for i, p := range positions {
		if p == semiPos {
			switch i {
			case 0:
				slot = models.SlotHome
			case 1:
				slot = models.SlotAway
			}
		}
	}
	if slot == 0 {
		return fmt.Errorf("semifinal bracket position %d not found among %v", semiPos, positions)
	}

	thirdPhase := models.PhaseThirdPlace
	thirds, err := s.matchRepo.ListByTournament(ctx, tournamentID, repositories.MatchFilter{Phase: &thirdPhase})
	if err != nil {
		return err
	}
	if len(thirds) == 0 {
		return nil
	}

	if err := s.matchRepo.UpdateSlotTeam(ctx, nil, thirds[0].ID, slot, outcome.Loser, outcome.LoserCrest); err != nil {
		return err
	}
	s.logger.Info("semifinal loser routed to third-place match",
		slog.Int("match_id", thirds[0].ID),
		slog.Int("slot", slot),
		slog.String("team", outcome.Loser))
	return nil
}

func (s *promotionService) SweepAll(ctx context.Context, tournamentID int) error {
	tables, err := s.standingsSvc.AllGroupStandings(ctx, tournamentID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	tags := make([]string, 0, len(tables))
	for tag := range tables {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		if err := s.promoteGroup(ctx, tournamentID, tag); err != nil {
			return err
		}
	}
	if err := s.promoteThirdPlaces(ctx, tournamentID); err != nil {
		return err
	}

	knockouts, err := s.knockoutMatches(ctx, tournamentID)
	if err != nil {
		return err
	}
	// One advancement per tie, walked in phase order so winners cascade
	// through successive rounds within a single sweep.
	type tieKey struct {
		phase models.Phase
		pos   int
	}
	seen := make(map[tieKey]bool)
	sort.SliceStable(knockouts, func(i, j int) bool {
		return knockouts[i].Phase.Index() < knockouts[j].Phase.Index()
	})
	for _, m := range knockouts {
		pos := m.ID
		if m.BracketPos != nil {
			pos = *m.BracketPos
		}
		key := tieKey{phase: m.Phase, pos: pos}
		if seen[key] || !m.Finished() {
			continue
		}
		seen[key] = true
		if err := s.advanceKnockout(ctx, m); err != nil {
			return err
		}
	}

	for _, phase := range models.PhasesInOrder() {
		if err := s.phaseSvc.CheckAndAdvance(ctx, tournamentID, phase); err != nil {
			return err
		}
	}

	s.logger.Info("promotion sweep completed", slog.Int("tournament_id", tournamentID))
	return nil
}

func (s *promotionService) ListPendingActions(ctx context.Context) ([]*models.PendingAction, error) {
	return s.pendingRepo.ListOpen(ctx)
}

func (s *promotionService) knockoutMatches(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	all, err := s.matchRepo.ListByTournament(ctx, tournamentID, repositories.MatchFilter{})
	if err != nil {
		return nil, err
	}
	knockouts := make([]*models.Match, 0, len(all))
	for _, m := range all {
		if m.Phase.IsKnockout() {
			knockouts = append(knockouts, m)
		}
	}
	return knockouts, nil
}

func (s *promotionService) tieLegs(ctx context.Context, match *models.Match) ([]*models.Match, error) {
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

func allLegsTerminal(legs []*models.Match) bool {
	for _, leg := range legs {
		if !leg.Finished() || leg.HomeTeam == nil || leg.AwayTeam == nil {
			return false
		}
	}
	return true
}
