package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rafacaro85/polla-mundialista-core/cache"
	"github.com/rafacaro85/polla-mundialista-core/engine"
	"github.com/rafacaro85/polla-mundialista-core/models"
	"github.com/rafacaro85/polla-mundialista-core/repositories"
)

type StandingsService interface {
	GroupStandings(ctx context.Context, tournamentID int, groupTag string) ([]models.GroupStanding, error)
	AllGroupStandings(ctx context.Context, tournamentID int) (map[string][]models.GroupStanding, error)
	ThirdPlaceRanking(ctx context.Context, tournamentID int) ([]engine.ThirdPlaceRank, error)
	Leaderboard(ctx context.Context, tournamentID int, leagueID *int) ([]repositories.LeaderboardRow, error)
}

type standingsService struct {
	matchRepo      repositories.MatchRepository
	overrideRepo   repositories.StandingOverrideRepository
	predictionRepo repositories.PredictionRepository
	leagueRepo     repositories.LeagueRepository
	leaderboards   *cache.LeaderboardCache
}

func NewStandingsService(
	matchRepo repositories.MatchRepository,
	overrideRepo repositories.StandingOverrideRepository,
	predictionRepo repositories.PredictionRepository,
	leagueRepo repositories.LeagueRepository,
	leaderboards *cache.LeaderboardCache,
) StandingsService {
	return &standingsService{
		matchRepo:      matchRepo,
		overrideRepo:   overrideRepo,
		predictionRepo: predictionRepo,
		leagueRepo:     leagueRepo,
		leaderboards:   leaderboards,
	}
}

func (s *standingsService) GroupStandings(ctx context.Context, tournamentID int, groupTag string) ([]models.GroupStanding, error) {
	groupPhase := models.PhaseGroup
	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID, repositories.MatchFilter{
		Phase:    &groupPhase,
		GroupTag: &groupTag,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load group %s matches: %w", groupTag, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: group %s of tournament %d", ErrNotFound, groupTag, tournamentID)
	}

	overrides, err := s.overrideRepo.ListByGroup(ctx, tournamentID, groupTag)
	if err != nil {
		return nil, fmt.Errorf("failed to load standing overrides for group %s: %w", groupTag, err)
	}

	return engine.ComputeGroupStandings(matches, overrides), nil
}

// AllGroupStandings computes every group table, fetching groups in parallel.
func (s *standingsService) AllGroupStandings(ctx context.Context, tournamentID int) (map[string][]models.GroupStanding, error) {
	groupTags, err := s.groupTags(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	tables := make(map[string][]models.GroupStanding, len(groupTags))

	g, gCtx := errgroup.WithContext(ctx)
	for _, tag := range groupTags {
		tag := tag
		g.Go(func() error {
			table, err := s.GroupStandings(gCtx, tournamentID, tag)
			if err != nil {
				return err
			}
			mu.Lock()
			tables[tag] = table
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

func (s *standingsService) ThirdPlaceRanking(ctx context.Context, tournamentID int) ([]engine.ThirdPlaceRank, error) {
	tables, err := s.AllGroupStandings(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return engine.RankThirdPlaces(tables), nil
}

func (s *standingsService) Leaderboard(ctx context.Context, tournamentID int, leagueID *int) ([]repositories.LeaderboardRow, error) {
	if leagueID != nil {
		if _, err := s.leagueRepo.GetByID(ctx, *leagueID); err != nil {
			if errors.Is(err, repositories.ErrLeagueNotFound) {
				return nil, ErrLeagueNotFound
			}
			return nil, err
		}
	}

	if rows, ok := s.leaderboards.Get(ctx, tournamentID, leagueID); ok {
		return rows, nil
	}

	rows, err := s.predictionRepo.Leaderboard(ctx, tournamentID, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute leaderboard for tournament %d: %w", tournamentID, err)
	}

	// Cache failures only cost the next caller a recompute.
	_ = s.leaderboards.Set(ctx, tournamentID, leagueID, rows)
	return rows, nil
}

func (s *standingsService) groupTags(ctx context.Context, tournamentID int) ([]string, error) {
	groupPhase := models.PhaseGroup
	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID, repositories.MatchFilter{Phase: &groupPhase})
	if err != nil {
		return nil, fmt.Errorf("failed to load group matches for tournament %d: %w", tournamentID, err)
	}

	seen := make(map[string]bool)
	tags := make([]string, 0, 12)
	for _, m := range matches {
		if m.GroupTag == nil || seen[*m.GroupTag] {
			continue
		}
		seen[*m.GroupTag] = true
		tags = append(tags, *m.GroupTag)
	}
	sort.Strings(tags)
	return tags, nil
}
