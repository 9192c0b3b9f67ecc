package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafacaro85/polla-mundialista-core/cache"
	"github.com/rafacaro85/polla-mundialista-core/events"
	"github.com/rafacaro85/polla-mundialista-core/live"
	"github.com/rafacaro85/polla-mundialista-core/models"
	"github.com/rafacaro85/polla-mundialista-core/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDispatcher() *events.Dispatcher {
	return events.NewDispatcher(testLogger(), 64)
}

func testHub() *live.Hub {
	return live.NewHub(testLogger())
}

// testLeaderboardCache points at a closed port, so every cache call degrades
// to a miss or a logged error without a Redis server.
func testLeaderboardCache() *cache.LeaderboardCache {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 10 * time.Millisecond})
	return cache.NewLeaderboardCache(client, time.Minute)
}

func intPtr(v int) *int { return &v }

// fakeMatchRepo is an in-memory MatchRepository.
type fakeMatchRepo struct {
	mu      sync.Mutex
	matches map[int]*models.Match
}

func newFakeMatchRepo(matches ...*models.Match) *fakeMatchRepo {
	r := &fakeMatchRepo{matches: make(map[int]*models.Match)}
	for _, m := range matches {
		copied := *m
		r.matches[m.ID] = &copied
	}
	return r
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *fakeMatchRepo) ListByTournament(ctx context.Context, tournamentID int, filter repositories.MatchFilter) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Match, 0)
	for _, m := range r.matches {
		if m.TournamentID != tournamentID {
			continue
		}
		if filter.Phase != nil && m.Phase != *filter.Phase {
			continue
		}
		if filter.GroupTag != nil && (m.GroupTag == nil || *m.GroupTag != *filter.GroupTag) {
			continue
		}
		if filter.Status != nil && m.Status != *filter.Status {
			continue
		}
		if filter.BracketPos != nil && (m.BracketPos == nil || *m.BracketPos != *filter.BracketPos) {
			continue
		}
		copied := *m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeMatchRepo) UpdateScoreStatus(ctx context.Context, exec repositories.SQLExecutor, id int, homeScore, awayScore int, shootoutWinner *string, status models.MatchStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.HomeScore = &homeScore
	m.AwayScore = &awayScore
	m.ShootoutWinner = shootoutWinner
	m.Status = status
	return nil
}

func (r *fakeMatchRepo) UpdateSlotTeam(ctx context.Context, exec repositories.SQLExecutor, id, slot int, team string, crestURL *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if slot == models.SlotHome {
		m.HomeTeam = &team
		m.HomeCrestURL = crestURL
	} else {
		m.AwayTeam = &team
		m.AwayCrestURL = crestURL
	}
	return nil
}

func (r *fakeMatchRepo) ClearSlotIfTeamIn(ctx context.Context, exec repositories.SQLExecutor, id, slot int, teams []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	current := m.SlotTeam(slot)
	if current == nil {
		return nil
	}
	for _, team := range teams {
		if team == *current {
			if slot == models.SlotHome {
				m.HomeTeam = nil
				m.HomeCrestURL = nil
			} else {
				m.AwayTeam = nil
				m.AwayCrestURL = nil
			}
			return nil
		}
	}
	return nil
}

func (r *fakeMatchRepo) ApplyAdminUpdate(ctx context.Context, id int, update repositories.AdminMatchUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if update.HomeScore != nil {
		m.HomeScore = update.HomeScore
	}
	if update.AwayScore != nil {
		m.AwayScore = update.AwayScore
	}
	if update.ShootoutWinner != nil {
		m.ShootoutWinner = update.ShootoutWinner
	}
	if update.Status != nil {
		m.Status = *update.Status
	}
	if update.Locked != nil {
		m.Locked = *update.Locked
	}
	if update.HomePlaceholder != nil {
		m.HomePlaceholder = *update.HomePlaceholder
	}
	if update.AwayPlaceholder != nil {
		m.AwayPlaceholder = *update.AwayPlaceholder
	}
	if update.NextMatchID != nil {
		m.NextMatchID = update.NextMatchID
	}
	if update.NextSlot != nil {
		m.NextSlot = update.NextSlot
	}
	return nil
}

// fakePhaseRepo is an in-memory PhaseStatusRepository.
type fakePhaseRepo struct {
	mu       sync.Mutex
	statuses map[string]*models.PhaseStatus
}

func phaseKey(tournamentID int, phase models.Phase) string {
	return fmt.Sprintf("%d/%s", tournamentID, phase)
}

func newFakePhaseRepo(statuses ...*models.PhaseStatus) *fakePhaseRepo {
	r := &fakePhaseRepo{statuses: make(map[string]*models.PhaseStatus)}
	for _, ps := range statuses {
		copied := *ps
		r.statuses[phaseKey(ps.TournamentID, ps.Phase)] = &copied
	}
	return r
}

func (r *fakePhaseRepo) Get(ctx context.Context, tournamentID int, phase models.Phase) (*models.PhaseStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps, ok := r.statuses[phaseKey(tournamentID, phase)]
	if !ok {
		return nil, repositories.ErrPhaseStatusNotFound
	}
	copied := *ps
	return &copied, nil
}

func (r *fakePhaseRepo) ListByTournament(ctx context.Context, tournamentID int) ([]*models.PhaseStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.PhaseStatus, 0)
	for _, phase := range models.PhasesInOrder() {
		if ps, ok := r.statuses[phaseKey(tournamentID, phase)]; ok {
			copied := *ps
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakePhaseRepo) MarkCompleted(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, phase models.Phase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ps, ok := r.statuses[phaseKey(tournamentID, phase)]; ok {
		ps.Completed = true
	}
	return nil
}

func (r *fakePhaseRepo) Unlock(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, phase models.Phase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps, ok := r.statuses[phaseKey(tournamentID, phase)]
	if !ok {
		return repositories.ErrPhaseStatusNotFound
	}
	if ps.Unlocked {
		return repositories.ErrPhaseAlreadyUnlocked
	}
	now := time.Now()
	ps.Unlocked = true
	ps.UnlockedAt = &now
	return nil
}

// fakePendingRepo is an in-memory PendingActionRepository.
type fakePendingRepo struct {
	mu     sync.Mutex
	nextID int
	open   map[string]*models.PendingAction
}

func newFakePendingRepo() *fakePendingRepo {
	return &fakePendingRepo{open: make(map[string]*models.PendingAction)}
}

func pendingKey(tournamentID, bracketPos int) string {
	return fmt.Sprintf("%d/%d", tournamentID, bracketPos)
}

func (r *fakePendingRepo) UpsertOpen(ctx context.Context, exec repositories.SQLExecutor, tournamentID, bracketPos int, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pendingKey(tournamentID, bracketPos)
	if existing, ok := r.open[key]; ok {
		existing.Reason = reason
		return nil
	}
	r.nextID++
	r.open[key] = &models.PendingAction{
		ID:           r.nextID,
		TournamentID: tournamentID,
		BracketPos:   bracketPos,
		Reason:       reason,
		CreatedAt:    time.Now(),
	}
	return nil
}

func (r *fakePendingRepo) ResolveOpen(ctx context.Context, exec repositories.SQLExecutor, tournamentID, bracketPos int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.open, pendingKey(tournamentID, bracketPos))
	return nil
}

func (r *fakePendingRepo) ListOpen(ctx context.Context) ([]*models.PendingAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.PendingAction, 0, len(r.open))
	for _, a := range r.open {
		copied := *a
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeBracketRepo is an in-memory BracketRepository.
type fakeBracketRepo struct {
	mu       sync.Mutex
	nextID   int
	brackets map[int]*models.Bracket
}

func newFakeBracketRepo() *fakeBracketRepo {
	return &fakeBracketRepo{brackets: make(map[int]*models.Bracket)}
}

func (r *fakeBracketRepo) GetByUserScope(ctx context.Context, userID, tournamentID int, leagueID *int) (*models.Bracket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.brackets {
		if b.UserID == userID && b.TournamentID == tournamentID && sameScope(b.LeagueID, leagueID) {
			copied := *b
			return &copied, nil
		}
	}
	return nil, repositories.ErrBracketNotFound
}

func (r *fakeBracketRepo) ListByTournament(ctx context.Context, tournamentID, afterID, limit int) ([]*models.Bracket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Bracket, 0)
	for _, b := range r.brackets {
		if b.TournamentID == tournamentID && b.ID > afterID {
			copied := *b
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeBracketRepo) Upsert(ctx context.Context, exec repositories.SQLExecutor, b *models.Bracket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.brackets {
		if existing.UserID == b.UserID && existing.TournamentID == b.TournamentID && sameScope(existing.LeagueID, b.LeagueID) {
			existing.PicksJSON = b.PicksJSON
			existing.UpdatedAt = time.Now()
			b.ID = existing.ID
			b.CreditedJSON = existing.CreditedJSON
			b.Points = existing.Points
			return nil
		}
	}
	r.nextID++
	b.ID = r.nextID
	b.UpdatedAt = time.Now()
	copied := *b
	r.brackets[b.ID] = &copied
	return nil
}

func (r *fakeBracketRepo) Delete(ctx context.Context, userID, tournamentID int, leagueID *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, b := range r.brackets {
		if b.UserID == userID && b.TournamentID == tournamentID && sameScope(b.LeagueID, leagueID) {
			delete(r.brackets, id)
			return nil
		}
	}
	return repositories.ErrBracketNotFound
}

func (r *fakeBracketRepo) UpdateScore(ctx context.Context, exec repositories.SQLExecutor, id, points int, creditedJSON string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.brackets[id]
	if !ok {
		return repositories.ErrBracketNotFound
	}
	b.Points = points
	b.CreditedJSON = creditedJSON
	return nil
}

func (r *fakeBracketRepo) ResetScores(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.brackets {
		if b.TournamentID == tournamentID {
			b.Points = 0
			b.CreditedJSON = "{}"
		}
	}
	return nil
}

func sameScope(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// fakePredictionRepo is an in-memory PredictionRepository covering what the
// service tests exercise.
type fakePredictionRepo struct {
	mu          sync.Mutex
	nextID      int
	predictions map[int]*models.Prediction
}

func newFakePredictionRepo() *fakePredictionRepo {
	return &fakePredictionRepo{predictions: make(map[int]*models.Prediction)}
}

func (r *fakePredictionRepo) GetEffective(ctx context.Context, userID, matchID int, leagueID *int) (*models.Prediction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var global *models.Prediction
	for _, p := range r.predictions {
		if p.UserID != userID || p.MatchID != matchID {
			continue
		}
		if leagueID != nil && sameScope(p.LeagueID, leagueID) {
			copied := *p
			return &copied, nil
		}
		if p.LeagueID == nil {
			global = p
		}
	}
	if global != nil {
		copied := *global
		return &copied, nil
	}
	return nil, repositories.ErrPredictionNotFound
}

func (r *fakePredictionRepo) ListByMatch(ctx context.Context, matchID int) ([]*models.Prediction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Prediction, 0)
	for _, p := range r.predictions {
		if p.MatchID == matchID {
			copied := *p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakePredictionRepo) Upsert(ctx context.Context, exec repositories.SQLExecutor, p *models.Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.predictions {
		if existing.UserID == p.UserID && existing.MatchID == p.MatchID && sameScope(existing.LeagueID, p.LeagueID) {
			existing.HomeGoals = p.HomeGoals
			existing.AwayGoals = p.AwayGoals
			existing.Joker = p.Joker
			existing.Override = p.Override
			existing.UpdatedAt = time.Now()
			p.ID = existing.ID
			p.Points = existing.Points
			return nil
		}
	}
	r.nextID++
	p.ID = r.nextID
	p.UpdatedAt = time.Now()
	copied := *p
	r.predictions[p.ID] = &copied
	return nil
}

func (r *fakePredictionRepo) Delete(ctx context.Context, userID, matchID int, leagueID *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.predictions {
		if p.UserID == userID && p.MatchID == matchID && sameScope(p.LeagueID, leagueID) {
			delete(r.predictions, id)
			return nil
		}
	}
	return repositories.ErrPredictionNotFound
}

func (r *fakePredictionRepo) UpdatePoints(ctx context.Context, exec repositories.SQLExecutor, id, points int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.predictions[id]
	if !ok {
		return repositories.ErrPredictionNotFound
	}
	p.Points = points
	return nil
}

func (r *fakePredictionRepo) DeactivateJokers(ctx context.Context, exec repositories.SQLExecutor, userID, tournamentID int, phase models.Phase, leagueID *int, exceptMatchID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.predictions {
		if p.UserID == userID && p.MatchID != exceptMatchID && sameScope(p.LeagueID, leagueID) {
			p.Joker = false
		}
	}
	return nil
}

func (r *fakePredictionRepo) ListJokered(ctx context.Context, userID, tournamentID int, phase models.Phase) ([]*models.Prediction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Prediction, 0)
	for _, p := range r.predictions {
		if p.UserID == userID && p.LeagueID == nil && p.Joker {
			copied := *p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakePredictionRepo) Leaderboard(ctx context.Context, tournamentID int, leagueID *int) ([]repositories.LeaderboardRow, error) {
	return []repositories.LeaderboardRow{}, nil
}

// fakeOverrideRepo is an in-memory StandingOverrideRepository.
type fakeOverrideRepo struct {
	overrides []models.GroupStandingOverride
}

func (r *fakeOverrideRepo) ListByGroup(ctx context.Context, tournamentID int, groupTag string) ([]models.GroupStandingOverride, error) {
	out := make([]models.GroupStandingOverride, 0)
	for _, o := range r.overrides {
		if o.TournamentID == tournamentID && o.GroupTag == groupTag {
			out = append(out, o)
		}
	}
	return out, nil
}

// fakeLeagueRepo is an in-memory LeagueRepository.
type fakeLeagueRepo struct {
	leagues map[int]*models.League
	members map[string]*models.LeagueMember
}

func newFakeLeagueRepo() *fakeLeagueRepo {
	return &fakeLeagueRepo{
		leagues: make(map[int]*models.League),
		members: make(map[string]*models.LeagueMember),
	}
}

func (r *fakeLeagueRepo) addLeague(id int) {
	r.leagues[id] = &models.League{ID: id, TournamentID: 1}
}

func (r *fakeLeagueRepo) addMember(leagueID, userID int, blocked bool) {
	r.members[fmt.Sprintf("%d/%d", leagueID, userID)] = &models.LeagueMember{
		LeagueID: leagueID,
		UserID:   userID,
		Blocked:  blocked,
	}
}

func (r *fakeLeagueRepo) GetByID(ctx context.Context, id int) (*models.League, error) {
	l, ok := r.leagues[id]
	if !ok {
		return nil, repositories.ErrLeagueNotFound
	}
	return l, nil
}

func (r *fakeLeagueRepo) GetMembership(ctx context.Context, leagueID, userID int) (*models.LeagueMember, error) {
	return r.members[fmt.Sprintf("%d/%d", leagueID, userID)], nil
}
