package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rafacaro85/polla-mundialista-core/models"
	"github.com/rafacaro85/polla-mundialista-core/repositories"
	"github.com/rafacaro85/polla-mundialista-core/storage"
)

var allowedCrestTypes = map[string]string{
	"image/png":     "png",
	"image/jpeg":    "jpg",
	"image/svg+xml": "svg",
	"image/webp":    "webp",
}

type TeamService interface {
	GetTeam(ctx context.Context, id int) (*models.Team, error)
	ListTeams(ctx context.Context, tournamentID int) ([]*models.Team, error)
	// UploadCrest stores the crest image in object storage and records its
	// key on the team. The previous crest object is removed best-effort.
	UploadCrest(ctx context.Context, teamID int, contentType string, reader io.Reader) (*models.Team, error)
}

type teamService struct {
	teamRepo repositories.TeamRepository
	uploader storage.FileUploader
	logger   *slog.Logger
}

func NewTeamService(teamRepo repositories.TeamRepository, uploader storage.FileUploader, logger *slog.Logger) TeamService {
	return &teamService{teamRepo: teamRepo, uploader: uploader, logger: logger}
}

func (s *teamService) GetTeam(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	s.resolveCrestURL(team)
	return team, nil
}

func (s *teamService) ListTeams(ctx context.Context, tournamentID int) ([]*models.Team, error) {
	teams, err := s.teamRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	for _, team := range teams {
		s.resolveCrestURL(team)
	}
	return teams, nil
}

func (s *teamService) UploadCrest(ctx context.Context, teamID int, contentType string, reader io.Reader) (*models.Team, error) {
	ext, ok := allowedCrestTypes[strings.ToLower(contentType)]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported crest content type %q", ErrValidationFailed, contentType)
	}

	team, err := s.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	previousKey := team.CrestKey

	key := fmt.Sprintf("crests/%d/team-%d.%s", team.TournamentID, team.ID, ext)
	result, err := s.uploader.Upload(ctx, key, contentType, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to upload crest for team %d: %w", teamID, err)
	}

	if err := s.teamRepo.UpdateCrestKey(ctx, teamID, &result.Key); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}

	if previousKey != nil && *previousKey != result.Key {
		if delErr := s.uploader.Delete(ctx, *previousKey); delErr != nil {
			s.logger.Warn("failed to delete previous crest object",
				slog.String("key", *previousKey),
				slog.Any("error", delErr))
		}
	}

	team.CrestKey = &result.Key
	s.resolveCrestURL(team)
	s.logger.Info("team crest updated",
		slog.Int("team_id", teamID),
		slog.String("key", result.Key))
	return team, nil
}

func (s *teamService) resolveCrestURL(team *models.Team) {
	if team.CrestKey == nil || *team.CrestKey == "" {
		return
	}
	url := s.uploader.GetPublicURL(*team.CrestKey)
	team.CrestURL = &url
}
