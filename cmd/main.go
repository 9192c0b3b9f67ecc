package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/rafacaro85/polla-mundialista-core/cache"
	"github.com/rafacaro85/polla-mundialista-core/config"
	"github.com/rafacaro85/polla-mundialista-core/db"
	"github.com/rafacaro85/polla-mundialista-core/events"
	"github.com/rafacaro85/polla-mundialista-core/handlers"
	"github.com/rafacaro85/polla-mundialista-core/live"
	"github.com/rafacaro85/polla-mundialista-core/repositories"
	api "github.com/rafacaro85/polla-mundialista-core/routes"
	"github.com/rafacaro85/polla-mundialista-core/services"
	"github.com/rafacaro85/polla-mundialista-core/storage"
)

const (
	dispatcherQueueSize = 256
	dispatcherWorkers   = 4
	leaderboardTTL      = 5 * time.Minute
	shutdownTimeout     = 15 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("redis connection established")
	leaderboards := cache.NewLeaderboardCache(redisClient, leaderboardTTL)

	var uploader storage.FileUploader
	uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		logger.Warn("object storage not configured, crest uploads disabled", slog.Any("error", err))
		uploader = storage.NewDisabledUploader()
	}

	hub := live.NewHub(logger)
	go hub.Run()

	dispatcher := events.NewDispatcher(logger, dispatcherQueueSize)

	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	predictionRepo := repositories.NewPostgresPredictionRepository(dbConn)
	bracketRepo := repositories.NewPostgresBracketRepository(dbConn)
	phaseRepo := repositories.NewPostgresPhaseStatusRepository(dbConn)
	overrideRepo := repositories.NewPostgresStandingOverrideRepository(dbConn)
	pendingRepo := repositories.NewPostgresPendingActionRepository(dbConn)
	leagueRepo := repositories.NewPostgresLeagueRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)

	standingsService := services.NewStandingsService(matchRepo, overrideRepo, predictionRepo, leagueRepo, leaderboards)
	phaseService := services.NewPhaseService(matchRepo, phaseRepo, dispatcher, hub, logger)
	matchService := services.NewMatchService(dbConn, matchRepo, predictionRepo, phaseRepo, leaderboards, dispatcher, hub, logger)
	predictionService := services.NewPredictionService(dbConn, predictionRepo, matchRepo, leagueRepo, logger)
	bracketService := services.NewBracketService(bracketRepo, matchRepo, leagueRepo, leaderboards, logger)
	promotionService := services.NewPromotionService(matchRepo, pendingRepo, standingsService, phaseService, logger)
	teamService := services.NewTeamService(teamRepo, uploader, logger)

	// The finish-match cascade: promote first so successor slots are
	// resolved before brackets are credited against the settled tie.
	dispatcher.Subscribe(events.EventMatchFinished, func(ctx context.Context, e events.Event) error {
		return promotionService.HandleMatchFinished(ctx, e.TournamentID, e.MatchID)
	})
	dispatcher.Subscribe(events.EventMatchFinished, func(ctx context.Context, e events.Event) error {
		return bracketService.CreditMatch(ctx, e.TournamentID, e.MatchID)
	})
	go dispatcher.Run(ctx, dispatcherWorkers)

	router := api.InitRoutes(api.Handlers{
		Standings:   handlers.NewStandingsHandler(standingsService),
		Phases:      handlers.NewPhaseHandler(phaseService),
		Matches:     handlers.NewMatchHandler(matchService),
		Predictions: handlers.NewPredictionHandler(predictionService),
		Brackets:    handlers.NewBracketHandler(bracketService),
		Teams:       handlers.NewTeamHandler(teamService),
		Admin:       handlers.NewAdminHandler(promotionService),
		WebSocket:   handlers.NewWebSocketHandler(hub, logger),
	}, cfg.JWTSecretKey)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed, forcing close", slog.Any("error", err))
			_ = server.Close()
		}
	}

	logger.Info("server stopped")
}
