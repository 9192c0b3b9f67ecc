package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rafacaro85/polla-mundialista-core/handlers"
	"github.com/rafacaro85/polla-mundialista-core/middleware"
	"github.com/rafacaro85/polla-mundialista-core/models"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Standings   *handlers.StandingsHandler
	Phases      *handlers.PhaseHandler
	Matches     *handlers.MatchHandler
	Predictions *handlers.PredictionHandler
	Brackets    *handlers.BracketHandler
	Teams       *handlers.TeamHandler
	Admin       *handlers.AdminHandler
	WebSocket   *handlers.WebSocketHandler
}

func InitRoutes(h Handlers, jwtSecret string) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)
	adminOnly := middleware.Authorize(models.RoleAdmin)

	router.Route("/tournaments/{tournamentID}", func(r chi.Router) {
		// Public read surface.
		r.Get("/groups", h.Standings.AllGroupStandingsHandler)
		r.Get("/groups/{group}/standings", h.Standings.GroupStandingsHandler)
		r.Get("/third-places", h.Standings.ThirdPlaceRankingHandler)
		r.Get("/leaderboard", h.Standings.LeaderboardHandler)
		r.Get("/phases", h.Phases.ListPhasesHandler)
		r.Get("/phases/{phase}", h.Phases.GetPhaseHandler)
		r.Get("/teams", h.Teams.ListTeamsHandler)

		// Phase gate honors the caller's role when a token is present.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuthenticate(jwtSecret))
			r.Get("/phases/{phase}/matches", h.Matches.ListPhaseMatchesHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Get("/bracket", h.Brackets.GetBracketHandler)
			r.Put("/bracket", h.Brackets.SubmitBracketHandler)
			r.Delete("/bracket", h.Brackets.ClearBracketHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(adminOnly)

			r.Post("/phases/{phase}/unlock", h.Phases.UnlockPhaseHandler)
			r.Post("/brackets/resync", h.Brackets.ResyncBracketsHandler)
			r.Post("/promote", h.Admin.PromoteSweepHandler)
		})
	})

	router.Route("/matches/{matchID}", func(r chi.Router) {
		r.Get("/", h.Matches.GetMatchHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Get("/prediction", h.Predictions.GetPredictionHandler)
			r.Put("/prediction", h.Predictions.SubmitPredictionHandler)
			r.Delete("/prediction", h.Predictions.DeletePredictionHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(adminOnly)

			r.Post("/finish", h.Matches.FinishMatchHandler)
			r.Patch("/", h.Matches.PatchMatchHandler)
		})
	})

	router.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Post("/leagues/{leagueID}/joker/disable", h.Predictions.DisableJokerHandler)
	})

	router.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Use(adminOnly)

		r.Get("/admin/pending-actions", h.Admin.PendingActionsHandler)
		r.Post("/teams/{teamID}/crest", h.Teams.UploadCrestHandler)
	})

	router.Get("/ws/{tournamentID}", h.WebSocket.ServeWs)

	return router
}
