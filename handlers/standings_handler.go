package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rafacaro85/polla-mundialista-core/services"
)

type StandingsHandler struct {
	standingsService services.StandingsService
}

func NewStandingsHandler(standingsService services.StandingsService) *StandingsHandler {
	return &StandingsHandler{standingsService: standingsService}
}

func (h *StandingsHandler) GroupStandingsHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	groupTag := chi.URLParam(r, "group")
	if groupTag == "" {
		badRequestResponse(w, r, errors.New("missing group URL parameter"))
		return
	}

	standings, err := h.standingsService.GroupStandings(r.Context(), tournamentID, groupTag)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *StandingsHandler) AllGroupStandingsHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tables, err := h.standingsService.AllGroupStandings(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"groups": tables}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *StandingsHandler) ThirdPlaceRankingHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ranking, err := h.standingsService.ThirdPlaceRanking(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"third_places": ranking}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *StandingsHandler) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	leagueID, err := leagueScopeFromQuery(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	board, err := h.standingsService.Leaderboard(r.Context(), tournamentID, leagueID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"leaderboard": board}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
