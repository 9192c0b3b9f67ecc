package handlers

import (
	"net/http"

	"github.com/rafacaro85/polla-mundialista-core/middleware"
	"github.com/rafacaro85/polla-mundialista-core/models"
	"github.com/rafacaro85/polla-mundialista-core/services"
)

type PredictionHandler struct {
	predictionService services.PredictionService
}

func NewPredictionHandler(predictionService services.PredictionService) *PredictionHandler {
	return &PredictionHandler{predictionService: predictionService}
}

func (h *PredictionHandler) GetPredictionHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	leagueID, err := leagueScopeFromQuery(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	prediction, err := h.predictionService.GetPrediction(r.Context(), userID, matchID, leagueID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"prediction": prediction}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PredictionHandler) SubmitPredictionHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.SubmitPredictionInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.MatchID = matchID

	prediction, err := h.predictionService.Submit(r.Context(), userID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"prediction": prediction}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PredictionHandler) DeletePredictionHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	leagueID, err := leagueScopeFromQuery(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.predictionService.Delete(r.Context(), userID, matchID, leagueID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DisableJokerHandler materializes a league-scoped copy of the caller's
// jokered predictions with the joker turned off.
func (h *PredictionHandler) DisableJokerHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		TournamentID int    `json:"tournament_id"`
		Phase        string `json:"phase"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	err = h.predictionService.DisableJokerInLeague(r.Context(), userID, input.TournamentID, leagueID, models.Phase(input.Phase))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
