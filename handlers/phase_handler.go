package handlers

import (
	"net/http"

	"github.com/rafacaro85/polla-mundialista-core/services"
)

type PhaseHandler struct {
	phaseService services.PhaseService
}

func NewPhaseHandler(phaseService services.PhaseService) *PhaseHandler {
	return &PhaseHandler{phaseService: phaseService}
}

func (h *PhaseHandler) ListPhasesHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	statuses, err := h.phaseService.ListStatuses(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"phases": statuses}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PhaseHandler) GetPhaseHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	phase, err := getPhaseFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	info, err := h.phaseService.GetNextPhaseInfo(r.Context(), tournamentID, phase)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"phase": info}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PhaseHandler) UnlockPhaseHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	phase, err := getPhaseFromURL(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.phaseService.ForceUnlock(r.Context(), tournamentID, phase); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"unlocked": phase}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
