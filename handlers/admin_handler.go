package handlers

import (
	"net/http"

	"github.com/rafacaro85/polla-mundialista-core/services"
)

type AdminHandler struct {
	promotionService services.PromotionService
}

func NewAdminHandler(promotionService services.PromotionService) *AdminHandler {
	return &AdminHandler{promotionService: promotionService}
}

func (h *AdminHandler) PromoteSweepHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.promotionService.SweepAll(r.Context(), tournamentID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"swept": tournamentID}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) PendingActionsHandler(w http.ResponseWriter, r *http.Request) {
	actions, err := h.promotionService.ListPendingActions(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"pending_actions": actions}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
