package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sportcomp/competition-system/middleware"
	"github.com/sportcomp/competition-system/models"
	"github.com/sportcomp/competition-system/services"
)

type ParticipationHandler struct {
	participationService *services.ParticipationService
}

func NewParticipationHandler(participationService *services.ParticipationService) *ParticipationHandler {
	return &ParticipationHandler{participationService: participationService}
}

// Register inscrit l'utilisateur courant à la compétition ciblée.
func (h *ParticipationHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	competitionID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || competitionID <= 0 {
		notFoundResponse(w, r)
		return
	}

	participation, err := h.participationService.Register(r.Context(), competitionID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"participation": participation}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Review approuve ou refuse une demande de participation.
func (h *ParticipationHandler) Review(w http.ResponseWriter, r *http.Request) {
	organizerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	participationID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || participationID <= 0 {
		notFoundResponse(w, r)
		return
	}

	var input struct {
		Status models.ParticipationStatus `json:"status"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	participation, err := h.participationService.Review(r.Context(), participationID, organizerID, input.Status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participation": participation}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListByCompetition liste les participations d'une compétition.
func (h *ParticipationHandler) ListByCompetition(w http.ResponseWriter, r *http.Request) {
	competitionID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || competitionID <= 0 {
		notFoundResponse(w, r)
		return
	}

	var statusFilter *models.ParticipationStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.ParticipationStatus(raw)
		statusFilter = &status
	}

	participations, err := h.participationService.ListByCompetition(r.Context(), competitionID, statusFilter)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participations": participations}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
