package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vendaflow/lead-api/internal/domain"
	"github.com/vendaflow/lead-api/internal/service"
	"go.uber.org/zap"
)

type ActivityHandler struct {
	activityService *service.ActivityService
	logger          *zap.Logger
}

func NewActivityHandler(activityService *service.ActivityService, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
		logger:          logger,
	}
}

// Record godoc
// @Summary Record an activity
// @Description Append a manual activity (call, email, meeting, note, task) to a lead
// @Tags Activities
// @Accept json
// @Produce json
// @Param id path string true "Lead ID" format(uuid)
// @Param request body domain.RecordActivityRequest true "Activity"
// @Success 201 {object} domain.ActivityDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Router /leads/{id}/activities [post]
func (h *ActivityHandler) Record(w http.ResponseWriter, r *http.Request) {
	leadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid lead ID format")
		return
	}

	var req domain.RecordActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	activity, err := h.activityService.Record(r.Context(), leadID, &req)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Lead not found")
			return
		}
		if errors.Is(err, service.ErrInvalidInput) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to record activity", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to record activity")
		return
	}

	respondJSON(w, http.StatusCreated, activity)
}

// ListByLead godoc
// @Summary List lead activities
// @Description Get a lead's activity log, newest first
// @Tags Activities
// @Produce json
// @Param id path string true "Lead ID" format(uuid)
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ActivityDTO}
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Router /leads/{id}/activities [get]
func (h *ActivityHandler) ListByLead(w http.ResponseWriter, r *http.Request) {
	leadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid lead ID format")
		return
	}

	page, pageSize := parsePagination(r)

	result, err := h.activityService.ListByLead(r.Context(), leadID, page, pageSize)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Lead not found")
			return
		}
		h.logger.Error("failed to list activities", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list activities")
		return
	}

	respondJSON(w, http.StatusOK, result)
}
