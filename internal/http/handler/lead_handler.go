package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vendaflow/lead-api/internal/domain"
	"github.com/vendaflow/lead-api/internal/repository"
	"github.com/vendaflow/lead-api/internal/service"
	"go.uber.org/zap"
)

type LeadHandler struct {
	leadService *service.LeadService
	logger      *zap.Logger
}

func NewLeadHandler(leadService *service.LeadService, logger *zap.Logger) *LeadHandler {
	return &LeadHandler{
		leadService: leadService,
		logger:      logger,
	}
}

// Ingest godoc
// @Summary Ingest a lead
// @Description Validate, persist and score a single lead, then fire the integration hooks. The response reports per-hook outcomes; a failed hook never rolls the lead back.
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body domain.CreateLeadRequest true "Lead data"
// @Success 201 {object} domain.IngestionResultDTO
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Email already registered"
// @Failure 500 {object} domain.APIError
// @Router /leads [post]
func (h *LeadHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	result, err := h.leadService.Ingest(r.Context(), &req)
	if err != nil {
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			respondFieldErrors(w, ve)
			return
		}
		if errors.Is(err, service.ErrDuplicateLead) {
			respondWithError(w, http.StatusConflict, "A lead with this email already exists")
			return
		}
		h.logger.Error("failed to ingest lead", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to create lead")
		return
	}

	w.Header().Set("Location", "/api/v1/leads/"+result.Lead.ID.String())
	respondJSON(w, http.StatusCreated, result)
}

// List godoc
// @Summary List leads
// @Description Get paginated list of leads with optional filters
// @Tags Leads
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param status query string false "Filter by status" Enums(new, contacted, qualified, converted, lost)
// @Param source query string false "Filter by source" Enums(website, social_media, email_campaign, referral, cold_call, event, import)
// @Param assignedTo query string false "Filter by assignee"
// @Param minScore query int false "Minimum score"
// @Param search query string false "Search by name, email or company"
// @Param sortBy query string false "Sort column" Enums(created_at, score, name)
// @Param sortDesc query bool false "Sort descending" default(true)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.LeadDTO}
// @Failure 500 {object} domain.APIError
// @Router /leads [get]
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	filters := parseLeadFilters(r)

	result, err := h.leadService.List(r.Context(), filters, page, pageSize)
	if err != nil {
		h.logger.Error("failed to list leads", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list leads")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetByID godoc
// @Summary Get lead by ID
// @Tags Leads
// @Produce json
// @Param id path string true "Lead ID" format(uuid)
// @Success 200 {object} domain.LeadDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Router /leads/{id} [get]
func (h *LeadHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid lead ID format")
		return
	}

	lead, err := h.leadService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Lead not found")
			return
		}
		h.logger.Error("failed to get lead", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to get lead")
		return
	}

	respondJSON(w, http.StatusOK, lead)
}

// Update godoc
// @Summary Update lead details
// @Description Update name, phone, company or tags. Status, score and assignment have dedicated endpoints.
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID" format(uuid)
// @Param request body domain.UpdateLeadRequest true "Lead data"
// @Success 200 {object} domain.LeadDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Router /leads/{id} [put]
func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid lead ID format")
		return
	}

	var req domain.UpdateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	lead, err := h.leadService.Update(r.Context(), id, &req)
	if err != nil {
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			respondFieldErrors(w, ve)
			return
		}
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Lead not found")
			return
		}
		h.logger.Error("failed to update lead", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to update lead")
		return
	}

	respondJSON(w, http.StatusOK, lead)
}

// Delete godoc
// @Summary Delete lead
// @Description Delete a lead and its adjustment log
// @Tags Leads
// @Param id path string true "Lead ID" format(uuid)
// @Success 204 "No Content"
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Router /leads/{id} [delete]
func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid lead ID format")
		return
	}

	if err := h.leadService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Lead not found")
			return
		}
		h.logger.Error("failed to delete lead", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to delete lead")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateStatus godoc
// @Summary Update lead status
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID" format(uuid)
// @Param request body domain.UpdateStatusRequest true "New status"
// @Success 200 {object} domain.LeadDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Router /leads/{id}/status [patch]
func (h *LeadHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid lead ID format")
		return
	}

	var req domain.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	lead, err := h.leadService.UpdateStatus(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Lead not found")
			return
		}
		if errors.Is(err, service.ErrInvalidInput) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to update lead status", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to update status")
		return
	}

	respondJSON(w, http.StatusOK, lead)
}

// AdjustScore godoc
// @Summary Adjust lead score
// @Description Append a manual adjustment to the lead's scoring log and recompute the total
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID" format(uuid)
// @Param request body domain.AdjustScoreRequest true "Adjustment"
// @Success 200 {object} domain.LeadDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Router /leads/{id}/score [patch]
func (h *LeadHandler) AdjustScore(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid lead ID format")
		return
	}

	var req domain.AdjustScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	lead, err := h.leadService.AdjustScore(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Lead not found")
			return
		}
		h.logger.Error("failed to adjust score", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to adjust score")
		return
	}

	respondJSON(w, http.StatusOK, lead)
}

// GetAdjustments godoc
// @Summary Get scoring history
// @Description Get the full append-only adjustment log of a lead, oldest first
// @Tags Leads
// @Produce json
// @Param id path string true "Lead ID" format(uuid)
// @Success 200 {array} domain.ScoreAdjustmentDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Router /leads/{id}/adjustments [get]
func (h *LeadHandler) GetAdjustments(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid lead ID format")
		return
	}

	adjustments, err := h.leadService.GetAdjustments(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Lead not found")
			return
		}
		h.logger.Error("failed to list adjustments", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list adjustments")
		return
	}

	respondJSON(w, http.StatusOK, adjustments)
}

// UpdateTags godoc
// @Summary Replace lead tags
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID" format(uuid)
// @Param request body domain.UpdateTagsRequest true "Tags"
// @Success 200 {object} domain.LeadDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Router /leads/{id}/tags [put]
func (h *LeadHandler) UpdateTags(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid lead ID format")
		return
	}

	var req domain.UpdateTagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	lead, err := h.leadService.UpdateTags(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Lead not found")
			return
		}
		h.logger.Error("failed to update tags", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to update tags")
		return
	}

	respondJSON(w, http.StatusOK, lead)
}

// Assign godoc
// @Summary Assign lead
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID" format(uuid)
// @Param request body domain.AssignRequest true "Assignee"
// @Success 200 {object} domain.LeadDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Router /leads/{id}/assign [patch]
func (h *LeadHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid lead ID format")
		return
	}

	var req domain.AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	lead, err := h.leadService.Assign(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Lead not found")
			return
		}
		h.logger.Error("failed to assign lead", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to assign lead")
		return
	}

	respondJSON(w, http.StatusOK, lead)
}

// BulkUpdateStatus godoc
// @Summary Bulk update status
// @Description Set the status on up to 500 leads at once
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body domain.BulkStatusRequest true "IDs and status"
// @Success 200 {object} map[string]int64
// @Failure 400 {object} domain.APIError
// @Router /leads/bulk/status [post]
func (h *LeadHandler) BulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.BulkStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	updated, err := h.leadService.BulkUpdateStatus(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to bulk update status", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to bulk update status")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

// BulkDelete godoc
// @Summary Bulk delete leads
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body domain.BulkDeleteRequest true "IDs"
// @Success 200 {object} map[string]int64
// @Failure 400 {object} domain.APIError
// @Router /leads/bulk/delete [post]
func (h *LeadHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req domain.BulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	deleted, err := h.leadService.BulkDelete(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to bulk delete leads", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to bulk delete leads")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// Metrics godoc
// @Summary Pipeline metrics
// @Description Aggregate counters: totals by status, conversion rate, average score
// @Tags Leads
// @Produce json
// @Success 200 {object} domain.LeadMetricsDTO
// @Failure 500 {object} domain.APIError
// @Router /leads/metrics [get]
func (h *LeadHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.leadService.Metrics(r.Context())
	if err != nil {
		h.logger.Error("failed to compute metrics", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to compute metrics")
		return
	}

	respondJSON(w, http.StatusOK, metrics)
}

// Analytics godoc
// @Summary Pipeline analytics
// @Description Per-source performance and score distribution histogram
// @Tags Leads
// @Produce json
// @Success 200 {object} domain.LeadAnalyticsDTO
// @Failure 500 {object} domain.APIError
// @Router /leads/analytics [get]
func (h *LeadHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.leadService.Analytics(r.Context())
	if err != nil {
		h.logger.Error("failed to compute analytics", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to compute analytics")
		return
	}

	respondJSON(w, http.StatusOK, analytics)
}

// Export godoc
// @Summary Export leads
// @Description Get all leads matching the filters, unpaginated
// @Tags Leads
// @Produce json
// @Param status query string false "Filter by status"
// @Param source query string false "Filter by source"
// @Param assignedTo query string false "Filter by assignee"
// @Param minScore query int false "Minimum score"
// @Param search query string false "Search by name, email or company"
// @Success 200 {array} domain.LeadDTO
// @Failure 500 {object} domain.APIError
// @Router /leads/export [get]
func (h *LeadHandler) Export(w http.ResponseWriter, r *http.Request) {
	leads, err := h.leadService.Export(r.Context(), parseLeadFilters(r))
	if err != nil {
		h.logger.Error("failed to export leads", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to export leads")
		return
	}

	respondJSON(w, http.StatusOK, leads)
}

func parsePagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 200 {
		pageSize = 200
	}
	return page, pageSize
}

func parseLeadFilters(r *http.Request) repository.LeadFilters {
	filters := repository.LeadFilters{
		Search:   r.URL.Query().Get("search"),
		SortBy:   r.URL.Query().Get("sortBy"),
		SortDesc: r.URL.Query().Get("sortDesc") != "false",
	}

	if status := r.URL.Query().Get("status"); status != "" {
		s := domain.LeadStatus(status)
		filters.Status = &s
	}
	if source := r.URL.Query().Get("source"); source != "" {
		src := domain.LeadSource(source)
		filters.Source = &src
	}
	if assignedTo := r.URL.Query().Get("assignedTo"); assignedTo != "" {
		filters.AssignedTo = &assignedTo
	}
	if minScore := r.URL.Query().Get("minScore"); minScore != "" {
		if n, err := strconv.Atoi(minScore); err == nil {
			filters.MinScore = &n
		}
	}

	return filters
}
