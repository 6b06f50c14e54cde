package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vendaflow/lead-api/internal/actor"
	"github.com/vendaflow/lead-api/internal/domain"
	"github.com/vendaflow/lead-api/internal/service"
	"go.uber.org/zap"
)

type ImportHandler struct {
	importService *service.ImportService
	logger        *zap.Logger
}

func NewImportHandler(importService *service.ImportService, logger *zap.Logger) *ImportHandler {
	return &ImportHandler{
		importService: importService,
		logger:        logger,
	}
}

// Upload godoc
// @Summary Import leads from CSV
// @Description Upload a CSV file (max 10 MB) and run the batch pipeline: validation, error-rate gate, dedup, per-row ingestion. The report lists every rejected row with its raw data.
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} domain.ImportRunDTO
// @Failure 400 {object} domain.APIError
// @Failure 413 {object} domain.APIError
// @Failure 422 {object} domain.APIError "Error rate above 50%, import aborted"
// @Router /imports [post]
func (h *ImportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// one byte past the ceiling plus multipart framing headroom
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxImportFileSize+(1<<20))

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "File exceeds the 10 MB limit")
			return
		}
		respondWithError(w, http.StatusBadRequest, "Missing form field 'file'")
		return
	}
	defer file.Close()

	report, err := h.importService.Import(r.Context(), service.FileUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        file,
	})
	if err != nil {
		h.respondImportError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// ImportFromDataSource godoc
// @Summary Import leads from the legacy CRM
// @Description Pull prospect rows from the legacy CRM database and run them through the same batch pipeline as a CSV import
// @Tags Imports
// @Accept json
// @Produce json
// @Param request body domain.ImportFromDataSourceRequest true "Pull options"
// @Success 200 {object} domain.ImportRunDTO
// @Failure 400 {object} domain.APIError
// @Failure 422 {object} domain.APIError "Error rate above 50%, import aborted"
// @Router /imports/datasource [post]
func (h *ImportHandler) ImportFromDataSource(w http.ResponseWriter, r *http.Request) {
	var req domain.ImportFromDataSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	report, err := h.importService.ImportFromDataSource(r.Context(), req.Limit)
	if err != nil {
		h.respondImportError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// GetRun godoc
// @Summary Get import report
// @Tags Imports
// @Produce json
// @Param id path string true "Import run ID" format(uuid)
// @Success 200 {object} domain.ImportRunDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Router /imports/{id} [get]
func (h *ImportHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	report, err := h.importService.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			respondWithError(w, http.StatusBadRequest, "Invalid run ID format")
			return
		}
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Import run not found")
			return
		}
		h.logger.Error("failed to get import run", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to get import run")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// ListRuns godoc
// @Summary List import reports
// @Tags Imports
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param actorId query string false "Filter by the actor who ran the import"
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ImportRunDTO}
// @Failure 500 {object} domain.APIError
// @Router /imports [get]
func (h *ImportHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	result, err := h.importService.ListRuns(r.Context(), r.URL.Query().Get("actorId"), page, pageSize)
	if err != nil {
		h.logger.Error("failed to list import runs", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list import runs")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetStats godoc
// @Summary Get import statistics
// @Description Aggregate import counters for one actor; defaults to the caller
// @Tags Imports
// @Produce json
// @Param actorId query string false "Actor ID, defaults to the caller"
// @Success 200 {object} domain.ImportStatsDTO
// @Failure 500 {object} domain.APIError
// @Router /imports/stats [get]
func (h *ImportHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	actorID := r.URL.Query().Get("actorId")
	if actorID == "" {
		actorID = actor.FromContextOrSystem(r.Context()).ID
	}

	stats, err := h.importService.GetStats(r.Context(), actorID)
	if err != nil {
		h.logger.Error("failed to get import stats", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to get import stats")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// respondImportError maps batch pipeline failures onto HTTP statuses.
// The error-rate abort is a 422: the file was readable, the dataset was
// not acceptable.
func (h *ImportHandler) respondImportError(w http.ResponseWriter, err error) {
	var rateErr *service.ErrorRateError
	switch {
	case errors.As(err, &rateErr):
		respondJSON(w, http.StatusUnprocessableEntity, domain.APIError{
			Type:   domain.ErrorTypeValidation,
			Title:  "Import Aborted",
			Status: http.StatusUnprocessableEntity,
			Detail: rateErr.Error(),
		})
	case errors.Is(err, service.ErrFileRejected):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrEmptyDataset):
		respondWithError(w, http.StatusBadRequest, "File contains no data rows")
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("import failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Import failed")
	}
}
