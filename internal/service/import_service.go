package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vendaflow/lead-api/internal/actor"
	"github.com/vendaflow/lead-api/internal/domain"
	"github.com/vendaflow/lead-api/internal/integration"
	"github.com/vendaflow/lead-api/internal/mapper"
	"github.com/vendaflow/lead-api/internal/repository"
	"github.com/vendaflow/lead-api/internal/storage"
	"github.com/vendaflow/lead-api/internal/validation"
	"go.uber.org/zap"
)

// MaxImportFileSize is the fixed ceiling for uploaded import files.
const MaxImportFileSize = 10 << 20 // 10 MB

// errorRateLimit aborts a run when strictly exceeded; exactly 50%
// invalid rows still proceeds.
const errorRateLimit = 0.5

// headerAliases maps normalized CSV header names onto canonical field
// keys. The product's import templates use Portuguese headers.
var headerAliases = map[string]string{
	"email":    "email",
	"name":     "name",
	"nome":     "name",
	"phone":    "phone",
	"telefone": "phone",
	"company":  "company",
	"empresa":  "company",
	"source":   "source",
	"fonte":    "source",
	"status":   "status",
}

var allowedContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"text/plain":               true,
	"application/vnd.ms-excel": true, // some browsers label .csv this way
	"application/octet-stream": true,
}

// FileUpload describes an incoming import file.
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Data        io.Reader
}

type ImportService struct {
	leadService *LeadService
	leadRepo    *repository.LeadRepository
	importRepo  *repository.ImportRepository
	normalizer  *validation.Normalizer
	dispatcher  integration.Dispatcher
	store       storage.Storage
	legacy      LegacySource
	logger      *zap.Logger
}

func NewImportService(
	leadService *LeadService,
	leadRepo *repository.LeadRepository,
	importRepo *repository.ImportRepository,
	dispatcher integration.Dispatcher,
	store storage.Storage,
	logger *zap.Logger,
) *ImportService {
	return &ImportService{
		leadService: leadService,
		leadRepo:    leadRepo,
		importRepo:  importRepo,
		normalizer:  validation.NewNormalizer(),
		dispatcher:  dispatcher,
		store:       store,
		logger:      logger,
	}
}

// parsedRow pairs a raw row with its index for error reporting.
type parsedRow struct {
	index int
	data  map[string]string
}

// Import runs the batch pipeline: file validation, parsing, row
// validation, error-rate gate, dedup, per-row ingestion, reporting.
// File-level and dataset-level failures return an error with no run
// persisted (except the error-rate abort, which persists an aborted
// run so the attempt is visible in the stats); otherwise the caller
// always receives a full report, even when some rows failed.
func (s *ImportService) Import(ctx context.Context, upload FileUpload) (*domain.ImportRunDTO, error) {
	startedAt := time.Now().UTC()
	act := actor.FromContextOrSystem(ctx)

	content, err := s.validateFile(upload)
	if err != nil {
		return nil, err
	}

	rows, warnings, err := parseCSV(content)
	if err != nil {
		return nil, err
	}

	storagePath := s.archive(ctx, upload.Filename, content)

	// mismatched-column rows were skipped at parse time and are not
	// part of the error-rate denominator
	run, err := s.runRowPipeline(ctx, act, upload.Filename, storagePath, rows, warnings, startedAt)
	if err != nil {
		return nil, err
	}

	dto := mapper.ToImportRunDTO(run)
	return &dto, nil
}

// validateFile enforces extension, content type and the size ceiling,
// then buffers the payload.
func (s *ImportService) validateFile(upload FileUpload) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	if ext != ".csv" && ext != ".txt" {
		return nil, fmt.Errorf("%w: unsupported extension %q, expected .csv", ErrFileRejected, ext)
	}

	if upload.ContentType != "" {
		base := strings.TrimSpace(strings.Split(upload.ContentType, ";")[0])
		if !allowedContentTypes[strings.ToLower(base)] {
			return nil, fmt.Errorf("%w: unsupported content type %q", ErrFileRejected, base)
		}
	}

	if upload.Size > MaxImportFileSize {
		return nil, fmt.Errorf("%w: file exceeds %d MB limit", ErrFileRejected, MaxImportFileSize>>20)
	}

	// the declared size is advisory; read one byte past the ceiling to
	// catch oversized streams
	content, err := io.ReadAll(io.LimitReader(upload.Data, MaxImportFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading upload: %v", ErrFileRejected, err)
	}
	if len(content) > MaxImportFileSize {
		return nil, fmt.Errorf("%w: file exceeds %d MB limit", ErrFileRejected, MaxImportFileSize>>20)
	}
	return content, nil
}

// parseCSV reads the header, maps aliases onto canonical keys and
// returns one map per data row. Rows whose column count does not match
// the header are skipped with a warning; they do not count toward the
// error-rate denominator.
func parseCSV(content []byte) ([]parsedRow, []string, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, ErrEmptyDataset
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: unreadable header: %v", ErrFileRejected, err)
	}

	keys := make([]string, len(header))
	for i, h := range header {
		normalized := strings.ToLower(strings.TrimSpace(h))
		if canonical, ok := headerAliases[normalized]; ok {
			keys[i] = canonical
		} else {
			keys[i] = normalized
		}
	}

	var rows []parsedRow
	var warnings []string
	rowIndex := 1 // 1-based, excluding the header

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("linha %d ignorada: %v", rowIndex, err))
			rowIndex++
			continue
		}

		if len(record) != len(keys) {
			warnings = append(warnings, fmt.Sprintf("linha %d ignorada: número de colunas não corresponde ao cabeçalho", rowIndex))
			rowIndex++
			continue
		}

		data := make(map[string]string, len(keys))
		for i, key := range keys {
			data[key] = strings.TrimSpace(record[i])
		}
		rows = append(rows, parsedRow{index: rowIndex, data: data})
		rowIndex++
	}

	if len(rows) == 0 {
		return nil, nil, ErrEmptyDataset
	}
	return rows, warnings, nil
}

// archive stores the raw upload; archival failure degrades to a log
// entry, it never blocks the import.
func (s *ImportService) archive(ctx context.Context, filename string, content []byte) string {
	if s.store == nil {
		return ""
	}
	path, _, err := s.store.Upload(ctx, filename, "text/csv", bytes.NewReader(content))
	if err != nil {
		s.logger.Error("failed to archive import file", zap.String("filename", filename), zap.Error(err))
		return ""
	}
	return path
}

func (s *ImportService) buildRun(
	act *actor.Actor,
	filename, storagePath string,
	status domain.ImportRunStatus,
	total int,
	leadIDs []string,
	rowErrors []domain.RowError,
	warnings []string,
	startedAt time.Time,
) *domain.ImportRun {
	return &domain.ImportRun{
		ActorID:     act.ID,
		ActorName:   act.Name,
		Filename:    filename,
		StoragePath: storagePath,
		Status:      status,
		TotalRows:   total,
		Imported:    len(leadIDs),
		Rejected:    len(rowErrors),
		RowErrors:   domain.RowErrorList(rowErrors),
		LeadIDs:     domain.StringList(leadIDs),
		Warnings:    domain.StringList(warnings),
		StartedAt:   startedAt,
		CompletedAt: time.Now().UTC(),
	}
}

// persistAndDispatch writes the finished run and fires the completion
// hooks. Dispatch failures are logged; the report is already durable.
func (s *ImportService) persistAndDispatch(ctx context.Context, run *domain.ImportRun) {
	if err := s.importRepo.CreateRun(ctx, run); err != nil {
		s.logger.Error("failed to persist import run", zap.String("filename", run.Filename), zap.Error(err))
		return
	}

	summary := integration.ImportSummary{
		RunID:     run.ID.String(),
		ActorID:   run.ActorID,
		Status:    string(run.Status),
		TotalRows: run.TotalRows,
		Imported:  run.Imported,
		Errors:    run.Rejected,
	}

	if err := s.dispatcher.NotifyImportCompletion(ctx, summary); err != nil {
		s.logger.Error("failed to dispatch import completion", zap.String("run_id", summary.RunID), zap.Error(err))
	}
	if err := s.dispatcher.UpdateImportStats(ctx, summary); err != nil {
		s.logger.Error("failed to dispatch import stats update", zap.String("run_id", summary.RunID), zap.Error(err))
	}
}

// dispatchImportedLead fires the per-lead hooks for one imported row
// and records the import activity tagged with the batch it came from.
// The raw row is preserved on the lead metadata for provenance.
func (s *ImportService) dispatchImportedLead(ctx context.Context, lead *domain.Lead, runID uuid.UUID) {
	ref := leadRef(lead)

	if err := s.dispatcher.AddToList(ctx, ref, integration.ListImported); err != nil {
		s.logger.Error("failed to dispatch list add", zap.String("lead_id", ref.ID), zap.Error(err))
	}
	if err := s.dispatcher.SyncToCRM(ctx, ref); err != nil {
		s.logger.Error("failed to dispatch CRM sync", zap.String("lead_id", ref.ID), zap.Error(err))
	}
	if err := s.dispatcher.TriggerAutomation(ctx, ref, integration.AutomationImport); err != nil {
		s.logger.Error("failed to dispatch import automation", zap.String("lead_id", ref.ID), zap.Error(err))
	}

	act := actor.FromContextOrSystem(ctx)
	activity := &domain.Activity{
		LeadID:      lead.ID,
		Type:        domain.ActivityTypeImported,
		Description: fmt.Sprintf("Lead imported with score %d", lead.Score),
		Metadata:    domain.JSONMap{"importRunId": runID.String()},
		ActorID:     act.ID,
		ActorName:   act.Name,
	}
	if err := s.leadService.activityRepo.Create(ctx, activity); err != nil {
		s.logger.Error("failed to record import activity", zap.String("lead_id", ref.ID), zap.Error(err))
	}
}

// GetRun returns a persisted import report
func (s *ImportService) GetRun(ctx context.Context, id string) (*domain.ImportRunDTO, error) {
	runID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid run id", ErrInvalidInput)
	}
	run, err := s.importRepo.GetRun(ctx, runID)
	if err != nil {
		return nil, ErrNotFound
	}
	dto := mapper.ToImportRunDTO(run)
	return &dto, nil
}

// ListRuns returns persisted import reports, optionally per actor
func (s *ImportService) ListRuns(ctx context.Context, actorID string, page, pageSize int) (*domain.PaginatedResponse, error) {
	runs, total, err := s.importRepo.ListRuns(ctx, actorID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list import runs: %w", err)
	}

	dtos := make([]domain.ImportRunDTO, 0, len(runs))
	for i := range runs {
		dtos = append(dtos, mapper.ToImportRunDTO(&runs[i]))
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &domain.PaginatedResponse{
		Data:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// GetStats returns the aggregate import counters for one actor
func (s *ImportService) GetStats(ctx context.Context, actorID string) (*domain.ImportStatsDTO, error) {
	stats, err := s.importRepo.GetStats(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get import stats: %w", err)
	}
	dto := mapper.ToImportStatsDTO(stats)
	return &dto, nil
}

// rowFailureMessage keeps repository internals out of user-facing
// reports.
func rowFailureMessage(err error) string {
	if errors.Is(err, ErrDuplicateLead) {
		return "Email já cadastrado"
	}
	return "Falha ao importar linha"
}
