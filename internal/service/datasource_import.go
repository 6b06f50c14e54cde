package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/vendaflow/lead-api/internal/actor"
	"github.com/vendaflow/lead-api/internal/datasource"
	"github.com/vendaflow/lead-api/internal/domain"
	"github.com/vendaflow/lead-api/internal/mapper"
	"github.com/vendaflow/lead-api/internal/validation"
	"go.uber.org/zap"
)

// LegacySource abstracts the legacy CRM read path so the import
// pipeline can be tested without a SQL Server instance.
type LegacySource interface {
	FetchLeads(ctx context.Context, limit int) ([]datasource.LegacyLead, error)
}

// SetLegacySource wires the legacy CRM client; optional.
func (s *ImportService) SetLegacySource(src LegacySource) {
	s.legacy = src
}

// ImportFromDataSource pulls prospect rows from the legacy CRM and
// drives them through the same row pipeline as a CSV import: validate,
// error-rate gate, dedup, per-row transactional ingestion, one report.
func (s *ImportService) ImportFromDataSource(ctx context.Context, limit int) (*domain.ImportRunDTO, error) {
	if s.legacy == nil {
		return nil, fmt.Errorf("%w: no legacy data source configured", ErrInvalidInput)
	}

	startedAt := time.Now().UTC()
	act := actor.FromContextOrSystem(ctx)

	legacyLeads, err := s.legacy.FetchLeads(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching legacy leads: %w", err)
	}
	if len(legacyLeads) == 0 {
		return nil, ErrEmptyDataset
	}

	rows := make([]parsedRow, 0, len(legacyLeads))
	for i, l := range legacyLeads {
		rows = append(rows, parsedRow{
			index: i + 1,
			data: map[string]string{
				"name":    l.Name,
				"email":   l.Email,
				"phone":   l.Phone,
				"company": l.Company,
			},
		})
	}

	run, err := s.runRowPipeline(ctx, act, "legacy-crm:"+strconv.Itoa(len(rows)), "", rows, nil, startedAt)
	if err != nil {
		return nil, err
	}

	s.logger.Info("legacy data source import finished",
		zap.Int("total", run.TotalRows),
		zap.Int("imported", run.Imported),
		zap.Int("rejected", run.Rejected))

	dto := mapper.ToImportRunDTO(run)
	return &dto, nil
}

// runRowPipeline executes steps shared by every batch source: row
// validation, error-rate gate, dedup, ingestion, reporting.
func (s *ImportService) runRowPipeline(
	ctx context.Context,
	act *actor.Actor,
	filename, storagePath string,
	rows []parsedRow,
	warnings []string,
	startedAt time.Time,
) (*domain.ImportRun, error) {
	type validRow struct {
		parsedRow
		record *validation.NormalizedLead
	}
	var valid []validRow
	var rowErrors []domain.RowError

	for _, row := range rows {
		outcome := s.normalizer.ValidateAndNormalize(validation.RawLead{
			Name:    row.data["name"],
			Email:   row.data["email"],
			Phone:   row.data["phone"],
			Company: row.data["company"],
			Source:  row.data["source"],
		}, validation.Options{
			TitleCaseName: true,
			DefaultSource: domain.LeadSourceImport,
		})
		if !outcome.Valid() {
			rowErrors = append(rowErrors, domain.RowError{
				Row:    row.index,
				Errors: outcome.Messages(),
				Data:   row.data,
			})
			continue
		}
		warnings = append(warnings, outcome.Warnings...)
		valid = append(valid, validRow{parsedRow: row, record: outcome.Record})
	}

	// the run id is minted up front so every lead and activity created
	// by this batch can reference it
	runID := uuid.New()

	total := len(rows)
	if rate := float64(len(rowErrors)) / float64(total); rate > errorRateLimit {
		run := s.buildRun(act, filename, storagePath, domain.ImportRunAborted, total, nil, rowErrors, warnings, startedAt)
		run.ID = runID
		s.persistAndDispatch(ctx, run)
		return nil, &ErrorRateError{Rate: rate, Total: total, Rejected: len(rowErrors)}
	}

	var leadIDs []string
	seen := make(map[string]bool, len(valid))

	for _, row := range valid {
		if seen[row.record.Email] {
			rowErrors = append(rowErrors, domain.RowError{
				Row:    row.index,
				Errors: []string{"Email duplicado no arquivo"},
				Data:   row.data,
			})
			continue
		}
		seen[row.record.Email] = true

		existing, err := s.leadRepo.FindByEmail(ctx, row.record.Email)
		if err != nil {
			// a lookup failure rejects this row only; the remaining
			// rows still get their chance
			s.logger.Warn("import dedup lookup failed",
				zap.Int("row", row.index),
				zap.String("email", row.record.Email),
				zap.Error(err))
			rowErrors = append(rowErrors, domain.RowError{
				Row:    row.index,
				Errors: []string{rowFailureMessage(err)},
				Data:   row.data,
			})
			continue
		}
		if existing != nil {
			rowErrors = append(rowErrors, domain.RowError{
				Row:    row.index,
				Errors: []string{"Email já cadastrado"},
				Data:   row.data,
			})
			continue
		}

		lead, _, err := s.leadService.ingestNormalized(ctx, row.record, nil, nil, map[string]any{
			"importRow":   row.data,
			"importRunId": runID.String(),
		})
		if err != nil {
			s.logger.Warn("import row failed",
				zap.Int("row", row.index),
				zap.String("email", row.record.Email),
				zap.Error(err))
			rowErrors = append(rowErrors, domain.RowError{
				Row:    row.index,
				Errors: []string{rowFailureMessage(err)},
				Data:   row.data,
			})
			continue
		}

		leadIDs = append(leadIDs, lead.ID.String())
		s.dispatchImportedLead(ctx, lead, runID)
	}

	run := s.buildRun(act, filename, storagePath, domain.ImportRunCompleted, total, leadIDs, rowErrors, warnings, startedAt)
	run.ID = runID
	s.persistAndDispatch(ctx, run)
	return run, nil
}
