package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vendaflow/lead-api/internal/actor"
	"github.com/vendaflow/lead-api/internal/domain"
	"github.com/vendaflow/lead-api/internal/integration"
	"github.com/vendaflow/lead-api/internal/mapper"
	"github.com/vendaflow/lead-api/internal/repository"
	"github.com/vendaflow/lead-api/internal/scoring"
	"github.com/vendaflow/lead-api/internal/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// defaultPlaceholderScore is the denormalized score a lead is created
// with before the scoring adjustments are summed.
const defaultPlaceholderScore = 10

type LeadService struct {
	leadRepo     *repository.LeadRepository
	adjustRepo   *repository.ScoreAdjustmentRepository
	activityRepo *repository.ActivityRepository
	normalizer   *validation.Normalizer
	engine       *scoring.Engine
	dispatcher   integration.Dispatcher
	autoAssignTo string
	logger       *zap.Logger
}

func NewLeadService(
	leadRepo *repository.LeadRepository,
	adjustRepo *repository.ScoreAdjustmentRepository,
	activityRepo *repository.ActivityRepository,
	dispatcher integration.Dispatcher,
	autoAssignTo string,
	logger *zap.Logger,
) *LeadService {
	return &LeadService{
		leadRepo:     leadRepo,
		adjustRepo:   adjustRepo,
		activityRepo: activityRepo,
		normalizer:   validation.NewNormalizer(),
		engine:       scoring.NewEngine(),
		dispatcher:   dispatcher,
		autoAssignTo: autoAssignTo,
		logger:       logger,
	}
}

// Ingest creates a lead as one atomic unit: normalize, persist, score
// through the adjustment log, recompute the denormalized total. Any
// failure rolls the whole unit back. Integration dispatch runs after
// commit and never rolls the lead back; hook failures surface as
// warnings on the result.
func (s *LeadService) Ingest(ctx context.Context, req *domain.CreateLeadRequest) (*domain.IngestionResultDTO, error) {
	outcome := s.normalizer.ValidateAndNormalize(validation.RawLead{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Company:      req.Company,
		Source:       req.Source,
		CustomFields: req.CustomFields,
	}, validation.Options{DefaultSource: domain.LeadSourceWebsite})
	if !outcome.Valid() {
		return nil, &ValidationError{Fields: outcome.Errors}
	}

	lead, adjustments, err := s.ingestNormalized(ctx, outcome.Record, req.Score, req.Tags, nil)
	if err != nil {
		return nil, err
	}

	result := &domain.IngestionResultDTO{
		Lead:        mapper.ToLeadDTO(lead),
		Adjustments: mapper.ToScoreAdjustmentDTOs(adjustments),
		Warnings:    outcome.Warnings,
	}
	result.Integrations = s.dispatchCreated(ctx, lead, &result.Warnings)
	result.Lead = mapper.ToLeadDTO(lead) // pick up auto-assignment

	return result, nil
}

// ingestNormalized runs steps 2-4 of the ingestion pipeline inside one
// transaction and returns the committed lead with its adjustments.
// extraMeta is merged into the lead metadata (import provenance).
func (s *LeadService) ingestNormalized(
	ctx context.Context,
	record *validation.NormalizedLead,
	scoreOverride *int,
	tags []string,
	extraMeta map[string]any,
) (*domain.Lead, []domain.ScoreAdjustment, error) {
	act := actor.FromContextOrSystem(ctx)

	metadata := domain.JSONMap(act.Provenance())
	for k, v := range extraMeta {
		metadata[k] = v
	}

	placeholder := defaultPlaceholderScore
	if scoreOverride != nil {
		placeholder = *scoreOverride
	}

	lead := &domain.Lead{
		Name:         record.Name,
		Email:        record.Email,
		Phone:        record.Phone,
		Company:      record.Company,
		Source:       record.Source,
		Status:       domain.LeadStatusNew,
		Score:        placeholder,
		Tags:         domain.StringList(tags),
		CustomFields: domain.JSONMap(record.CustomFields),
		Metadata:     metadata,
	}

	var adjustments []domain.ScoreAdjustment

	err := s.leadRepo.WithTransaction(ctx, func(tx *gorm.DB) error {
		leads := s.leadRepo.WithTx(tx)
		adjusts := s.adjustRepo.WithTx(tx)

		existing, err := leads.FindByEmail(ctx, record.Email)
		if err != nil {
			return fmt.Errorf("checking for duplicate: %w", err)
		}
		if existing != nil {
			return ErrDuplicateLead
		}

		if err := leads.Create(ctx, lead); err != nil {
			return fmt.Errorf("creating lead: %w", err)
		}

		appendAdjustment := func(delta int, reason string) error {
			adj := domain.ScoreAdjustment{LeadID: lead.ID, Delta: delta, Reason: reason}
			if err := adjusts.Append(ctx, &adj); err != nil {
				return fmt.Errorf("appending score adjustment: %w", err)
			}
			adjustments = append(adjustments, adj)
			return nil
		}

		// an explicit override participates in the adjustment log so
		// the score stays the sum of its adjustments
		if scoreOverride != nil {
			if err := appendAdjustment(*scoreOverride, "manual score override at creation"); err != nil {
				return err
			}
		}

		delta, reason := s.engine.ComputeInitial(record.Source, record.Phone != "", record.Company != "")
		if err := appendAdjustment(delta, reason); err != nil {
			return err
		}

		if bonus, bonusReason := s.engine.ComputeCustomFieldBonus(record.CustomFields); bonus != 0 {
			if err := appendAdjustment(bonus, bonusReason); err != nil {
				return err
			}
		}

		total, err := adjusts.SumForLead(ctx, lead.ID)
		if err != nil {
			return fmt.Errorf("summing adjustments: %w", err)
		}
		if err := leads.UpdateFields(ctx, lead.ID, map[string]any{"score": total}); err != nil {
			return fmt.Errorf("updating lead score: %w", err)
		}
		lead.Score = total

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return lead, adjustments, nil
}

// dispatchCreated runs the post-commit hooks for a created lead. Hook
// failures are logged and reported as warnings, never as errors.
func (s *LeadService) dispatchCreated(ctx context.Context, lead *domain.Lead, warnings *[]string) domain.IntegrationFlagsDTO {
	var flags domain.IntegrationFlagsDTO
	ref := leadRef(lead)

	hook := func(name string, ok *bool, fn func() error) {
		if err := fn(); err != nil {
			s.logger.Error("integration dispatch failed",
				zap.String("hook", name),
				zap.String("lead_id", lead.ID.String()),
				zap.Error(err))
			*warnings = append(*warnings, fmt.Sprintf("integration %s failed: lead was created but downstream sync is pending", name))
			return
		}
		*ok = true
	}

	hook("addToList", &flags.AddedToList, func() error {
		return s.dispatcher.AddToList(ctx, ref, integration.ListNewLeads)
	})
	hook("syncToCrm", &flags.SyncedToCRM, func() error {
		return s.dispatcher.SyncToCRM(ctx, ref)
	})
	hook("trackCreation", &flags.Tracked, func() error {
		return s.dispatcher.TrackCreation(ctx, ref)
	})
	hook("triggerAutomation", &flags.Automation, func() error {
		return s.dispatcher.TriggerAutomation(ctx, ref, string(lead.Source))
	})

	if lead.Score >= scoring.HighValueThreshold {
		hook("highValueAutomation", &flags.HighValue, func() error {
			return s.dispatcher.TriggerAutomation(ctx, ref, integration.AutomationHighValue)
		})
		if s.autoAssignTo != "" && lead.AssignedTo == "" {
			if err := s.leadRepo.UpdateFields(ctx, lead.ID, map[string]any{"assigned_to": s.autoAssignTo}); err != nil {
				s.logger.Error("auto-assignment failed", zap.String("lead_id", lead.ID.String()), zap.Error(err))
			} else {
				lead.AssignedTo = s.autoAssignTo
				flags.AutoAssigned = true
			}
		}
	}

	act := actor.FromContextOrSystem(ctx)
	activity := &domain.Activity{
		LeadID:      lead.ID,
		Type:        domain.ActivityTypeCreated,
		Description: fmt.Sprintf("Lead created from %s with score %d (%d custom fields)", lead.Source, lead.Score, len(lead.CustomFields)),
		ActorID:     act.ID,
		ActorName:   act.Name,
	}
	if err := s.activityRepo.Create(ctx, activity); err != nil {
		s.logger.Error("failed to record creation activity", zap.String("lead_id", lead.ID.String()), zap.Error(err))
	} else {
		flags.ActivityLogged = true
	}

	return flags
}

func leadRef(lead *domain.Lead) integration.LeadRef {
	return integration.LeadRef{
		ID:     lead.ID.String(),
		Email:  lead.Email,
		Name:   lead.Name,
		Source: lead.Source,
		Score:  lead.Score,
	}
}

func (s *LeadService) GetByID(ctx context.Context, id uuid.UUID) (*domain.LeadDTO, error) {
	lead, err := s.leadRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	dto := mapper.ToLeadDTO(lead)
	return &dto, nil
}

func (s *LeadService) List(ctx context.Context, filters repository.LeadFilters, page, pageSize int) (*domain.PaginatedResponse, error) {
	leads, total, err := s.leadRepo.List(ctx, filters, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &domain.PaginatedResponse{
		Data:       mapper.ToLeadDTOs(leads),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func (s *LeadService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateLeadRequest) (*domain.LeadDTO, error) {
	lead, err := s.leadRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	if req.Name != nil {
		lead.Name = *req.Name
	}
	if req.Phone != nil {
		normalized, ok := validation.NormalizePhone(*req.Phone)
		if !ok && *req.Phone != "" {
			return nil, &ValidationError{Fields: []validation.FieldError{{Field: "phone", Message: validation.MsgPhoneInvalid}}}
		}
		lead.Phone = normalized
	}
	if req.Company != nil {
		lead.Company = *req.Company
	}
	if req.Tags != nil {
		lead.Tags = domain.StringList(*req.Tags)
	}

	if err := s.leadRepo.Update(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to update lead: %w", err)
	}

	s.recordActivity(ctx, lead.ID, domain.ActivityTypeUpdated, "Lead details updated", nil)

	dto := mapper.ToLeadDTO(lead)
	return &dto, nil
}

func (s *LeadService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.leadRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get lead: %w", err)
	}
	if err := s.leadRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	return nil
}

func (s *LeadService) UpdateStatus(ctx context.Context, id uuid.UUID, req *domain.UpdateStatusRequest) (*domain.LeadDTO, error) {
	if !req.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, req.Status)
	}

	lead, err := s.leadRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	previous := lead.Status
	lead.Status = req.Status
	lead.StatusReason = req.Reason

	if err := s.leadRepo.Update(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to update lead status: %w", err)
	}

	s.recordActivity(ctx, lead.ID, domain.ActivityTypeStatusChanged,
		fmt.Sprintf("Status changed from %s to %s", previous, req.Status),
		domain.JSONMap{"from": string(previous), "to": string(req.Status), "reason": req.Reason})

	dto := mapper.ToLeadDTO(lead)
	return &dto, nil
}

// AdjustScore appends a manual adjustment and recomputes the cached
// total from the log.
func (s *LeadService) AdjustScore(ctx context.Context, id uuid.UUID, req *domain.AdjustScoreRequest) (*domain.LeadDTO, error) {
	lead, err := s.leadRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	err = s.leadRepo.WithTransaction(ctx, func(tx *gorm.DB) error {
		adjusts := s.adjustRepo.WithTx(tx)
		leads := s.leadRepo.WithTx(tx)

		adj := domain.ScoreAdjustment{LeadID: lead.ID, Delta: req.Delta, Reason: req.Reason}
		if err := adjusts.Append(ctx, &adj); err != nil {
			return fmt.Errorf("appending score adjustment: %w", err)
		}

		total, err := adjusts.SumForLead(ctx, lead.ID)
		if err != nil {
			return fmt.Errorf("summing adjustments: %w", err)
		}
		if err := leads.UpdateFields(ctx, lead.ID, map[string]any{"score": total}); err != nil {
			return fmt.Errorf("updating lead score: %w", err)
		}
		lead.Score = total
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, lead.ID, domain.ActivityTypeScoreChanged,
		fmt.Sprintf("Score adjusted by %+d: %s", req.Delta, req.Reason),
		domain.JSONMap{"delta": req.Delta, "newScore": lead.Score})

	dto := mapper.ToLeadDTO(lead)
	return &dto, nil
}

func (s *LeadService) UpdateTags(ctx context.Context, id uuid.UUID, req *domain.UpdateTagsRequest) (*domain.LeadDTO, error) {
	lead, err := s.leadRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	lead.Tags = domain.StringList(req.Tags)
	if err := s.leadRepo.Update(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to update tags: %w", err)
	}

	s.recordActivity(ctx, lead.ID, domain.ActivityTypeUpdated, "Tags updated", domain.JSONMap{"tags": req.Tags})

	dto := mapper.ToLeadDTO(lead)
	return &dto, nil
}

func (s *LeadService) Assign(ctx context.Context, id uuid.UUID, req *domain.AssignRequest) (*domain.LeadDTO, error) {
	lead, err := s.leadRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	lead.AssignedTo = req.AssignedTo
	if err := s.leadRepo.Update(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to assign lead: %w", err)
	}

	s.recordActivity(ctx, lead.ID, domain.ActivityTypeAssigned,
		fmt.Sprintf("Lead assigned to %s", req.AssignedTo), nil)

	dto := mapper.ToLeadDTO(lead)
	return &dto, nil
}

// BulkUpdateStatus sets the status on up to 500 leads at once
func (s *LeadService) BulkUpdateStatus(ctx context.Context, req *domain.BulkStatusRequest) (int64, error) {
	if !req.Status.IsValid() {
		return 0, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, req.Status)
	}
	updated, err := s.leadRepo.BulkUpdateStatus(ctx, req.IDs, req.Status, req.Reason)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk update status: %w", err)
	}
	return updated, nil
}

func (s *LeadService) BulkDelete(ctx context.Context, req *domain.BulkDeleteRequest) (int64, error) {
	deleted, err := s.leadRepo.DeleteByIDs(ctx, req.IDs)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk delete: %w", err)
	}
	return deleted, nil
}

// GetAdjustments returns the full scoring history of a lead
func (s *LeadService) GetAdjustments(ctx context.Context, id uuid.UUID) ([]domain.ScoreAdjustmentDTO, error) {
	if _, err := s.leadRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	adjustments, err := s.adjustRepo.ListByLead(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list adjustments: %w", err)
	}
	return mapper.ToScoreAdjustmentDTOs(adjustments), nil
}

func (s *LeadService) Metrics(ctx context.Context) (*domain.LeadMetricsDTO, error) {
	counts, err := s.leadRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count leads: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	avg, err := s.leadRepo.AverageScore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute average score: %w", err)
	}

	conversionRate := 0.0
	if total > 0 {
		conversionRate = float64(counts[domain.LeadStatusConverted]) / float64(total)
	}

	return &domain.LeadMetricsDTO{
		Total:          total,
		ByStatus:       counts,
		ConversionRate: conversionRate,
		AverageScore:   avg,
	}, nil
}

func (s *LeadService) Analytics(ctx context.Context) (*domain.LeadAnalyticsDTO, error) {
	performance, err := s.leadRepo.SourcePerformance(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute source performance: %w", err)
	}
	distribution, err := s.leadRepo.ScoreDistribution(ctx, 20)
	if err != nil {
		return nil, fmt.Errorf("failed to compute score distribution: %w", err)
	}
	return &domain.LeadAnalyticsDTO{
		SourcePerformance: performance,
		ScoreDistribution: distribution,
	}, nil
}

// Export returns all leads matching the filters, unpaginated
func (s *LeadService) Export(ctx context.Context, filters repository.LeadFilters) ([]domain.LeadDTO, error) {
	leads, err := s.leadRepo.ListFiltered(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to export leads: %w", err)
	}
	return mapper.ToLeadDTOs(leads), nil
}

// ReconcileScores recomputes each lead's cached score from its
// adjustment log and repairs drift. Returns the number of repaired
// leads. Used by the score audit job.
func (s *LeadService) ReconcileScores(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	repaired := 0
	for offset := 0; ; offset += batchSize {
		ids, err := s.leadRepo.ListIDs(ctx, offset, batchSize)
		if err != nil {
			return repaired, fmt.Errorf("listing lead ids: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			lead, err := s.leadRepo.GetByID(ctx, id)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return repaired, fmt.Errorf("loading lead %s: %w", id, err)
			}

			total, err := s.adjustRepo.SumForLead(ctx, id)
			if err != nil {
				return repaired, fmt.Errorf("summing adjustments for %s: %w", id, err)
			}

			if lead.Score != total {
				if err := s.leadRepo.UpdateFields(ctx, id, map[string]any{"score": total}); err != nil {
					return repaired, fmt.Errorf("repairing score for %s: %w", id, err)
				}
				s.logger.Warn("repaired drifted lead score",
					zap.String("lead_id", id.String()),
					zap.Int("cached", lead.Score),
					zap.Int("computed", total))
				repaired++
			}
		}

		if len(ids) < batchSize {
			break
		}
	}

	return repaired, nil
}

// recordActivity is fire-and-forget; failures are logged, never returned
func (s *LeadService) recordActivity(ctx context.Context, leadID uuid.UUID, actType domain.ActivityType, description string, metadata domain.JSONMap) {
	act := actor.FromContextOrSystem(ctx)
	activity := &domain.Activity{
		LeadID:      leadID,
		Type:        actType,
		Description: description,
		Metadata:    metadata,
		ActorID:     act.ID,
		ActorName:   act.Name,
	}
	if err := s.activityRepo.Create(ctx, activity); err != nil {
		s.logger.Error("failed to record activity",
			zap.String("lead_id", leadID.String()),
			zap.String("type", string(actType)),
			zap.Error(err))
	}
}

