package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vendaflow/lead-api/internal/actor"
	"github.com/vendaflow/lead-api/internal/domain"
	"github.com/vendaflow/lead-api/internal/mapper"
	"github.com/vendaflow/lead-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ActivityService struct {
	activityRepo *repository.ActivityRepository
	leadRepo     *repository.LeadRepository
	logger       *zap.Logger
}

func NewActivityService(
	activityRepo *repository.ActivityRepository,
	leadRepo *repository.LeadRepository,
	logger *zap.Logger,
) *ActivityService {
	return &ActivityService{
		activityRepo: activityRepo,
		leadRepo:     leadRepo,
		logger:       logger,
	}
}

// Record appends a manual activity (call, email, note, ...) to a lead
func (s *ActivityService) Record(ctx context.Context, leadID uuid.UUID, req *domain.RecordActivityRequest) (*domain.ActivityDTO, error) {
	if !req.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown activity type %q", ErrInvalidInput, req.Type)
	}

	if _, err := s.leadRepo.GetByID(ctx, leadID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	act := actor.FromContextOrSystem(ctx)
	activity := &domain.Activity{
		LeadID:      leadID,
		Type:        req.Type,
		Description: req.Description,
		Metadata:    domain.JSONMap(req.Metadata),
		ActorID:     act.ID,
		ActorName:   act.Name,
	}

	if err := s.activityRepo.Create(ctx, activity); err != nil {
		return nil, fmt.Errorf("failed to record activity: %w", err)
	}

	dto := mapper.ToActivityDTO(activity)
	return &dto, nil
}

// ListByLead returns a lead's activity log, newest first
func (s *ActivityService) ListByLead(ctx context.Context, leadID uuid.UUID, page, pageSize int) (*domain.PaginatedResponse, error) {
	if _, err := s.leadRepo.GetByID(ctx, leadID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	activities, total, err := s.activityRepo.ListByLead(ctx, leadID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &domain.PaginatedResponse{
		Data:       mapper.ToActivityDTOs(activities),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}
