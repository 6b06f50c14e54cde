package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/vendaflow/lead-api/internal/domain"
	"gorm.io/gorm"
)

type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Create(ctx context.Context, activity *domain.Activity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

func (r *ActivityRepository) ListByLead(ctx context.Context, leadID uuid.UUID, page, pageSize int) ([]domain.Activity, int64, error) {
	var activities []domain.Activity
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Activity{}).Where("lead_id = ?", leadID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&activities).Error

	return activities, total, err
}
