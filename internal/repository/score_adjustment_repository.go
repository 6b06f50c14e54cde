package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/vendaflow/lead-api/internal/domain"
	"gorm.io/gorm"
)

// ScoreAdjustmentRepository is append-only; adjustments are never
// updated or deleted.
type ScoreAdjustmentRepository struct {
	db *gorm.DB
}

func NewScoreAdjustmentRepository(db *gorm.DB) *ScoreAdjustmentRepository {
	return &ScoreAdjustmentRepository{db: db}
}

// WithTx returns a copy of the repository bound to an open transaction
func (r *ScoreAdjustmentRepository) WithTx(tx *gorm.DB) *ScoreAdjustmentRepository {
	return &ScoreAdjustmentRepository{db: tx}
}

func (r *ScoreAdjustmentRepository) Append(ctx context.Context, adjustment *domain.ScoreAdjustment) error {
	return r.db.WithContext(ctx).Create(adjustment).Error
}

func (r *ScoreAdjustmentRepository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]domain.ScoreAdjustment, error) {
	var adjustments []domain.ScoreAdjustment
	err := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("created_at ASC").
		Find(&adjustments).Error
	return adjustments, err
}

// SumForLead computes the authoritative score for a lead
func (r *ScoreAdjustmentRepository) SumForLead(ctx context.Context, leadID uuid.UUID) (int, error) {
	var sum *int
	err := r.db.WithContext(ctx).Model(&domain.ScoreAdjustment{}).
		Select("SUM(delta)").
		Where("lead_id = ?", leadID).
		Scan(&sum).Error
	if err != nil || sum == nil {
		return 0, err
	}
	return *sum, nil
}
