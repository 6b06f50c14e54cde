package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vendaflow/lead-api/internal/domain"
	"gorm.io/gorm"
)

// ImportRepository persists import run reports and the per-actor
// aggregate counters derived from them.
type ImportRepository struct {
	db *gorm.DB
}

func NewImportRepository(db *gorm.DB) *ImportRepository {
	return &ImportRepository{db: db}
}

func (r *ImportRepository) CreateRun(ctx context.Context, run *domain.ImportRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *ImportRepository) GetRun(ctx context.Context, id uuid.UUID) (*domain.ImportRun, error) {
	var run domain.ImportRun
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *ImportRepository) ListRuns(ctx context.Context, actorID string, page, pageSize int) ([]domain.ImportRun, int64, error) {
	var runs []domain.ImportRun
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.ImportRun{})
	if actorID != "" {
		query = query.Where("actor_id = ?", actorID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order("completed_at DESC").Find(&runs).Error

	return runs, total, err
}

func (r *ImportRepository) GetStats(ctx context.Context, actorID string) (*domain.ImportStats, error) {
	var stats domain.ImportStats
	err := r.db.WithContext(ctx).Where("actor_id = ?", actorID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.ImportStats{ActorID: actorID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ApplyRun folds one finished run into the actor's aggregate counters
func (r *ImportRepository) ApplyRun(ctx context.Context, run *domain.ImportRun) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stats domain.ImportStats
		err := tx.Where("actor_id = ?", run.ActorID).First(&stats).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			stats = domain.ImportStats{ActorID: run.ActorID}
		} else if err != nil {
			return err
		}

		stats.TotalRuns++
		switch run.Status {
		case domain.ImportRunCompleted:
			stats.CompletedRuns++
		case domain.ImportRunAborted:
			stats.AbortedRuns++
		}
		stats.RowsImported += run.Imported
		stats.RowsRejected += run.Rejected
		completedAt := run.CompletedAt
		stats.LastImportAt = &completedAt
		stats.UpdatedAt = time.Now().UTC()

		return tx.Save(&stats).Error
	})
}

// RecomputeStats rebuilds every actor's counters from the stored runs.
// Used by the hourly rollup job to repair drift from missed dispatches.
func (r *ImportRepository) RecomputeStats(ctx context.Context) (int, error) {
	var actorIDs []string
	err := r.db.WithContext(ctx).Model(&domain.ImportRun{}).
		Distinct("actor_id").
		Pluck("actor_id", &actorIDs).Error
	if err != nil {
		return 0, err
	}

	for _, actorID := range actorIDs {
		if err := r.recomputeActor(ctx, actorID); err != nil {
			return 0, err
		}
	}
	return len(actorIDs), nil
}

func (r *ImportRepository) recomputeActor(ctx context.Context, actorID string) error {
	var agg struct {
		TotalRuns     int
		CompletedRuns int
		AbortedRuns   int
		RowsImported  int
		RowsRejected  int
	}

	err := r.db.WithContext(ctx).Model(&domain.ImportRun{}).
		Select(
			"COUNT(*) as total_runs, "+
				"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) as completed_runs, "+
				"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) as aborted_runs, "+
				"SUM(imported) as rows_imported, "+
				"SUM(rejected) as rows_rejected",
			domain.ImportRunCompleted, domain.ImportRunAborted,
		).
		Where("actor_id = ?", actorID).
		Scan(&agg).Error
	if err != nil {
		return err
	}

	// a typed query keeps the timestamp scan portable across postgres
	// and the sqlite test database
	var latest domain.ImportRun
	err = r.db.WithContext(ctx).
		Where("actor_id = ?", actorID).
		Order("completed_at DESC").
		First(&latest).Error
	if err != nil {
		return err
	}
	lastImportAt := latest.CompletedAt

	stats := domain.ImportStats{
		ActorID:       actorID,
		TotalRuns:     agg.TotalRuns,
		CompletedRuns: agg.CompletedRuns,
		AbortedRuns:   agg.AbortedRuns,
		RowsImported:  agg.RowsImported,
		RowsRejected:  agg.RowsRejected,
		LastImportAt:  &lastImportAt,
		UpdatedAt:     time.Now().UTC(),
	}

	return r.db.WithContext(ctx).Save(&stats).Error
}
