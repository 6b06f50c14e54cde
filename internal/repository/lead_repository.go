package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/vendaflow/lead-api/internal/domain"
	"gorm.io/gorm"
)

// LeadFilters holds optional list/export filter criteria
type LeadFilters struct {
	Status     *domain.LeadStatus
	Source     *domain.LeadSource
	AssignedTo *string
	MinScore   *int
	Search     string
	SortBy     string // created_at, score, name
	SortDesc   bool
}

type LeadRepository struct {
	db *gorm.DB
}

func NewLeadRepository(db *gorm.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// WithTx returns a copy of the repository bound to an open transaction
func (r *LeadRepository) WithTx(tx *gorm.DB) *LeadRepository {
	return &LeadRepository{db: tx}
}

// WithTransaction executes fn inside a single database transaction
func (r *LeadRepository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *LeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	return r.db.WithContext(ctx).Create(lead).Error
}

func (r *LeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	var lead domain.Lead
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&lead).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// FindByEmail returns nil without error when no lead matches; email is
// expected to be normalized (lowercase, trimmed) by the caller.
func (r *LeadRepository) FindByEmail(ctx context.Context, email string) (*domain.Lead, error) {
	var lead domain.Lead
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *LeadRepository) Update(ctx context.Context, lead *domain.Lead) error {
	return r.db.WithContext(ctx).Save(lead).Error
}

// UpdateFields applies a partial update to a lead
func (r *LeadRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&domain.Lead{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *LeadRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Lead{}, "id = ?", id).Error
}

func (r *LeadRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&domain.Lead{}, "id IN ?", ids)
	return result.RowsAffected, result.Error
}

// BulkUpdateStatus sets status (and optional reason) on the given leads
func (r *LeadRepository) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status domain.LeadStatus, reason string) (int64, error) {
	updates := map[string]any{"status": status}
	if reason != "" {
		updates["status_reason"] = reason
	}
	result := r.db.WithContext(ctx).Model(&domain.Lead{}).Where("id IN ?", ids).Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *LeadRepository) List(ctx context.Context, filters LeadFilters, page, pageSize int) ([]domain.Lead, int64, error) {
	var leads []domain.Lead
	var total int64

	query := r.applyFilters(r.db.WithContext(ctx).Model(&domain.Lead{}), filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order(orderClause(filters)).Find(&leads).Error

	return leads, total, err
}

// ListFiltered returns all matching leads without pagination (export path)
func (r *LeadRepository) ListFiltered(ctx context.Context, filters LeadFilters) ([]domain.Lead, error) {
	var leads []domain.Lead
	query := r.applyFilters(r.db.WithContext(ctx).Model(&domain.Lead{}), filters)
	err := query.Order(orderClause(filters)).Find(&leads).Error
	return leads, err
}

func (r *LeadRepository) applyFilters(query *gorm.DB, filters LeadFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Source != nil {
		query = query.Where("source = ?", *filters.Source)
	}
	if filters.AssignedTo != nil {
		query = query.Where("assigned_to = ?", *filters.AssignedTo)
	}
	if filters.MinScore != nil {
		query = query.Where("score >= ?", *filters.MinScore)
	}
	if filters.Search != "" {
		pattern := "%" + strings.ToLower(filters.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(company) LIKE ?", pattern, pattern, pattern)
	}
	return query
}

func orderClause(filters LeadFilters) string {
	column := "created_at"
	switch filters.SortBy {
	case "score":
		column = "score"
	case "name":
		column = "name"
	}
	if filters.SortDesc {
		return column + " DESC"
	}
	// default listing is newest first
	if filters.SortBy == "" {
		return "created_at DESC"
	}
	return column + " ASC"
}

// CountByStatus returns lead counts grouped by status
func (r *LeadRepository) CountByStatus(ctx context.Context) (map[domain.LeadStatus]int64, error) {
	var results []struct {
		Status domain.LeadStatus
		Count  int64
	}

	err := r.db.WithContext(ctx).Model(&domain.Lead{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.LeadStatus]int64, len(results))
	for _, row := range results {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// AverageScore returns the mean score across all leads, 0 when empty
func (r *LeadRepository) AverageScore(ctx context.Context) (float64, error) {
	var avg *float64
	err := r.db.WithContext(ctx).Model(&domain.Lead{}).
		Select("AVG(score)").
		Scan(&avg).Error
	if err != nil || avg == nil {
		return 0, err
	}
	return *avg, nil
}

// SourcePerformance returns per-source counters for analytics
func (r *LeadRepository) SourcePerformance(ctx context.Context) ([]domain.SourcePerformanceDTO, error) {
	var results []struct {
		Source    domain.LeadSource
		Count     int64
		AvgScore  float64
		Converted int64
	}

	err := r.db.WithContext(ctx).Model(&domain.Lead{}).
		Select("source, COUNT(*) as count, AVG(score) as avg_score, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) as converted", domain.LeadStatusConverted).
		Group("source").
		Order("count DESC").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	perf := make([]domain.SourcePerformanceDTO, 0, len(results))
	for _, row := range results {
		perf = append(perf, domain.SourcePerformanceDTO{
			Source:       row.Source,
			Count:        row.Count,
			AverageScore: row.AvgScore,
			Converted:    row.Converted,
		})
	}
	return perf, nil
}

// ScoreDistribution buckets lead scores into fixed-width ranges
func (r *LeadRepository) ScoreDistribution(ctx context.Context, bucketWidth int) ([]domain.ScoreBucketDTO, error) {
	if bucketWidth <= 0 {
		bucketWidth = 20
	}

	var results []struct {
		Bucket int
		Count  int64
	}

	err := r.db.WithContext(ctx).Model(&domain.Lead{}).
		Select("(score / ?) as bucket, COUNT(*) as count", bucketWidth).
		Group("bucket").
		Order("bucket ASC").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	buckets := make([]domain.ScoreBucketDTO, 0, len(results))
	for _, row := range results {
		low := row.Bucket * bucketWidth
		buckets = append(buckets, domain.ScoreBucketDTO{
			Label: bucketLabel(low, low+bucketWidth-1),
			Count: row.Count,
		})
	}
	return buckets, nil
}

func bucketLabel(low, high int) string {
	return strconv.Itoa(low) + "-" + strconv.Itoa(high)
}

// ListIDs returns all lead ids in batches for the score audit job
func (r *LeadRepository) ListIDs(ctx context.Context, offset, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&domain.Lead{}).
		Order("created_at ASC").
		Offset(offset).Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
