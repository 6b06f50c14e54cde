package mapper

import (
	"time"

	"github.com/vendaflow/lead-api/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// ToLeadDTO converts Lead to LeadDTO
func ToLeadDTO(lead *domain.Lead) domain.LeadDTO {
	tags := []string(lead.Tags)
	if tags == nil {
		tags = []string{}
	}
	return domain.LeadDTO{
		ID:           lead.ID,
		Name:         lead.Name,
		Email:        lead.Email,
		Phone:        lead.Phone,
		Company:      lead.Company,
		Source:       lead.Source,
		Status:       lead.Status,
		StatusReason: lead.StatusReason,
		Score:        lead.Score,
		Tags:         tags,
		AssignedTo:   lead.AssignedTo,
		CustomFields: lead.CustomFields,
		Metadata:     lead.Metadata,
		CreatedAt:    formatTime(lead.CreatedAt),
		UpdatedAt:    formatTime(lead.UpdatedAt),
	}
}

// ToLeadDTOs converts a slice of leads
func ToLeadDTOs(leads []domain.Lead) []domain.LeadDTO {
	dtos := make([]domain.LeadDTO, 0, len(leads))
	for i := range leads {
		dtos = append(dtos, ToLeadDTO(&leads[i]))
	}
	return dtos
}

// ToScoreAdjustmentDTO converts ScoreAdjustment to ScoreAdjustmentDTO
func ToScoreAdjustmentDTO(adjustment *domain.ScoreAdjustment) domain.ScoreAdjustmentDTO {
	return domain.ScoreAdjustmentDTO{
		ID:        adjustment.ID,
		LeadID:    adjustment.LeadID,
		Delta:     adjustment.Delta,
		Reason:    adjustment.Reason,
		CreatedAt: formatTime(adjustment.CreatedAt),
	}
}

// ToScoreAdjustmentDTOs converts a slice of adjustments
func ToScoreAdjustmentDTOs(adjustments []domain.ScoreAdjustment) []domain.ScoreAdjustmentDTO {
	dtos := make([]domain.ScoreAdjustmentDTO, 0, len(adjustments))
	for i := range adjustments {
		dtos = append(dtos, ToScoreAdjustmentDTO(&adjustments[i]))
	}
	return dtos
}

// ToActivityDTO converts Activity to ActivityDTO
func ToActivityDTO(activity *domain.Activity) domain.ActivityDTO {
	return domain.ActivityDTO{
		ID:          activity.ID,
		LeadID:      activity.LeadID,
		Type:        activity.Type,
		Description: activity.Description,
		Metadata:    activity.Metadata,
		ActorID:     activity.ActorID,
		ActorName:   activity.ActorName,
		CreatedAt:   formatTime(activity.CreatedAt),
	}
}

// ToActivityDTOs converts a slice of activities
func ToActivityDTOs(activities []domain.Activity) []domain.ActivityDTO {
	dtos := make([]domain.ActivityDTO, 0, len(activities))
	for i := range activities {
		dtos = append(dtos, ToActivityDTO(&activities[i]))
	}
	return dtos
}

// ToImportRunDTO converts ImportRun to ImportRunDTO
func ToImportRunDTO(run *domain.ImportRun) domain.ImportRunDTO {
	details := []domain.RowError(run.RowErrors)
	if details == nil {
		details = []domain.RowError{}
	}
	return domain.ImportRunDTO{
		ID:           run.ID,
		Status:       run.Status,
		Filename:     run.Filename,
		TotalRows:    run.TotalRows,
		Imported:     run.Imported,
		Errors:       run.Rejected,
		ErrorDetails: details,
		LeadIDs:      run.LeadIDs,
		Warnings:     run.Warnings,
		StartedAt:    formatTime(run.StartedAt),
		CompletedAt:  formatTime(run.CompletedAt),
	}
}

// ToImportStatsDTO converts ImportStats to ImportStatsDTO
func ToImportStatsDTO(stats *domain.ImportStats) domain.ImportStatsDTO {
	dto := domain.ImportStatsDTO{
		ActorID:       stats.ActorID,
		TotalRuns:     stats.TotalRuns,
		CompletedRuns: stats.CompletedRuns,
		AbortedRuns:   stats.AbortedRuns,
		RowsImported:  stats.RowsImported,
		RowsRejected:  stats.RowsRejected,
	}
	if stats.LastImportAt != nil {
		last := formatTime(*stats.LastImportAt)
		dto.LastImportAt = &last
	}
	return dto
}
