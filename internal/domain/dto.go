package domain

import (
	"github.com/google/uuid"
)

// DTOs for API responses

type LeadDTO struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone,omitempty"`
	Company      string         `json:"company,omitempty"`
	Source       LeadSource     `json:"source"`
	Status       LeadStatus     `json:"status"`
	StatusReason string         `json:"statusReason,omitempty"`
	Score        int            `json:"score"`
	Tags         []string       `json:"tags"`
	AssignedTo   string         `json:"assignedTo,omitempty"`
	CustomFields map[string]any `json:"customFields,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    string         `json:"createdAt"` // ISO 8601
	UpdatedAt    string         `json:"updatedAt"` // ISO 8601
}

// IngestionResultDTO reports the created lead plus the outcome of the
// post-commit integration hooks.
type IngestionResultDTO struct {
	Lead         LeadDTO              `json:"lead"`
	Integrations IntegrationFlagsDTO  `json:"integrations"`
	Adjustments  []ScoreAdjustmentDTO `json:"adjustments"`
	Warnings     []string             `json:"warnings,omitempty"`
}

// IntegrationFlagsDTO holds per-hook success flags. A false value means
// the hook failed to enqueue; the lead itself is already committed.
type IntegrationFlagsDTO struct {
	AddedToList    bool `json:"addedToList"`
	SyncedToCRM    bool `json:"syncedToCrm"`
	Tracked        bool `json:"tracked"`
	Automation     bool `json:"automation"`
	HighValue      bool `json:"highValue"`
	AutoAssigned   bool `json:"autoAssigned"`
	ActivityLogged bool `json:"activityLogged"`
}

type ScoreAdjustmentDTO struct {
	ID        uuid.UUID `json:"id"`
	LeadID    uuid.UUID `json:"leadId"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	CreatedAt string    `json:"createdAt"`
}

type ActivityDTO struct {
	ID          uuid.UUID      `json:"id"`
	LeadID      uuid.UUID      `json:"leadId"`
	Type        ActivityType   `json:"type"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ActorID     string         `json:"actorId,omitempty"`
	ActorName   string         `json:"actorName,omitempty"`
	CreatedAt   string         `json:"createdAt"`
}

// ImportRunDTO is the report returned by a bulk import. ErrorDetails
// carries the raw data of each rejected row.
type ImportRunDTO struct {
	ID           uuid.UUID       `json:"id"`
	Status       ImportRunStatus `json:"status"`
	Filename     string          `json:"filename"`
	TotalRows    int             `json:"totalRows"`
	Imported     int             `json:"imported"`
	Errors       int             `json:"errors"`
	ErrorDetails []RowError      `json:"errorDetails"`
	LeadIDs      []string        `json:"leadIds,omitempty"`
	Warnings     []string        `json:"warnings,omitempty"`
	StartedAt    string          `json:"startedAt"`
	CompletedAt  string          `json:"completedAt"`
}

type ImportStatsDTO struct {
	ActorID       string  `json:"actorId"`
	TotalRuns     int     `json:"totalRuns"`
	CompletedRuns int     `json:"completedRuns"`
	AbortedRuns   int     `json:"abortedRuns"`
	RowsImported  int     `json:"rowsImported"`
	RowsRejected  int     `json:"rowsRejected"`
	LastImportAt  *string `json:"lastImportAt,omitempty"`
}

// LeadMetricsDTO holds aggregate pipeline counters
type LeadMetricsDTO struct {
	Total          int64               `json:"total"`
	ByStatus       map[LeadStatus]int64 `json:"byStatus"`
	ConversionRate float64             `json:"conversionRate"`
	AverageScore   float64             `json:"averageScore"`
}

// SourcePerformanceDTO holds per-source counters for analytics
type SourcePerformanceDTO struct {
	Source       LeadSource `json:"source"`
	Count        int64      `json:"count"`
	AverageScore float64    `json:"averageScore"`
	Converted    int64      `json:"converted"`
}

// ScoreBucketDTO is one bucket of the score distribution histogram
type ScoreBucketDTO struct {
	Label string `json:"label"` // e.g. "20-39"
	Count int64  `json:"count"`
}

type LeadAnalyticsDTO struct {
	SourcePerformance []SourcePerformanceDTO `json:"sourcePerformance"`
	ScoreDistribution []ScoreBucketDTO       `json:"scoreDistribution"`
}

// PaginatedResponse wraps list responses with pagination metadata
type PaginatedResponse struct {
	Data       any   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// Request DTOs

type CreateLeadRequest struct {
	Name         string         `json:"name" validate:"required"`
	Email        string         `json:"email" validate:"required"`
	Phone        string         `json:"phone"`
	Company      string         `json:"company"`
	Source       string         `json:"source"`
	Score        *int           `json:"score" validate:"omitempty,gte=0,lte=100"`
	Tags         []string       `json:"tags" validate:"omitempty,max=50"`
	CustomFields map[string]any `json:"customFields"`
}

type UpdateLeadRequest struct {
	Name    *string   `json:"name" validate:"omitempty,min=2,max=200"`
	Phone   *string   `json:"phone"`
	Company *string   `json:"company" validate:"omitempty,max=200"`
	Tags    *[]string `json:"tags" validate:"omitempty,max=50"`
}

type UpdateStatusRequest struct {
	Status LeadStatus `json:"status" validate:"required"`
	Reason string     `json:"reason" validate:"omitempty,max=500"`
}

type AdjustScoreRequest struct {
	Delta  int    `json:"delta" validate:"required,ne=0"`
	Reason string `json:"reason" validate:"required,max=500"`
}

type UpdateTagsRequest struct {
	Tags []string `json:"tags" validate:"required,max=50"`
}

type AssignRequest struct {
	AssignedTo string `json:"assignedTo" validate:"required,max=100"`
}

type BulkStatusRequest struct {
	IDs    []uuid.UUID `json:"ids" validate:"required,min=1,max=500"`
	Status LeadStatus  `json:"status" validate:"required"`
	Reason string      `json:"reason" validate:"omitempty,max=500"`
}

type BulkDeleteRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1,max=500"`
}

type RecordActivityRequest struct {
	Type        ActivityType   `json:"type" validate:"required"`
	Description string         `json:"description" validate:"required,max=2000"`
	Metadata    map[string]any `json:"metadata"`
}

// ImportFromDataSourceRequest triggers a pull from the legacy CRM store
type ImportFromDataSourceRequest struct {
	Limit int `json:"limit" validate:"omitempty,gte=1,lte=10000"`
}
