package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields. IDs are assigned in BeforeCreate so the
// models work on both postgres and the sqlite test database.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// LeadSource represents the acquisition channel of a lead
type LeadSource string

const (
	LeadSourceWebsite       LeadSource = "website"
	LeadSourceSocialMedia   LeadSource = "social_media"
	LeadSourceEmailCampaign LeadSource = "email_campaign"
	LeadSourceReferral      LeadSource = "referral"
	LeadSourceColdCall      LeadSource = "cold_call"
	LeadSourceEvent         LeadSource = "event"
	LeadSourceImport        LeadSource = "import"
)

// IsValid checks if the LeadSource is a valid enum value
func (s LeadSource) IsValid() bool {
	switch s {
	case LeadSourceWebsite, LeadSourceSocialMedia, LeadSourceEmailCampaign,
		LeadSourceReferral, LeadSourceColdCall, LeadSourceEvent, LeadSourceImport:
		return true
	}
	return false
}

// LeadStatus represents the lifecycle stage of a lead
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusLost      LeadStatus = "lost"
)

// IsValid checks if the LeadStatus is a valid enum value
func (s LeadStatus) IsValid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified,
		LeadStatusConverted, LeadStatusLost:
		return true
	}
	return false
}

// Lead represents a sales prospect in the pipeline
type Lead struct {
	BaseModel
	Name         string            `gorm:"type:varchar(200);not null;index"`
	Email        string            `gorm:"type:varchar(255);not null;uniqueIndex"`
	Phone        string            `gorm:"type:varchar(50)"`
	Company      string            `gorm:"type:varchar(200)"`
	Source       LeadSource        `gorm:"type:varchar(50);not null;index"`
	Status       LeadStatus        `gorm:"type:varchar(50);not null;index"`
	StatusReason string            `gorm:"type:varchar(500);column:status_reason"`
	Score        int               `gorm:"not null;default:0;index"` // cache of the adjustment sum
	Tags         StringList        `gorm:"type:text"`
	AssignedTo   string            `gorm:"type:varchar(100);column:assigned_to;index"`
	CustomFields JSONMap           `gorm:"type:text;column:custom_fields"`
	Metadata     JSONMap           `gorm:"type:text"`
	Adjustments  []ScoreAdjustment `gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE"`
}

// ScoreAdjustment is one append-only entry in a lead's scoring log.
// Entries are never updated or deleted; the lead's Score is always the
// sum of its adjustments.
type ScoreAdjustment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	LeadID    uuid.UUID `gorm:"type:uuid;not null;index;column:lead_id"`
	Delta     int       `gorm:"not null"`
	Reason    string    `gorm:"type:varchar(500);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (a *ScoreAdjustment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// ActivityType represents the type of activity logged against a lead
type ActivityType string

const (
	ActivityTypeCreated       ActivityType = "created"
	ActivityTypeUpdated       ActivityType = "updated"
	ActivityTypeStatusChanged ActivityType = "status_changed"
	ActivityTypeScoreChanged  ActivityType = "score_changed"
	ActivityTypeAssigned      ActivityType = "assigned"
	ActivityTypeImported      ActivityType = "imported"
	ActivityTypeCall          ActivityType = "call"
	ActivityTypeEmail         ActivityType = "email"
	ActivityTypeMeeting       ActivityType = "meeting"
	ActivityTypeNote          ActivityType = "note"
	ActivityTypeTask          ActivityType = "task"
)

// IsValid checks if the ActivityType is a valid enum value
func (t ActivityType) IsValid() bool {
	switch t {
	case ActivityTypeCreated, ActivityTypeUpdated, ActivityTypeStatusChanged,
		ActivityTypeScoreChanged, ActivityTypeAssigned, ActivityTypeImported,
		ActivityTypeCall, ActivityTypeEmail, ActivityTypeMeeting,
		ActivityTypeNote, ActivityTypeTask:
		return true
	}
	return false
}

// Activity represents an event log entry for a lead
type Activity struct {
	BaseModel
	LeadID      uuid.UUID    `gorm:"type:uuid;not null;index;column:lead_id"`
	Type        ActivityType `gorm:"type:varchar(50);not null;index"`
	Description string       `gorm:"type:varchar(2000)"`
	Metadata    JSONMap      `gorm:"type:text"`
	ActorID     string       `gorm:"type:varchar(100);column:actor_id"`
	ActorName   string       `gorm:"type:varchar(200);column:actor_name"`
}

// ImportRunStatus represents the terminal state of an import run
type ImportRunStatus string

const (
	ImportRunCompleted ImportRunStatus = "completed"
	ImportRunAborted   ImportRunStatus = "aborted"
)

// ImportRun is the persisted report of one bulk import, written once
// after the run finishes.
type ImportRun struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ActorID     string          `gorm:"type:varchar(100);not null;index;column:actor_id"`
	ActorName   string          `gorm:"type:varchar(200);column:actor_name"`
	Filename    string          `gorm:"type:varchar(255);not null"`
	StoragePath string          `gorm:"type:varchar(500);column:storage_path"`
	Status      ImportRunStatus `gorm:"type:varchar(50);not null;index"`
	TotalRows   int             `gorm:"not null;column:total_rows"`
	Imported    int             `gorm:"not null"`
	Rejected    int             `gorm:"not null"`
	RowErrors   RowErrorList    `gorm:"type:text;column:row_errors"`
	LeadIDs     StringList      `gorm:"type:text;column:lead_ids"`
	Warnings    StringList      `gorm:"type:text"`
	StartedAt   time.Time       `gorm:"not null;column:started_at"`
	CompletedAt time.Time       `gorm:"not null;column:completed_at"`
}

func (r *ImportRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ImportStats holds per-actor import counters, maintained by the
// dispatch worker and reconciled by the hourly rollup job.
type ImportStats struct {
	ActorID       string     `gorm:"type:varchar(100);primaryKey;column:actor_id"`
	TotalRuns     int        `gorm:"not null;column:total_runs"`
	CompletedRuns int        `gorm:"not null;column:completed_runs"`
	AbortedRuns   int        `gorm:"not null;column:aborted_runs"`
	RowsImported  int        `gorm:"not null;column:rows_imported"`
	RowsRejected  int        `gorm:"not null;column:rows_rejected"`
	LastImportAt  *time.Time `gorm:"column:last_import_at"`
	UpdatedAt     time.Time  `gorm:"not null"`
}

// TableName overrides the default pluralization
func (ImportStats) TableName() string {
	return "import_stats"
}
