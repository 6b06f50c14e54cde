package integration

import (
	"context"

	"github.com/vendaflow/lead-api/internal/domain"
)

// LeadRef is the minimal lead snapshot carried on dispatch tasks.
type LeadRef struct {
	ID     string            `json:"id"`
	Email  string            `json:"email"`
	Name   string            `json:"name"`
	Source domain.LeadSource `json:"source"`
	Score  int               `json:"score"`
}

// ImportSummary is the payload of import completion notifications.
type ImportSummary struct {
	RunID     string `json:"runId"`
	ActorID   string `json:"actorId"`
	Status    string `json:"status"`
	TotalRows int    `json:"totalRows"`
	Imported  int    `json:"imported"`
	Errors    int    `json:"errors"`
}

// Dispatcher fans the finalized lead out to downstream systems. Every
// hook is fire-and-forget from the pipeline's perspective: an error
// means the notification could not be enqueued, never that the lead
// failed.
type Dispatcher interface {
	AddToList(ctx context.Context, lead LeadRef, list string) error
	SyncToCRM(ctx context.Context, lead LeadRef) error
	TrackCreation(ctx context.Context, lead LeadRef) error
	TriggerAutomation(ctx context.Context, lead LeadRef, kind string) error
	NotifyImportCompletion(ctx context.Context, summary ImportSummary) error
	UpdateImportStats(ctx context.Context, summary ImportSummary) error
}

// Automation kinds dispatched by the ingestion pipeline.
const (
	AutomationHighValue = "high_value"
	AutomationImport    = "import"
)

// List segments used by the pipeline.
const (
	ListNewLeads = "new_leads"
	ListImported = "imported"
)
