package integration

import (
	"context"

	"go.uber.org/zap"
)

// LogDispatcher satisfies Dispatcher without a queue. Used in local
// development when redis is not configured.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) AddToList(ctx context.Context, lead LeadRef, list string) error {
	d.logger.Info("dispatch: add to list", zap.String("lead_id", lead.ID), zap.String("list", list))
	return nil
}

func (d *LogDispatcher) SyncToCRM(ctx context.Context, lead LeadRef) error {
	d.logger.Info("dispatch: sync to CRM", zap.String("lead_id", lead.ID))
	return nil
}

func (d *LogDispatcher) TrackCreation(ctx context.Context, lead LeadRef) error {
	d.logger.Info("dispatch: track creation", zap.String("lead_id", lead.ID))
	return nil
}

func (d *LogDispatcher) TriggerAutomation(ctx context.Context, lead LeadRef, kind string) error {
	d.logger.Info("dispatch: trigger automation", zap.String("lead_id", lead.ID), zap.String("kind", kind))
	return nil
}

func (d *LogDispatcher) NotifyImportCompletion(ctx context.Context, summary ImportSummary) error {
	d.logger.Info("dispatch: import completed", zap.String("run_id", summary.RunID))
	return nil
}

func (d *LogDispatcher) UpdateImportStats(ctx context.Context, summary ImportSummary) error {
	d.logger.Info("dispatch: update import stats", zap.String("actor_id", summary.ActorID))
	return nil
}
