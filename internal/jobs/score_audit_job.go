package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ScoreAuditJobName is the name of the score reconciliation job
const ScoreAuditJobName = "score_audit"

// ScoreReconciler recomputes cached lead scores from the adjustment log.
// This interface allows the job to call the service without importing the service package directly.
type ScoreReconciler interface {
	// ReconcileScores repairs leads whose cached score has drifted from
	// the sum of their adjustments. Returns the number of repaired leads.
	ReconcileScores(ctx context.Context, batchSize int) (int, error)
}

// ScoreAuditJob walks all leads and repairs score drift. The cached
// score is a denormalization of the adjustment log; this job is the
// safety net for any write path that bypasses the recompute.
type ScoreAuditJob struct {
	reconciler ScoreReconciler
	logger     *zap.Logger
	batchSize  int
	timeout    time.Duration
}

func NewScoreAuditJob(reconciler ScoreReconciler, logger *zap.Logger, batchSize int, timeout time.Duration) *ScoreAuditJob {
	return &ScoreAuditJob{
		reconciler: reconciler,
		logger:     logger,
		batchSize:  batchSize,
		timeout:    timeout,
	}
}

// Run executes the score audit. Called by the scheduler.
func (j *ScoreAuditJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()

	repaired, err := j.reconciler.ReconcileScores(ctx, j.batchSize)
	if err != nil {
		j.logger.Error("score audit failed",
			zap.Error(err),
			zap.Int("repaired_before_failure", repaired),
			zap.Duration("duration", time.Since(start)))
		return
	}

	j.logger.Info("score audit completed",
		zap.Int("repaired", repaired),
		zap.Duration("duration", time.Since(start)))
}

// RegisterScoreAuditJob registers the score audit with the scheduler.
func RegisterScoreAuditJob(scheduler *Scheduler, reconciler ScoreReconciler, logger *zap.Logger, cronExpr string, batchSize int, timeout time.Duration) error {
	job := NewScoreAuditJob(reconciler, logger, batchSize, timeout)
	return scheduler.AddJob(ScoreAuditJobName, cronExpr, job.Run)
}
