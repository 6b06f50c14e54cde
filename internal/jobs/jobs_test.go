package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendaflow/lead-api/internal/jobs"
	"go.uber.org/zap"
)

type fakeReconciler struct {
	calls     int
	batchSize int
	err       error
}

func (f *fakeReconciler) ReconcileScores(ctx context.Context, batchSize int) (int, error) {
	f.calls++
	f.batchSize = batchSize
	return 3, f.err
}

type fakeRecomputer struct {
	calls int
	err   error
}

func (f *fakeRecomputer) RecomputeStats(ctx context.Context) (int, error) {
	f.calls++
	return 2, f.err
}

func TestScoreAuditJob_Run(t *testing.T) {
	reconciler := &fakeReconciler{}
	job := jobs.NewScoreAuditJob(reconciler, zap.NewNop(), 250, time.Minute)

	job.Run()
	assert.Equal(t, 1, reconciler.calls)
	assert.Equal(t, 250, reconciler.batchSize)

	t.Run("errors are swallowed", func(t *testing.T) {
		reconciler.err = errors.New("database gone")
		job.Run()
		assert.Equal(t, 2, reconciler.calls)
	})
}

func TestImportStatsJob_Run(t *testing.T) {
	recomputer := &fakeRecomputer{}
	job := jobs.NewImportStatsJob(recomputer, zap.NewNop(), time.Minute)

	job.Run()
	assert.Equal(t, 1, recomputer.calls)
}

func TestScheduler_RegisterJobs(t *testing.T) {
	scheduler := jobs.NewScheduler(zap.NewNop())

	err := jobs.RegisterScoreAuditJob(scheduler, &fakeReconciler{}, zap.NewNop(), "@every 6h", 500, time.Minute)
	require.NoError(t, err)

	err = jobs.RegisterImportStatsJob(scheduler, &fakeRecomputer{}, zap.NewNop(), "@hourly", time.Minute)
	require.NoError(t, err)

	names := scheduler.GetJobNames()
	assert.ElementsMatch(t, []string{jobs.ScoreAuditJobName, jobs.ImportStatsJobName}, names)

	t.Run("duplicate name rejected", func(t *testing.T) {
		err := jobs.RegisterScoreAuditJob(scheduler, &fakeReconciler{}, zap.NewNop(), "@every 6h", 500, time.Minute)
		assert.Error(t, err)
	})

	t.Run("invalid cron expression rejected", func(t *testing.T) {
		err := scheduler.AddJob("broken", "not a cron expr", func() {})
		assert.Error(t, err)
	})
}
