package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendaflow/lead-api/internal/domain"
	"github.com/vendaflow/lead-api/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRepoTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&domain.Lead{},
		&domain.ScoreAdjustment{},
		&domain.Activity{},
		&domain.ImportRun{},
		&domain.ImportStats{},
	)
	require.NoError(t, err)

	return db
}

func newTestRun(actorID string, status domain.ImportRunStatus, imported, rejected int) *domain.ImportRun {
	now := time.Now().UTC()
	return &domain.ImportRun{
		ActorID:     actorID,
		ActorName:   "Test Actor",
		Filename:    "leads.csv",
		Status:      status,
		TotalRows:   imported + rejected,
		Imported:    imported,
		Rejected:    rejected,
		StartedAt:   now.Add(-time.Second),
		CompletedAt: now,
	}
}

func TestImportRepository_CreateAndGetRun(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewImportRepository(db)
	ctx := context.Background()

	run := newTestRun("user-1", domain.ImportRunCompleted, 8, 2)
	run.RowErrors = domain.RowErrorList{
		{Row: 3, Errors: []string{"Email inválido ou ausente"}, Data: map[string]string{"email": "bad"}},
	}
	require.NoError(t, repo.CreateRun(ctx, run))

	found, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ActorID, found.ActorID)
	assert.Equal(t, 8, found.Imported)
	require.Len(t, found.RowErrors, 1)
	assert.Equal(t, "bad", found.RowErrors[0].Data["email"])
}

func TestImportRepository_ListRuns(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewImportRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateRun(ctx, newTestRun("user-1", domain.ImportRunCompleted, 5, 0)))
	require.NoError(t, repo.CreateRun(ctx, newTestRun("user-1", domain.ImportRunAborted, 0, 7)))
	require.NoError(t, repo.CreateRun(ctx, newTestRun("user-2", domain.ImportRunCompleted, 3, 1)))

	t.Run("all actors", func(t *testing.T) {
		runs, total, err := repo.ListRuns(ctx, "", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, runs, 3)
	})

	t.Run("filtered by actor", func(t *testing.T) {
		runs, total, err := repo.ListRuns(ctx, "user-1", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		for _, run := range runs {
			assert.Equal(t, "user-1", run.ActorID)
		}
	})
}

func TestImportRepository_ApplyRun(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewImportRepository(db)
	ctx := context.Background()

	completed := newTestRun("user-1", domain.ImportRunCompleted, 10, 2)
	require.NoError(t, repo.CreateRun(ctx, completed))
	require.NoError(t, repo.ApplyRun(ctx, completed))

	aborted := newTestRun("user-1", domain.ImportRunAborted, 0, 8)
	require.NoError(t, repo.CreateRun(ctx, aborted))
	require.NoError(t, repo.ApplyRun(ctx, aborted))

	stats, err := repo.GetStats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.CompletedRuns)
	assert.Equal(t, 1, stats.AbortedRuns)
	assert.Equal(t, 10, stats.RowsImported)
	assert.Equal(t, 10, stats.RowsRejected)
	require.NotNil(t, stats.LastImportAt)
}

func TestImportRepository_GetStats_Empty(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewImportRepository(db)

	stats, err := repo.GetStats(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, "nobody", stats.ActorID)
	assert.Equal(t, 0, stats.TotalRuns)
	assert.Nil(t, stats.LastImportAt)
}

func TestImportRepository_RecomputeStats(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewImportRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateRun(ctx, newTestRun("user-1", domain.ImportRunCompleted, 5, 1)))
	require.NoError(t, repo.CreateRun(ctx, newTestRun("user-1", domain.ImportRunCompleted, 3, 0)))
	require.NoError(t, repo.CreateRun(ctx, newTestRun("user-2", domain.ImportRunAborted, 0, 9)))

	// drifted counters, as left behind by a double-delivered task
	require.NoError(t, db.Save(&domain.ImportStats{
		ActorID:      "user-1",
		TotalRuns:    99,
		RowsImported: 99,
		UpdatedAt:    time.Now().UTC(),
	}).Error)

	actors, err := repo.RecomputeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, actors)

	stats, err := repo.GetStats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 2, stats.CompletedRuns)
	assert.Equal(t, 8, stats.RowsImported)
	assert.Equal(t, 1, stats.RowsRejected)
	require.NotNil(t, stats.LastImportAt)
	assert.WithinDuration(t, time.Now().UTC(), *stats.LastImportAt, time.Minute)

	stats, err = repo.GetStats(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.AbortedRuns)
	assert.Equal(t, 9, stats.RowsRejected)
}
