package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendaflow/lead-api/internal/domain"
	"github.com/vendaflow/lead-api/internal/repository"
	"gorm.io/gorm"
)

func createTestLead(t *testing.T, repo *repository.LeadRepository, email string, mutate func(*domain.Lead)) *domain.Lead {
	lead := &domain.Lead{
		Name:   "Test Lead",
		Email:  email,
		Source: domain.LeadSourceWebsite,
		Status: domain.LeadStatusNew,
		Score:  20,
	}
	if mutate != nil {
		mutate(lead)
	}
	require.NoError(t, repo.Create(context.Background(), lead))
	return lead
}

func TestLeadRepository_FindByEmail(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewLeadRepository(db)
	ctx := context.Background()

	created := createTestLead(t, repo, "find@example.com", nil)

	t.Run("found", func(t *testing.T) {
		found, err := repo.FindByEmail(ctx, "find@example.com")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, created.ID, found.ID)
	})

	t.Run("not found returns nil without error", func(t *testing.T) {
		found, err := repo.FindByEmail(ctx, "missing@example.com")
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestLeadRepository_UpdateFields(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewLeadRepository(db)
	ctx := context.Background()

	lead := createTestLead(t, repo, "fields@example.com", nil)

	err := repo.UpdateFields(ctx, lead.ID, map[string]any{"score": 45, "assigned_to": "rep-1"})
	require.NoError(t, err)

	found, err := repo.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 45, found.Score)
	assert.Equal(t, "rep-1", found.AssignedTo)

	t.Run("missing lead", func(t *testing.T) {
		err := repo.UpdateFields(ctx, uuid.New(), map[string]any{"score": 1})
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestLeadRepository_List_Filters(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewLeadRepository(db)
	ctx := context.Background()

	createTestLead(t, repo, "a@example.com", func(l *domain.Lead) {
		l.Name = "Alpha Corp Lead"
		l.Score = 80
		l.Source = domain.LeadSourceReferral
	})
	createTestLead(t, repo, "b@example.com", func(l *domain.Lead) {
		l.Name = "Beta Lead"
		l.Score = 30
		l.Status = domain.LeadStatusContacted
	})
	createTestLead(t, repo, "c@example.com", func(l *domain.Lead) {
		l.Name = "Gamma Lead"
		l.Score = 10
	})

	t.Run("min score", func(t *testing.T) {
		minScore := 30
		leads, total, err := repo.List(ctx, repository.LeadFilters{MinScore: &minScore}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, leads, 2)
	})

	t.Run("status", func(t *testing.T) {
		status := domain.LeadStatusContacted
		leads, total, err := repo.List(ctx, repository.LeadFilters{Status: &status}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "Beta Lead", leads[0].Name)
	})

	t.Run("search matches name case-insensitively", func(t *testing.T) {
		_, total, err := repo.List(ctx, repository.LeadFilters{Search: "alpha"}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("sort by score ascending", func(t *testing.T) {
		leads, _, err := repo.List(ctx, repository.LeadFilters{SortBy: "score"}, 1, 10)
		require.NoError(t, err)
		require.Len(t, leads, 3)
		assert.Equal(t, 10, leads[0].Score)
		assert.Equal(t, 80, leads[2].Score)
	})
}

func TestLeadRepository_BulkUpdateStatus(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewLeadRepository(db)
	ctx := context.Background()

	l1 := createTestLead(t, repo, "bulk1@example.com", nil)
	l2 := createTestLead(t, repo, "bulk2@example.com", nil)
	createTestLead(t, repo, "bulk3@example.com", nil)

	updated, err := repo.BulkUpdateStatus(ctx, []uuid.UUID{l1.ID, l2.ID}, domain.LeadStatusQualified, "campaign follow-up")
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	found, err := repo.GetByID(ctx, l1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeadStatusQualified, found.Status)
	assert.Equal(t, "campaign follow-up", found.StatusReason)
}

func TestLeadRepository_DeleteByIDs(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewLeadRepository(db)
	ctx := context.Background()

	l1 := createTestLead(t, repo, "del1@example.com", nil)
	l2 := createTestLead(t, repo, "del2@example.com", nil)
	kept := createTestLead(t, repo, "del3@example.com", nil)

	deleted, err := repo.DeleteByIDs(ctx, []uuid.UUID{l1.ID, l2.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = repo.GetByID(ctx, l1.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.GetByID(ctx, kept.ID)
	assert.NoError(t, err)
}

func TestLeadRepository_CountByStatus(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := repository.NewLeadRepository(db)
	ctx := context.Background()

	createTestLead(t, repo, "s1@example.com", nil)
	createTestLead(t, repo, "s2@example.com", nil)
	createTestLead(t, repo, "s3@example.com", func(l *domain.Lead) {
		l.Status = domain.LeadStatusConverted
	})

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[domain.LeadStatusNew])
	assert.Equal(t, int64(1), counts[domain.LeadStatusConverted])
}

func TestScoreAdjustmentRepository_SumForLead(t *testing.T) {
	db := setupRepoTestDB(t)
	leadRepo := repository.NewLeadRepository(db)
	adjustRepo := repository.NewScoreAdjustmentRepository(db)
	ctx := context.Background()

	lead := createTestLead(t, leadRepo, "sum@example.com", nil)

	t.Run("no adjustments sums to zero", func(t *testing.T) {
		sum, err := adjustRepo.SumForLead(ctx, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, sum)
	})

	t.Run("mixed deltas", func(t *testing.T) {
		for _, delta := range []int{30, 25, -15} {
			require.NoError(t, adjustRepo.Append(ctx, &domain.ScoreAdjustment{
				LeadID: lead.ID,
				Delta:  delta,
				Reason: "test adjustment",
			}))
		}

		sum, err := adjustRepo.SumForLead(ctx, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, 40, sum)

		history, err := adjustRepo.ListByLead(ctx, lead.ID)
		require.NoError(t, err)
		assert.Len(t, history, 3)
	})
}
