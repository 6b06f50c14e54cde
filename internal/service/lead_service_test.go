package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendaflow/lead-api/internal/domain"
	"github.com/vendaflow/lead-api/internal/integration"
	"github.com/vendaflow/lead-api/internal/repository"
	"github.com/vendaflow/lead-api/internal/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// in-memory sqlite lives per connection
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

// recorderDispatcher records every hook invocation and can be flipped
// into a failing mode to exercise the post-commit error paths.
type recorderDispatcher struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (d *recorderDispatcher) record(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, name)
	if d.fail {
		return errors.New("queue unavailable")
	}
	return nil
}

func (d *recorderDispatcher) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *recorderDispatcher) AddToList(ctx context.Context, lead integration.LeadRef, list string) error {
	return d.record("addToList:" + list)
}

func (d *recorderDispatcher) SyncToCRM(ctx context.Context, lead integration.LeadRef) error {
	return d.record("syncToCrm")
}

func (d *recorderDispatcher) TrackCreation(ctx context.Context, lead integration.LeadRef) error {
	return d.record("trackCreation")
}

func (d *recorderDispatcher) TriggerAutomation(ctx context.Context, lead integration.LeadRef, kind string) error {
	return d.record("automation:" + kind)
}

func (d *recorderDispatcher) NotifyImportCompletion(ctx context.Context, summary integration.ImportSummary) error {
	return d.record("importCompleted")
}

func (d *recorderDispatcher) UpdateImportStats(ctx context.Context, summary integration.ImportSummary) error {
	return d.record("importStats")
}

type serviceFixture struct {
	db         *gorm.DB
	dispatcher *recorderDispatcher
	leads      *service.LeadService
	imports    *service.ImportService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	db := setupTestDB(t)
	dispatcher := &recorderDispatcher{}

	leadRepo := repository.NewLeadRepository(db)
	adjustRepo := repository.NewScoreAdjustmentRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	importRepo := repository.NewImportRepository(db)

	leads := service.NewLeadService(leadRepo, adjustRepo, activityRepo, dispatcher, "senior-sales", zap.NewNop())
	imports := service.NewImportService(leads, leadRepo, importRepo, dispatcher, nil, zap.NewNop())

	return &serviceFixture{db: db, dispatcher: dispatcher, leads: leads, imports: imports}
}

func (f *serviceFixture) countLeads(t *testing.T) int64 {
	var n int64
	require.NoError(t, f.db.Model(&domain.Lead{}).Count(&n).Error)
	return n
}

func (f *serviceFixture) adjustmentSum(t *testing.T, leadID string) int {
	var sum *int
	require.NoError(t, f.db.Model(&domain.ScoreAdjustment{}).
		Select("SUM(delta)").
		Where("lead_id = ?", leadID).
		Scan(&sum).Error)
	if sum == nil {
		return 0
	}
	return *sum
}

func TestLeadService_Ingest(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	result, err := f.leads.Ingest(ctx, &domain.CreateLeadRequest{
		Name:    "Ana Silva",
		Email:   "Ana.Silva@Empresa.com.br",
		Phone:   "(11) 98765-4321",
		Company: "Empresa XYZ",
		Source:  "referral",
		CustomFields: map[string]any{
			"budget": 15000,
		},
	})
	require.NoError(t, err)

	// referral 30 + phone 5 + company 10, then budget presence 10 and
	// budget over threshold 15
	assert.Equal(t, 70, result.Lead.Score)
	assert.Equal(t, "ana.silva@empresa.com.br", result.Lead.Email)
	assert.Equal(t, "5511987654321", result.Lead.Phone)
	assert.Equal(t, domain.LeadStatusNew, result.Lead.Status)
	assert.Len(t, result.Adjustments, 2)

	assert.Equal(t, result.Lead.Score, f.adjustmentSum(t, result.Lead.ID.String()))

	// score 70 reaches the high-value threshold
	assert.True(t, result.Integrations.HighValue)
	assert.True(t, result.Integrations.AutoAssigned)
	assert.Equal(t, "senior-sales", result.Lead.AssignedTo)
	assert.Contains(t, f.dispatcher.Calls(), "automation:high_value")
}

func TestLeadService_Ingest_DefaultSource(t *testing.T) {
	f := newServiceFixture(t)

	result, err := f.leads.Ingest(context.Background(), &domain.CreateLeadRequest{
		Name:  "João Souza",
		Email: "joao@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.LeadSourceWebsite, result.Lead.Source)
	assert.Equal(t, 20, result.Lead.Score)
	assert.False(t, result.Integrations.HighValue)
	assert.Empty(t, result.Lead.AssignedTo)
}

func TestLeadService_Ingest_ScoreOverride(t *testing.T) {
	f := newServiceFixture(t)

	override := 80
	result, err := f.leads.Ingest(context.Background(), &domain.CreateLeadRequest{
		Name:   "Maria Santos",
		Email:  "maria@example.com",
		Source: "email_campaign",
		Score:  &override,
	})
	require.NoError(t, err)

	// the override is logged as its own adjustment alongside the
	// computed initial delta
	require.Len(t, result.Adjustments, 2)
	assert.Equal(t, 80, result.Adjustments[0].Delta)
	assert.Equal(t, "manual score override at creation", result.Adjustments[0].Reason)
	assert.Equal(t, 90, result.Lead.Score)
	assert.Equal(t, result.Lead.Score, f.adjustmentSum(t, result.Lead.ID.String()))
}

func TestLeadService_Ingest_ValidationFailure(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.leads.Ingest(context.Background(), &domain.CreateLeadRequest{
		Name:  "X",
		Email: "not-an-email",
	})
	require.Error(t, err)

	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.ErrorIs(t, err, service.ErrValidationFailed)

	fields := make([]string, 0, len(vErr.Fields))
	for _, fe := range vErr.Fields {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"email", "name"}, fields)

	// nothing persisted, nothing dispatched
	assert.Equal(t, int64(0), f.countLeads(t))
	assert.Empty(t, f.dispatcher.Calls())
}

func TestLeadService_Ingest_DuplicateEmail(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.leads.Ingest(ctx, &domain.CreateLeadRequest{
		Name:  "First Lead",
		Email: "dup@example.com",
	})
	require.NoError(t, err)

	var before int64
	require.NoError(t, f.db.Model(&domain.ScoreAdjustment{}).Count(&before).Error)

	_, err = f.leads.Ingest(ctx, &domain.CreateLeadRequest{
		Name:  "Second Lead",
		Email: "DUP@example.com", // email matching is case-insensitive
	})
	assert.ErrorIs(t, err, service.ErrDuplicateLead)
	assert.Equal(t, int64(1), f.countLeads(t))

	// the rolled-back attempt left no orphan adjustments
	var after int64
	require.NoError(t, f.db.Model(&domain.ScoreAdjustment{}).Count(&after).Error)
	assert.Equal(t, before, after)
}

func TestLeadService_Ingest_DispatchFailureDoesNotRollBack(t *testing.T) {
	f := newServiceFixture(t)
	f.dispatcher.fail = true

	result, err := f.leads.Ingest(context.Background(), &domain.CreateLeadRequest{
		Name:   "Pedro Lima",
		Email:  "pedro@example.com",
		Source: "event",
	})
	require.NoError(t, err)

	// the lead is committed; hook failures only surface as warnings
	assert.Equal(t, int64(1), f.countLeads(t))
	assert.False(t, result.Integrations.AddedToList)
	assert.False(t, result.Integrations.SyncedToCRM)
	assert.NotEmpty(t, result.Warnings)
}

func TestLeadService_AdjustScore(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created, err := f.leads.Ingest(ctx, &domain.CreateLeadRequest{
		Name:   "Carla Dias",
		Email:  "carla@example.com",
		Source: "website",
	})
	require.NoError(t, err)
	require.Equal(t, 20, created.Lead.Score)

	updated, err := f.leads.AdjustScore(ctx, created.Lead.ID, &domain.AdjustScoreRequest{
		Delta:  -15,
		Reason: "no response after three attempts",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Score)

	history, err := f.leads.GetAdjustments(ctx, created.Lead.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, -15, history[1].Delta)
	assert.Equal(t, updated.Score, f.adjustmentSum(t, created.Lead.ID.String()))
}

func TestLeadService_UpdateStatus(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created, err := f.leads.Ingest(ctx, &domain.CreateLeadRequest{
		Name:  "Status Lead",
		Email: "status@example.com",
	})
	require.NoError(t, err)

	t.Run("valid transition", func(t *testing.T) {
		updated, err := f.leads.UpdateStatus(ctx, created.Lead.ID, &domain.UpdateStatusRequest{
			Status: domain.LeadStatusContacted,
			Reason: "first call made",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.LeadStatusContacted, updated.Status)
		assert.Equal(t, "first call made", updated.StatusReason)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := f.leads.UpdateStatus(ctx, created.Lead.ID, &domain.UpdateStatusRequest{
			Status: "archived",
		})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})
}

func TestLeadService_ReconcileScores(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created, err := f.leads.Ingest(ctx, &domain.CreateLeadRequest{
		Name:   "Drift Lead",
		Email:  "drift@example.com",
		Source: "referral",
	})
	require.NoError(t, err)

	// corrupt the cached score behind the service's back
	require.NoError(t, f.db.Model(&domain.Lead{}).
		Where("id = ?", created.Lead.ID).
		Update("score", 999).Error)

	repaired, err := f.leads.ReconcileScores(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	lead, err := f.leads.GetByID(ctx, created.Lead.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Lead.Score, lead.Score)

	// a second pass finds nothing to repair
	repaired, err = f.leads.ReconcileScores(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, repaired)
}

func TestLeadService_Metrics(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	emails := []string{"m1@example.com", "m2@example.com", "m3@example.com"}
	var ids []domain.LeadDTO
	for _, email := range emails {
		created, err := f.leads.Ingest(ctx, &domain.CreateLeadRequest{
			Name:  "Metrics Lead",
			Email: email,
		})
		require.NoError(t, err)
		ids = append(ids, created.Lead)
	}

	_, err := f.leads.UpdateStatus(ctx, ids[0].ID, &domain.UpdateStatusRequest{Status: domain.LeadStatusConverted})
	require.NoError(t, err)

	metrics, err := f.leads.Metrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), metrics.Total)
	assert.Equal(t, int64(1), metrics.ByStatus[domain.LeadStatusConverted])
	assert.Equal(t, int64(2), metrics.ByStatus[domain.LeadStatusNew])
	assert.InDelta(t, 1.0/3.0, metrics.ConversionRate, 0.001)
	assert.Greater(t, metrics.AverageScore, 0.0)
}

func TestLeadService_Delete_NotFound(t *testing.T) {
	f := newServiceFixture(t)

	err := f.leads.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, service.ErrNotFound)
}
