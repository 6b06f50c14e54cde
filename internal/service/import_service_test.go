package service_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendaflow/lead-api/internal/actor"
	"github.com/vendaflow/lead-api/internal/datasource"
	"github.com/vendaflow/lead-api/internal/domain"
	"github.com/vendaflow/lead-api/internal/service"
)

func csvUpload(filename, content string) service.FileUpload {
	return service.FileUpload{
		Filename:    filename,
		ContentType: "text/csv",
		Size:        int64(len(content)),
		Data:        strings.NewReader(content),
	}
}

func TestImportService_Import(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	csv := "name,email,phone,company\n" +
		"ana silva,ana@example.com,11987654321,Empresa XYZ\n" +
		"bruno costa,bruno@example.com,,\n" +
		"carla dias,carla@example.com,11912345678,Outra Ltda\n"

	run, err := f.imports.Import(ctx, csvUpload("leads.csv", csv))
	require.NoError(t, err)

	assert.Equal(t, domain.ImportRunCompleted, run.Status)
	assert.Equal(t, 3, run.TotalRows)
	assert.Equal(t, 3, run.Imported)
	assert.Equal(t, 0, run.Errors)
	assert.Len(t, run.LeadIDs, 3)

	// imported rows get the import source and title-cased names
	var lead domain.Lead
	require.NoError(t, f.db.Where("email = ?", "ana@example.com").First(&lead).Error)
	assert.Equal(t, "Ana Silva", lead.Name)
	assert.Equal(t, domain.LeadSourceImport, lead.Source)
	assert.Greater(t, lead.Score, 0)
	assert.Equal(t, lead.Score, f.adjustmentSum(t, lead.ID.String()))

	// lead metadata and the import activity both reference the batch
	assert.Equal(t, run.ID.String(), lead.Metadata["importRunId"])

	var activity domain.Activity
	require.NoError(t, f.db.
		Where("lead_id = ? AND type = ?", lead.ID, domain.ActivityTypeImported).
		First(&activity).Error)
	assert.Equal(t, run.ID.String(), activity.Metadata["importRunId"])
}

func TestImportService_Import_DedupLookupFailureRejectsRowOnly(t *testing.T) {
	f := newServiceFixture(t)
	require.NoError(t, f.db.Migrator().DropTable(&domain.Lead{}))

	csv := "name,email\n" +
		"First Lead,one@example.com\n" +
		"Second Lead,two@example.com\n"

	// the duplicate lookup fails for every row; each failure rejects
	// its own row and the run still produces a durable report
	run, err := f.imports.Import(context.Background(), csvUpload("leads.csv", csv))
	require.NoError(t, err)
	assert.Equal(t, domain.ImportRunCompleted, run.Status)
	assert.Equal(t, 2, run.TotalRows)
	assert.Equal(t, 0, run.Imported)
	assert.Equal(t, 2, run.Errors)
	require.Len(t, run.ErrorDetails, 2)
	for _, rowErr := range run.ErrorDetails {
		assert.Contains(t, rowErr.Errors, "Falha ao importar linha")
	}
}

func TestImportService_Import_PortugueseHeaders(t *testing.T) {
	f := newServiceFixture(t)

	csv := "nome,email,telefone,empresa\n" +
		"josé pereira,jose@example.com,11987654321,Indústria ABC\n"

	run, err := f.imports.Import(context.Background(), csvUpload("leads.csv", csv))
	require.NoError(t, err)
	require.Equal(t, 1, run.Imported)

	var lead domain.Lead
	require.NoError(t, f.db.Where("email = ?", "jose@example.com").First(&lead).Error)
	assert.Equal(t, "José Pereira", lead.Name)
	assert.Equal(t, "Indústria ABC", lead.Company)
}

func TestImportService_Import_ErrorRateGate(t *testing.T) {
	t.Run("over half invalid aborts", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()

		var b strings.Builder
		b.WriteString("name,email\n")
		for i := 0; i < 4; i++ {
			fmt.Fprintf(&b, "Valid Lead,valid%d@example.com\n", i)
		}
		for i := 0; i < 6; i++ {
			fmt.Fprintf(&b, "Bad Lead,not-an-email-%d\n", i)
		}

		_, err := f.imports.Import(ctx, csvUpload("leads.csv", b.String()))
		require.Error(t, err)

		var rateErr *service.ErrorRateError
		require.ErrorAs(t, err, &rateErr)
		assert.ErrorIs(t, err, service.ErrErrorRateExceeded)
		assert.Equal(t, 10, rateErr.Total)
		assert.Equal(t, 6, rateErr.Rejected)
		assert.InDelta(t, 0.6, rateErr.Rate, 0.001)

		// no rows were ingested, but the aborted attempt is on record
		assert.Equal(t, int64(0), f.countLeads(t))

		var stored domain.ImportRun
		require.NoError(t, f.db.First(&stored).Error)
		assert.Equal(t, domain.ImportRunAborted, stored.Status)
		assert.Equal(t, 10, stored.TotalRows)
		assert.Equal(t, 0, stored.Imported)
		assert.Equal(t, 6, stored.Rejected)
	})

	t.Run("exactly half proceeds", func(t *testing.T) {
		f := newServiceFixture(t)

		var b strings.Builder
		b.WriteString("name,email\n")
		for i := 0; i < 5; i++ {
			fmt.Fprintf(&b, "Valid Lead,valid%d@example.com\n", i)
		}
		for i := 0; i < 5; i++ {
			fmt.Fprintf(&b, "Bad Lead,not-an-email-%d\n", i)
		}

		run, err := f.imports.Import(context.Background(), csvUpload("leads.csv", b.String()))
		require.NoError(t, err)
		assert.Equal(t, domain.ImportRunCompleted, run.Status)
		assert.Equal(t, 5, run.Imported)
		assert.Equal(t, 5, run.Errors)
	})
}

func TestImportService_Import_RowErrorsCarryRawData(t *testing.T) {
	f := newServiceFixture(t)

	csv := "name,email\n" +
		"Valid Lead,valid@example.com\n" +
		"X,broken-email\n"

	run, err := f.imports.Import(context.Background(), csvUpload("leads.csv", csv))
	require.NoError(t, err)
	require.Len(t, run.ErrorDetails, 1)

	rowErr := run.ErrorDetails[0]
	assert.Equal(t, 2, rowErr.Row)
	assert.Contains(t, rowErr.Errors, "Email inválido ou ausente")
	assert.Contains(t, rowErr.Errors, "Nome deve ter pelo menos 2 caracteres")
	assert.Equal(t, "broken-email", rowErr.Data["email"])
	assert.Equal(t, "X", rowErr.Data["name"])
}

func TestImportService_Import_Dedup(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	t.Run("duplicate within the file", func(t *testing.T) {
		csv := "name,email\n" +
			"First Occurrence,dup@example.com\n" +
			"Second Occurrence,dup@example.com\n"

		run, err := f.imports.Import(ctx, csvUpload("leads.csv", csv))
		require.NoError(t, err)
		assert.Equal(t, 1, run.Imported)
		require.Len(t, run.ErrorDetails, 1)
		assert.Contains(t, run.ErrorDetails[0].Errors, "Email duplicado no arquivo")

		var lead domain.Lead
		require.NoError(t, f.db.Where("email = ?", "dup@example.com").First(&lead).Error)
		assert.Equal(t, "First Occurrence", lead.Name)
	})

	t.Run("existing lead is left untouched", func(t *testing.T) {
		created, err := f.leads.Ingest(ctx, &domain.CreateLeadRequest{
			Name:  "Original Name",
			Email: "existing@example.com",
		})
		require.NoError(t, err)

		csv := "name,email\n" +
			"Imported Name,existing@example.com\n"

		run, err := f.imports.Import(ctx, csvUpload("leads.csv", csv))
		require.NoError(t, err)
		assert.Equal(t, 0, run.Imported)
		require.Len(t, run.ErrorDetails, 1)
		assert.Contains(t, run.ErrorDetails[0].Errors, "Email já cadastrado")

		current, err := f.leads.GetByID(ctx, created.Lead.ID)
		require.NoError(t, err)
		assert.Equal(t, "Original Name", current.Name)
	})
}

func TestImportService_Import_MismatchedColumnsSkipped(t *testing.T) {
	f := newServiceFixture(t)

	// the two-column row is skipped at parse time and stays out of the
	// error-rate math
	csv := "name,email,phone\n" +
		"Valid Lead,valid@example.com,11987654321\n" +
		"short,row\n" +
		"Bad Lead,broken-email,\n"

	run, err := f.imports.Import(context.Background(), csvUpload("leads.csv", csv))
	require.NoError(t, err)

	assert.Equal(t, 2, run.TotalRows)
	assert.Equal(t, 1, run.Imported)
	assert.Equal(t, 1, run.Errors)
	require.NotEmpty(t, run.Warnings)
	assert.Contains(t, run.Warnings[0], "linha 2 ignorada")
}

func TestImportService_Import_FileRejections(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	t.Run("wrong extension", func(t *testing.T) {
		_, err := f.imports.Import(ctx, csvUpload("leads.xlsx", "name,email\n"))
		assert.ErrorIs(t, err, service.ErrFileRejected)
	})

	t.Run("wrong content type", func(t *testing.T) {
		upload := csvUpload("leads.csv", "name,email\n")
		upload.ContentType = "application/pdf"
		_, err := f.imports.Import(ctx, upload)
		assert.ErrorIs(t, err, service.ErrFileRejected)
	})

	t.Run("declared size over the ceiling", func(t *testing.T) {
		upload := csvUpload("leads.csv", "name,email\n")
		upload.Size = service.MaxImportFileSize + 1
		_, err := f.imports.Import(ctx, upload)
		assert.ErrorIs(t, err, service.ErrFileRejected)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := f.imports.Import(ctx, csvUpload("leads.csv", ""))
		assert.ErrorIs(t, err, service.ErrEmptyDataset)
	})

	t.Run("header only", func(t *testing.T) {
		_, err := f.imports.Import(ctx, csvUpload("leads.csv", "name,email\n"))
		assert.ErrorIs(t, err, service.ErrEmptyDataset)
	})
}

func TestImportService_Import_ActorOnRun(t *testing.T) {
	f := newServiceFixture(t)
	ctx := actor.WithActor(context.Background(), &actor.Actor{
		ID:      "user-42",
		Name:    "Paula Mendes",
		Channel: "api",
	})

	csv := "name,email\nImported Lead,actor@example.com\n"
	_, err := f.imports.Import(ctx, csvUpload("leads.csv", csv))
	require.NoError(t, err)

	var run domain.ImportRun
	require.NoError(t, f.db.First(&run).Error)
	assert.Equal(t, "user-42", run.ActorID)
	assert.Equal(t, "Paula Mendes", run.ActorName)

	listed, err := f.imports.ListRuns(ctx, "user-42", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), listed.Total)
}

type fakeLegacySource struct {
	leads []datasource.LegacyLead
	err   error
}

func (s *fakeLegacySource) FetchLeads(ctx context.Context, limit int) ([]datasource.LegacyLead, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit > 0 && limit < len(s.leads) {
		return s.leads[:limit], nil
	}
	return s.leads, nil
}

func TestImportService_ImportFromDataSource(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.imports.ImportFromDataSource(context.Background(), 100)
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("rows flow through the shared pipeline", func(t *testing.T) {
		f := newServiceFixture(t)
		f.imports.SetLegacySource(&fakeLegacySource{leads: []datasource.LegacyLead{
			{Name: "legacy lead", Email: "legacy@example.com", Phone: "11987654321", Company: "Antiga SA"},
			{Name: "B", Email: "bad-email"},
		}})

		run, err := f.imports.ImportFromDataSource(context.Background(), 100)
		require.NoError(t, err)
		assert.Equal(t, domain.ImportRunCompleted, run.Status)
		assert.Equal(t, 2, run.TotalRows)
		assert.Equal(t, 1, run.Imported)
		assert.Equal(t, 1, run.Errors)

		var lead domain.Lead
		require.NoError(t, f.db.Where("email = ?", "legacy@example.com").First(&lead).Error)
		assert.Equal(t, "Legacy Lead", lead.Name)
		assert.Equal(t, domain.LeadSourceImport, lead.Source)
		assert.Equal(t, run.ID.String(), lead.Metadata["importRunId"])
	})
}

func TestImportService_GetRun(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	csv := "name,email\nRun Lead,run@example.com\n"
	created, err := f.imports.Import(ctx, csvUpload("leads.csv", csv))
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		fetched, err := f.imports.GetRun(ctx, created.ID.String())
		require.NoError(t, err)
		assert.Equal(t, created.ID, fetched.ID)
		assert.Equal(t, 1, fetched.Imported)
	})

	t.Run("invalid id", func(t *testing.T) {
		_, err := f.imports.GetRun(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})
}
