package integration

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/vendaflow/lead-api/internal/repository"
	"go.uber.org/zap"
)

// Worker consumes dispatch tasks. The outbound adapters (email list,
// CRM, analytics, automation) are owned by other teams; this worker
// logs the dispatch and maintains the import statistics that back the
// stats endpoint.
type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	importRepo *repository.ImportRepository
	logger     *zap.Logger
}

func NewWorker(opts RedisOptions, importRepo *repository.ImportRepository, logger *zap.Logger) (*Worker, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	clientOpt, err := redisClientOpt(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	queue := opts.Queue
	if queue == "" {
		queue = "default"
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(clientOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := &Worker{
		server:     server,
		mux:        asynq.NewServeMux(),
		importRepo: importRepo,
		logger:     logger,
	}

	w.mux.HandleFunc(TaskAddToList, w.handleAddToList)
	w.mux.HandleFunc(TaskSyncToCRM, w.handleSyncToCRM)
	w.mux.HandleFunc(TaskTrackCreation, w.handleTrackCreation)
	w.mux.HandleFunc(TaskTriggerAutomation, w.handleTriggerAutomation)
	w.mux.HandleFunc(TaskImportCompleted, w.handleImportCompleted)
	w.mux.HandleFunc(TaskImportStats, w.handleImportStats)

	return w, nil
}

// Run blocks until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()
	return w.server.Run(w.mux)
}

func (w *Worker) handleAddToList(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAddToListPayload(task)
	if err != nil {
		return err
	}
	w.logger.Info("lead added to list",
		zap.String("lead_id", payload.Lead.ID),
		zap.String("email", payload.Lead.Email),
		zap.String("list", payload.List))
	return nil
}

func (w *Worker) handleSyncToCRM(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadPayload(task)
	if err != nil {
		return err
	}
	w.logger.Info("lead synced to CRM",
		zap.String("lead_id", payload.Lead.ID),
		zap.String("source", string(payload.Lead.Source)))
	return nil
}

func (w *Worker) handleTrackCreation(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadPayload(task)
	if err != nil {
		return err
	}
	w.logger.Info("lead creation tracked",
		zap.String("lead_id", payload.Lead.ID),
		zap.Int("score", payload.Lead.Score))
	return nil
}

func (w *Worker) handleTriggerAutomation(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAutomationPayload(task)
	if err != nil {
		return err
	}
	w.logger.Info("automation triggered",
		zap.String("lead_id", payload.Lead.ID),
		zap.String("kind", payload.Kind))
	return nil
}

func (w *Worker) handleImportCompleted(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseImportPayload(task)
	if err != nil {
		return err
	}
	w.logger.Info("import completion notified",
		zap.String("run_id", payload.Summary.RunID),
		zap.String("actor_id", payload.Summary.ActorID),
		zap.String("status", payload.Summary.Status),
		zap.Int("imported", payload.Summary.Imported),
		zap.Int("errors", payload.Summary.Errors))
	return nil
}

func (w *Worker) handleImportStats(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseImportPayload(task)
	if err != nil {
		return err
	}

	runID, err := uuid.Parse(payload.Summary.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", payload.Summary.RunID, err)
	}

	run, err := w.importRepo.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("loading import run: %w", err)
	}

	if err := w.importRepo.ApplyRun(ctx, run); err != nil {
		return fmt.Errorf("applying import run to stats: %w", err)
	}

	w.logger.Info("import stats updated", zap.String("actor_id", run.ActorID))
	return nil
}
