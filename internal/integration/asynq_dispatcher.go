package integration

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions holds the connection settings for the dispatch queue.
type RedisOptions struct {
	URL         string
	Queue       string
	Concurrency int
}

func redisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

// AsynqDispatcher enqueues integration hooks as redis-backed tasks with
// at-least-once delivery. The dispatch worker consumes them.
type AsynqDispatcher struct {
	client *asynq.Client
	queue  string
	logger *zap.Logger
}

func NewAsynqDispatcher(opts RedisOptions, logger *zap.Logger) (*AsynqDispatcher, error) {
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

	return &AsynqDispatcher{
		client: asynq.NewClient(clientOpt),
		queue:  queue,
		logger: logger,
	}, nil
}

func (d *AsynqDispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *AsynqDispatcher) enqueue(ctx context.Context, task *asynq.Task) error {
	_, err := d.client.EnqueueContext(ctx, task, asynq.Queue(d.queue))
	if err != nil {
		d.logger.Error("failed to enqueue integration task",
			zap.String("task", task.Type()),
			zap.Error(err))
	}
	return err
}

func (d *AsynqDispatcher) AddToList(ctx context.Context, lead LeadRef, list string) error {
	task, err := NewAddToListTask(AddToListPayload{Lead: lead, List: list})
	if err != nil {
		return err
	}
	return d.enqueue(ctx, task)
}

func (d *AsynqDispatcher) SyncToCRM(ctx context.Context, lead LeadRef) error {
	task, err := NewLeadTask(TaskSyncToCRM, LeadPayload{Lead: lead})
	if err != nil {
		return err
	}
	return d.enqueue(ctx, task)
}

func (d *AsynqDispatcher) TrackCreation(ctx context.Context, lead LeadRef) error {
	task, err := NewLeadTask(TaskTrackCreation, LeadPayload{Lead: lead})
	if err != nil {
		return err
	}
	return d.enqueue(ctx, task)
}

func (d *AsynqDispatcher) TriggerAutomation(ctx context.Context, lead LeadRef, kind string) error {
	task, err := NewAutomationTask(AutomationPayload{Lead: lead, Kind: kind})
	if err != nil {
		return err
	}
	return d.enqueue(ctx, task)
}

func (d *AsynqDispatcher) NotifyImportCompletion(ctx context.Context, summary ImportSummary) error {
	task, err := NewImportTask(TaskImportCompleted, ImportPayload{Summary: summary})
	if err != nil {
		return err
	}
	return d.enqueue(ctx, task)
}

func (d *AsynqDispatcher) UpdateImportStats(ctx context.Context, summary ImportSummary) error {
	task, err := NewImportTask(TaskImportStats, ImportPayload{Summary: summary})
	if err != nil {
		return err
	}
	return d.enqueue(ctx, task)
}
