package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/omc-bdc-price-service/config"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TaskPriceEntrySync is the asynq task type carrying one entry id
const TaskPriceEntrySync = "price_entry:sync"

const (
	defaultQueueName    = "price_sync"
	defaultTaskTimeout  = 2 * time.Minute
	defaultQueueSize    = 1024
	defaultQueueWorkers = 4
)

// DeliveryQueue hands an entry over for its initial delivery attempt.
// Handoff is at-least-once; the entry claim makes repeated runs harmless.
type DeliveryQueue interface {
	Enqueue(ctx context.Context, entryID uint) error
}

// SyncTaskPayload is the JSON payload of TaskPriceEntrySync
type SyncTaskPayload struct {
	PriceEntryID uint `json:"price_entry_id"`
}

// NewSyncTask builds the asynq task for one entry
func NewSyncTask(entryID uint, cfg config.SyncConfig) (*asynq.Task, error) {
	payload, err := json.Marshal(SyncTaskPayload{PriceEntryID: entryID})
	if err != nil {
		return nil, err
	}

	queue := cfg.QueueName
	if queue == "" {
		queue = defaultQueueName
	}
	timeout := cfg.DeliveryTimeout + time.Minute
	if cfg.DeliveryTimeout <= 0 {
		timeout = defaultTaskTimeout
	}

	return asynq.NewTask(
		TaskPriceEntrySync,
		payload,
		asynq.MaxRetry(cfg.QueueMaxRetry),
		asynq.Queue(queue),
		asynq.Timeout(timeout),
	), nil
}

// AsynqDeliveryQueue enqueues sync tasks into redis
type AsynqDeliveryQueue struct {
	client *asynq.Client
	cfg    config.SyncConfig
}

func NewAsynqDeliveryQueue(client *asynq.Client, cfg config.SyncConfig) *AsynqDeliveryQueue {
	return &AsynqDeliveryQueue{client: client, cfg: cfg}
}

func (q *AsynqDeliveryQueue) Enqueue(ctx context.Context, entryID uint) error {
	task, err := NewSyncTask(entryID, q.cfg)
	if err != nil {
		return fmt.Errorf("failed to build sync task: %w", err)
	}
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue sync task for entry %d: %w", entryID, err)
	}
	return nil
}

// NewSyncTaskHandler adapts SyncFlow to asynq.
// Partner failures are already recorded for the daily retry and complete the task;
// storage errors are returned so asynq retries them.
func NewSyncTaskHandler(flow SyncFlow, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p SyncTaskPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("failed to unmarshal sync payload: %v: %w", err, asynq.SkipRetry)
		}
		return runSyncTask(ctx, flow, logger, p.PriceEntryID)
	}
}

func runSyncTask(ctx context.Context, flow SyncFlow, logger *zap.Logger, entryID uint) error {
	outcome, err := flow.SyncEntry(ctx, entryID)
	switch {
	case errors.Is(err, ErrEntryLocked):
		logger.Debug("entry claimed elsewhere, skipping", zap.Uint("price_entry_id", entryID))
		return nil
	case errors.Is(err, ErrPriceEntryNotFound):
		logger.Warn("sync task for missing entry", zap.Uint("price_entry_id", entryID))
		return fmt.Errorf("price entry %d: %w", entryID, asynq.SkipRetry)
	case errors.Is(err, ErrExternalIDConflict):
		logger.Error("sync task left entry untouched", zap.Uint("price_entry_id", entryID), zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case err != nil:
		return err
	}

	logger.Info("sync task done",
		zap.Uint("price_entry_id", entryID),
		zap.String("action", string(outcome.Action)),
		zap.Bool("delivered", outcome.Delivered),
	)
	return nil
}

// InProcessDeliveryQueue runs sync tasks on a bounded pool of goroutines.
// Enqueue never blocks; a full queue leaves the entry for the daily retry.
type InProcessDeliveryQueue struct {
	flow    SyncFlow
	logger  *zap.Logger
	tasks   chan uint
	workers int

	mu     sync.RWMutex
	closed bool
}

func NewInProcessDeliveryQueue(flow SyncFlow, cfg config.SyncConfig, logger *zap.Logger) *InProcessDeliveryQueue {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	workers := cfg.QueueConcurrency
	if workers <= 0 {
		workers = defaultQueueWorkers
	}
	return &InProcessDeliveryQueue{
		flow:    flow,
		logger:  logger,
		tasks:   make(chan uint, size),
		workers: workers,
	}
}

func (q *InProcessDeliveryQueue) Enqueue(_ context.Context, entryID uint) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrDeliveryQueueClosed
	}

	select {
	case q.tasks <- entryID:
		return nil
	default:
		return ErrDeliveryQueueFull
	}
}

// Start launches the workers and returns a stop function that drains queued tasks
func (q *InProcessDeliveryQueue) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	var wg sync.WaitGroup

	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entryID := range q.tasks {
				if err := runSyncTask(ctx, q.flow, q.logger, entryID); err != nil {
					q.logger.Error("sync task failed", zap.Uint("price_entry_id", entryID), zap.Error(err))
				}
			}
		}()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			q.closed = true
			close(q.tasks)
			q.mu.Unlock()
			wg.Wait()
			cancel()
		})
	}
}
