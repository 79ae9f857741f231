package callback

import (
	"context"
	"sync"

	"seller-gateway/internal/config"
	"seller-gateway/internal/models"
	"seller-gateway/internal/services/metrics"
	"seller-gateway/pkg/errors"

	"go.uber.org/zap"
)

// TaskDeliverer drives a task to completion, retries included.
type TaskDeliverer interface {
	Deliver(ctx context.Context, task *models.CallbackTask) error
}

// Queue decouples the synchronous request path from callback delivery: the
// handler enqueues and returns, a fixed pool of workers drains. The channel
// is bounded so a slow counterparty exerts backpressure instead of growing
// memory without limit.
type Queue struct {
	deliverer TaskDeliverer
	tasks     chan *models.CallbackTask
	workers   int
	metrics   *metrics.Service
	logger    *zap.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// mu orders Enqueue sends against the close in Stop, so a late enqueue
	// is rejected instead of panicking on a closed channel.
	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a bounded callback queue. metrics may be nil.
func NewQueue(cfg config.CallbackConfig, deliverer TaskDeliverer, m *metrics.Service, logger *zap.Logger) *Queue {
	return &Queue{
		deliverer: deliverer,
		tasks:     make(chan *models.CallbackTask, cfg.QueueSize),
		workers:   cfg.MaxConcurrent,
		metrics:   m,
		logger:    logger,
	}
}

// Start launches the worker pool. Idempotent.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		workerCtx, cancel := context.WithCancel(ctx)
		q.cancel = cancel
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.worker(workerCtx)
		}
		q.logger.Info("callback workers started", zap.Int("workers", q.workers), zap.Int("queue_size", cap(q.tasks)))
	})
}

// Enqueue hands a task to the worker pool. It never blocks: when the queue
// is full or already stopped the task is rejected and the caller decides
// what to surface.
func (q *Queue) Enqueue(task *models.CallbackTask) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return errors.NewGatewayError(errors.TypeCore, errors.CodeInternal,
			"callback queue stopped", "no workers accepting tasks")
	}

	select {
	case q.tasks <- task:
		q.recordDepth()
		return nil
	default:
		return errors.NewGatewayError(errors.TypeCore, errors.CodeInternal,
			"callback queue full", "delivery backlog at capacity")
	}
}

// Stop closes the queue, waits for in-flight deliveries to finish and
// cancels any that outlive the workers' context.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.tasks)
		q.mu.Unlock()
		q.wg.Wait()
		if q.cancel != nil {
			q.cancel()
		}
		q.logger.Info("callback workers stopped")
	})
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for task := range q.tasks {
		q.recordDepth()
		if err := q.deliverer.Deliver(ctx, task); err != nil {
			q.logger.Warn("callback task abandoned",
				zap.String("task_id", task.TaskID),
				zap.String("action", task.Action),
				zap.Error(err),
			)
		}
	}
}

func (q *Queue) recordDepth() {
	if q.metrics != nil {
		q.metrics.SetCallbackQueueDepth(len(q.tasks))
	}
}
