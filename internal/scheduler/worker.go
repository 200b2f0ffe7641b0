package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"account-service/pkg/utils"

	"go.uber.org/zap"
)

// Handler runs one task. A task whose handler fails or panics is retried with
// backoff, so handlers must be idempotent.
type Handler func(ctx context.Context, payload json.RawMessage) error

const (
	defaultLease      = 30 * time.Second
	defaultRetryDelay = time.Second
	maxRetryDelay     = 5 * time.Minute
)

type Worker struct {
	queue      *Queue
	interval   time.Duration
	batch      int
	lease      time.Duration
	retryDelay time.Duration
	log        *zap.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewWorker(queue *Queue, config utils.SchedulerConfig, log *zap.Logger) *Worker {
	interval := time.Duration(config.PollIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	batch := config.BatchSize
	if batch <= 0 {
		batch = 100
	}
	lease := time.Duration(config.LeaseMS) * time.Millisecond
	if lease <= 0 {
		lease = defaultLease
	}
	retryDelay := time.Duration(config.RetryMS) * time.Millisecond
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	return &Worker{
		queue:      queue,
		interval:   interval,
		batch:      batch,
		lease:      lease,
		retryDelay: retryDelay,
		log:        log.With(zap.String("component", "scheduler")),
		handlers:   make(map[string]Handler),
	}
}

func (w *Worker) Register(name string, handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[name] = handler
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("Scheduler worker started",
		zap.Duration("interval", w.interval),
		zap.Int("batch", w.batch),
		zap.Duration("lease", w.lease),
	)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Scheduler worker stopped")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
				w.log.Error("Scheduler poll failed", zap.Error(err))
			}
		}
	}
}

// RunOnce leases and runs every task that is due and returns how many ran.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	members, err := w.queue.Due(ctx, w.batch)
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, member := range members {
		claimed, err := w.queue.Claim(ctx, member, w.lease)
		if err != nil {
			return ran, err
		}
		if !claimed {
			continue
		}

		w.dispatch(ctx, member)
		ran++
	}

	return ran, nil
}

func (w *Worker) dispatch(ctx context.Context, member string) {
	var task Task
	if err := json.Unmarshal([]byte(member), &task); err != nil {
		w.log.Error("Dropping malformed task", zap.Error(err))
		w.ack(ctx, member, "")
		return
	}

	w.mu.RLock()
	handler, ok := w.handlers[task.Name]
	w.mu.RUnlock()
	if !ok {
		w.log.Warn("Dropping task without handler",
			zap.String("task", task.Name),
			zap.String("task_id", task.ID),
		)
		w.ack(ctx, member, task.ID)
		return
	}

	if err := w.safeRun(ctx, handler, task); err != nil {
		delay, retryErr := w.queue.Retry(ctx, member, task.ID, w.retryDelay, maxRetryDelay)
		if retryErr != nil {
			// the lease still brings the task back
			w.log.Error("Failed to reschedule task",
				zap.Error(retryErr),
				zap.String("task", task.Name),
				zap.String("task_id", task.ID),
			)
		}
		w.log.Error("Task failed",
			zap.Error(err),
			zap.String("task", task.Name),
			zap.String("task_id", task.ID),
			zap.Duration("retry_in", delay),
		)
		return
	}

	w.ack(ctx, member, task.ID)
}

func (w *Worker) ack(ctx context.Context, member, taskID string) {
	if err := w.queue.Ack(ctx, member, taskID); err != nil {
		w.log.Error("Failed to ack task", zap.Error(err), zap.String("task_id", taskID))
	}
}

func (w *Worker) safeRun(ctx context.Context, handler Handler, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return handler(ctx, task.Payload)
}
