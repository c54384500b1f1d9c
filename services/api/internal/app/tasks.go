package app

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Task is a unit of post-commit work. Its error is logged, never returned to
// the request that enqueued it.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// TaskQueue runs fire-and-forget work after a transaction commits so callers
// never wait on cache refreshes or notifications.
type TaskQueue struct {
	logger  logrus.FieldLogger
	tasks   chan Task
	timeout time.Duration
	wg      sync.WaitGroup
}

const (
	defaultTaskQueueSize = 1024
	defaultTaskTimeout   = 10 * time.Second
)

func NewTaskQueue(logger logrus.FieldLogger, size int) *TaskQueue {
	if size <= 0 {
		size = defaultTaskQueueSize
	}
	return &TaskQueue{
		logger:  logger.WithField("object", "task_queue"),
		tasks:   make(chan Task, size),
		timeout: defaultTaskTimeout,
	}
}

// Enqueue schedules t without blocking. It reports false when the queue is
// full and the task was dropped.
func (q *TaskQueue) Enqueue(t Task) bool {
	select {
	case q.tasks <- t:
		return true
	default:
		q.logger.WithField("task", t.Name).Warn("task queue full, dropping task")
		return false
	}
}

// Start launches n workers that drain the queue until ctx is cancelled.
func (q *TaskQueue) Start(ctx context.Context, n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.work(ctx)
		}()
	}
}

// Wait blocks until all workers have exited.
func (q *TaskQueue) Wait() {
	q.wg.Wait()
}

func (q *TaskQueue) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q.tasks:
			q.run(ctx, t)
		}
	}
}

func (q *TaskQueue) run(ctx context.Context, t Task) {
	taskCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	if err := t.Run(taskCtx); err != nil {
		q.logger.WithError(err).WithField("task", t.Name).Error("background task failed")
	}
}

// Drain runs every queued task on the calling goroutine. Tests use it to make
// asynchronous follow-ups deterministic.
func (q *TaskQueue) Drain(ctx context.Context) {
	for {
		select {
		case t := <-q.tasks:
			q.run(ctx, t)
		default:
			return
		}
	}
}
