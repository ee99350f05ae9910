package jobs

import (
	"context"
	"log/slog"
	"time"

	"bankimport/internal/logger"
	"bankimport/internal/models"
)

// JobHandler processes one claimed job.
type JobHandler func(ctx context.Context, job *models.Job) error

// Queue is the job table the worker drains.
type Queue interface {
	ClaimNextJob(ctx context.Context) (*models.Job, error)
	FailJob(ctx context.Context, id int64, errMsg string) error
	RetryJob(ctx context.Context, id int64) error
}

// Worker processes background jobs from the queue
type Worker struct {
	queue        Queue
	handlers     map[string]JobHandler
	stop         chan struct{}
	done         chan struct{}
	logger       *slog.Logger
	pollInterval time.Duration
	timeout      time.Duration
}

// NewWorker creates a new job worker
func NewWorker(queue Queue, logger *slog.Logger) *Worker {
	return &Worker{
		queue:        queue,
		handlers:     make(map[string]JobHandler),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		logger:       logger,
		pollInterval: 2 * time.Second,
		timeout:      5 * time.Minute,
	}
}

// Register adds a handler for a job type
func (w *Worker) Register(jobType string, handler JobHandler) {
	w.handlers[jobType] = handler
}

// Start begins processing jobs in a background goroutine
func (w *Worker) Start() {
	go func() {
		defer close(w.done)
		w.logger.Info("job_worker_started")

		for {
			select {
			case <-w.stop:
				w.logger.Info("job_worker_stopping")
				return
			default:
			}

			job, err := w.queue.ClaimNextJob(context.Background())
			if err != nil {
				w.logger.Error("job_claim_error", "error", err.Error())
				w.wait()
				continue
			}
			if job == nil {
				w.wait()
				continue
			}

			w.processJob(job)
		}
	}()
}

// wait sleeps for the poll interval or until Stop is called.
func (w *Worker) wait() {
	t := time.NewTimer(w.pollInterval)
	defer t.Stop()
	select {
	case <-w.stop:
	case <-t.C:
	}
}

// Stop signals the worker to stop and waits for it to finish
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
	w.logger.Info("job_worker_stopped")
}

func (w *Worker) processJob(job *models.Job) {
	l := w.logger.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts)
	l.Info("job_processing_started")

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	handler, ok := w.handlers[job.JobType]
	if !ok {
		l.Error("job_unknown_type")
		if err := w.queue.FailJob(context.Background(), job.ID, "unknown job type: "+job.JobType); err != nil {
			l.Error("job_fail_error", "error", err.Error())
		}
		return
	}

	err := handler(logger.WithLogger(ctx, l), job)
	if err != nil {
		l.Error("job_processing_failed", "error", err.Error())

		if job.Attempts >= job.MaxAttempts {
			l.Warn("job_max_attempts_reached")
			err = w.queue.FailJob(context.Background(), job.ID, err.Error())
		} else {
			l.Info("job_retrying")
			err = w.queue.RetryJob(context.Background(), job.ID)
		}
		if err != nil {
			l.Error("job_requeue_error", "error", err.Error())
		}
		return
	}

	l.Info("job_processing_completed")
}
