package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	progressdomain "invoice-backend/internal/progress/domain"
	"invoice-backend/pkg/logger"

	"go.uber.org/zap"
)

var ErrQueueFull = errors.New("import queue is full")

// JobRunner is satisfied by *Importer.
type JobRunner interface {
	Run(ctx context.Context, job ImportJob) (*progressdomain.Summary, error)
}

// ImportWorker runs queued import jobs in the background
type ImportWorker struct {
	runner      JobRunner
	jobQueue    chan ImportJob
	workerWg    sync.WaitGroup
	workerCount int
	jobTimeout  time.Duration
	started     bool
	stopped     bool
	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	log         *zap.Logger
}

// NewImportWorker creates a worker pool. jobTimeout bounds a single run.
func NewImportWorker(runner JobRunner, workerCount, queueSize int, jobTimeout time.Duration) *ImportWorker {
	if workerCount <= 0 {
		workerCount = 2
	}
	if queueSize <= 0 {
		queueSize = 20
	}
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ImportWorker{
		runner:      runner,
		jobQueue:    make(chan ImportJob, queueSize),
		workerCount: workerCount,
		jobTimeout:  jobTimeout,
		ctx:         ctx,
		cancel:      cancel,
		log:         logger.Named("import_worker"),
	}
}

// Start starts the import workers
func (w *ImportWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return
	}

	for i := 0; i < w.workerCount; i++ {
		w.workerWg.Add(1)
		go w.worker(i)
	}
	w.started = true
	w.log.Info("import workers started", zap.Int("workers", w.workerCount))
}

// Stop cancels running jobs and waits for the workers to exit.
func (w *ImportWorker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.jobQueue)
	w.mu.Unlock()

	w.cancel()
	w.workerWg.Wait()
	w.log.Info("import workers stopped")
}

func (w *ImportWorker) worker(id int) {
	defer w.workerWg.Done()

	for job := range w.jobQueue {
		w.process(job)
	}
	w.log.Debug("worker stopped", zap.Int("worker", id))
}

func (w *ImportWorker) process(job ImportJob) {
	ctx, cancel := context.WithTimeout(w.ctx, w.jobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("import job panicked", zap.String("job_id", job.JobID), zap.Any("panic", r))
		}
	}()

	if _, err := w.runner.Run(ctx, job); err != nil {
		w.log.Warn("import job failed", zap.String("job_id", job.JobID), zap.Error(err))
	}
}

// Queue adds a job without blocking. It fails when the queue is full or the
// worker is stopped.
func (w *ImportWorker) Queue(job ImportJob) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrQueueFull
	}

	select {
	case w.jobQueue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}
