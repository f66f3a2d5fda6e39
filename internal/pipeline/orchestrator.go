package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/bookweave/internal/config"
)

// Orchestrator runs merge jobs on a fixed pool of workers.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	oracle Oracle
	store  Store
	log    *slog.Logger
	cfg    config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. oracle and store may be nil.
func NewOrchestrator(cfg config.Config, oracle Oracle, store Store, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:   NewJobStore(cfg.JobTTL),
		queue:  make(chan *Job, cfg.MaxQueueSize),
		oracle: oracle,
		store:  store,
		log:    log,
		cfg:    cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			log := o.log.With("worker", i)
			w := NewWorker(o.oracle, o.store, log, o.cfg.MaxConcurrentOracle)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.process(workerCtx, w, job, log)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if n := o.jobs.Cleanup(); n > 0 {
					o.log.Debug("expired jobs removed", "count", n)
				}
			}
		}
	}()
}

// process runs one job. A panic fails that job and leaves the worker alive.
func (o *Orchestrator) process(ctx context.Context, w *Worker, job *Job, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", "job_id", job.ID, "panic", r)
			job.AddError(fmt.Sprintf("internal error: %v", r))
			job.SetStatus(StatusFailed, job.Snapshot().Phase)
		}
	}()
	w.Process(ctx, job)
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.AddError("queue full")
		job.SetStatus(StatusFailed, "queue_full")
		o.log.Warn("job rejected, queue full", "job_id", job.ID, "queue_size", o.cfg.MaxQueueSize)
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// JobCounts returns how many tracked jobs are in each status.
func (o *Orchestrator) JobCounts() map[JobStatus]int {
	return o.jobs.Counts()
}

// OracleEnabled reports whether jobs may ask for generated proposals.
func (o *Orchestrator) OracleEnabled() bool {
	return o.oracle != nil
}
