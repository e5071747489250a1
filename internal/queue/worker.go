package queue

import (
	"context"
	"fmt"
	"time"

	"replyhub/internal/domain"
	"replyhub/internal/infra"
	"replyhub/internal/telemetry"
)

// Handler executes one claimed job. A nil return marks the job done; any
// error puts it on the retry path.
type Handler func(ctx context.Context, job *domain.Job) error

// Worker polls the queue and runs claimed jobs through registered handlers.
// Jobs in one batch run sequentially and independently: one failure never
// affects the rest of the batch.
type Worker struct {
	cfg      *infra.Config
	jobs     domain.JobRepository
	logger   *infra.Logger
	handlers map[domain.JobType]Handler
}

func NewWorker(cfg *infra.Config, jobs domain.JobRepository, logger *infra.Logger) *Worker {
	return &Worker{
		cfg:      cfg,
		jobs:     jobs,
		logger:   logger,
		handlers: make(map[domain.JobType]Handler),
	}
}

// Register binds a handler to a job type.
func (w *Worker) Register(t domain.JobType, h Handler) {
	if t == "" || h == nil {
		return
	}
	w.handlers[t] = h
}

// RegisterAll binds a full handler table at once.
func (w *Worker) RegisterAll(table map[domain.JobType]Handler) {
	for t, h := range table {
		w.Register(t, h)
	}
}

// Run starts the poll loop until context cancellation. It refuses to start
// with an incomplete handler table: a claimed job with no handler would burn
// its attempts on a deploy mistake.
func (w *Worker) Run(ctx context.Context) error {
	for _, t := range domain.JobTypes {
		if _, ok := w.handlers[t]; !ok {
			return fmt.Errorf("no handler registered for job type %q", t)
		}
	}

	w.logger.Info().
		Dur("poll_interval", w.cfg.WorkerPollInterval).
		Int("max_jobs_per_tick", w.cfg.MaxJobsPerTick).
		Msg("worker started")

	ticker := time.NewTicker(w.cfg.WorkerPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick claims one batch of due jobs and runs them. Returns how many jobs ran.
func (w *Worker) Tick(ctx context.Context) int {
	jobs, err := w.jobs.FetchForWork(ctx, w.cfg.MaxJobsPerTick)
	if err != nil {
		w.logger.Error().Err(err).Msg("claim jobs")
		return 0
	}
	if depth, err := w.jobs.CountByStatus(ctx, domain.JobStatusQueued); err == nil {
		telemetry.QueueDepthGauge.Set(float64(depth))
	}
	for _, job := range jobs {
		w.process(ctx, job)
	}
	return len(jobs)
}

func (w *Worker) process(ctx context.Context, job *domain.Job) {
	log := w.logger.With().
		Str("job_id", job.ID).
		Str("job_type", string(job.Type)).
		Int("attempt", job.Attempts+1).
		Logger()

	err := w.runHandler(ctx, job)
	if err == nil {
		if markErr := w.jobs.MarkDone(ctx, job.ID); markErr != nil {
			log.Error().Err(markErr).Msg("mark job done")
			return
		}
		telemetry.JobsSucceeded.WithLabelValues(string(job.Type)).Inc()
		log.Info().Msg("job done")
		return
	}

	attempt := job.Attempts + 1
	retryIn := backoffWithJitter(w.cfg.BackoffBase, w.cfg.BackoffMax, attempt)
	if markErr := w.jobs.MarkFailed(ctx, job.ID, err.Error(), retryIn); markErr != nil {
		log.Error().Err(markErr).Msg("mark job failed")
		return
	}
	if attempt >= job.MaxAttempts {
		telemetry.JobsExhausted.WithLabelValues(string(job.Type)).Inc()
		log.Error().Err(err).Msg("job failed, attempts exhausted")
		return
	}
	telemetry.JobsRetried.WithLabelValues(string(job.Type)).Inc()
	log.Warn().Err(err).Dur("retry_in", retryIn).Msg("job failed, requeued")
}

// runHandler isolates one handler call so a panic inside it downgrades to a
// retryable failure instead of taking the loop down.
func (w *Worker) runHandler(ctx context.Context, job *domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	handler, ok := w.handlers[job.Type]
	if !ok {
		return fmt.Errorf("no handler registered for job type %q", job.Type)
	}
	return handler(ctx, job)
}
