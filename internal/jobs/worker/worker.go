package worker

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/guildmind-backend/internal/data/repos"
	jobrepos "github.com/yungbote/guildmind-backend/internal/data/repos/jobs"
	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/jobs/runtime"
	"github.com/yungbote/guildmind-backend/internal/observability"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/errkind"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
)

/*
The job worker is the execution engine for the SQL-backed queue.

High-level responsibilities:
  - Poll the job table for runnable jobs (via JobRepo.Claim)
  - Claim a job with a DB-level lease so only one worker runs it inside
    the visibility window
  - Dispatch the job to a handler registered by job_type (runtime.Registry)
  - Map the handler's outcome onto broker state:
  - nil            -> ack
  - NOT_FOUND      -> ack (the referenced record is gone; nothing to do)
  - TRANSIENT      -> nack with exponential backoff + jitter, dead-letter
    past the attempt cap
  - PERMANENT      -> dead-letter immediately
  - TENANT_VIOLATION -> dead-letter immediately and log at error level

Idea:

	The worker is infrastructure. It should know nothing of business logic.
	All business logic lives in job handlers (pipelines), which only interact
	through runtime.Context.

Concurrency:
  - Start() spawns P goroutines (worker_concurrency)
  - Each goroutine runs runLoop() forever
  - The DB claim operation prevents double execution across goroutines and
    processes; a crashed worker's lease expires and the job re-leases

Lease expiry is the implicit nack:
  - A worker that dies mid-job stops renewing nothing; the claim query
    treats its expired lease as claimable, so the job re-runs elsewhere.
    Handlers are idempotent, so the replay converges to the same state.

Worker ticks every second:
  - Small polling interval keeps latency low for queued jobs without busy
    spinning
*/
type Config struct {
	Concurrency       int
	VisibilityTimeout time.Duration
	MaxAttempts       int
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	SoftTimeout       time.Duration
	HardTimeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		Concurrency:       4,
		VisibilityTimeout: 5 * time.Minute,
		MaxAttempts:       5,
		BackoffBase:       1 * time.Second,
		BackoffCap:        600 * time.Second,
		SoftTimeout:       5 * time.Minute,
		HardTimeout:       10 * time.Minute,
	}
}

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRepo
	registry *runtime.Registry
	metrics  *observability.Metrics
	cfg      Config
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRepo, registry *runtime.Registry, metrics *observability.Metrics, cfg Config) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = DefaultConfig().VisibilityTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultConfig().BackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = DefaultConfig().BackoffCap
	}
	if cfg.SoftTimeout <= 0 {
		cfg.SoftTimeout = DefaultConfig().SoftTimeout
	}
	if cfg.HardTimeout <= 0 {
		cfg.HardTimeout = DefaultConfig().HardTimeout
	}
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		metrics:  metrics,
		cfg:      cfg,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency)
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		go w.runLoop(ctx, workerID)
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	name := fmt.Sprintf("worker-%d-%s", workerID, uuid.NewString()[:8])

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			job, err := w.repo.Claim(dbctx.Context{Ctx: ctx}, name, nil, w.cfg.VisibilityTimeout)
			if err != nil {
				w.log.Warn("Claim failed", "worker_id", workerID, "error", err)
				continue
			}
			if job == nil {
				continue
			}
			w.execute(ctx, workerID, job)
		}
	}
}

func (w *Worker) execute(ctx context.Context, workerID int, job *types.Job) {
	start := time.Now()

	// The hard timeout bounds a runaway handler; the lease expiry then
	// re-queues the job for another worker.
	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.HardTimeout)
	defer cancel()

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("No handler registered for job_type",
			"worker_id", workerID,
			"job_type", job.JobType,
			"job_id", job.ID,
		)
		w.deadLetter(ctx, job, string(errkind.Permanent), "no handler registered for job_type="+job.JobType)
		return
	}

	jc := runtime.NewContext(jobCtx, w.db, job, w.log.With("job_id", job.ID.String(), "job_type", job.JobType))

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Job handler panic",
					"worker_id", workerID,
					"job_id", job.ID,
					"job_type", job.JobType,
					"panic", r,
				)
				runErr = errkind.New(errkind.Transient, "panic: unexpected error")
			}
		}()
		runErr = h.Run(jc)
	}()

	elapsed := time.Since(start)
	if w.cfg.SoftTimeout > 0 && elapsed > w.cfg.SoftTimeout {
		w.log.Warn("Job exceeded soft timeout",
			"job_id", job.ID,
			"job_type", job.JobType,
			"elapsed", elapsed.String(),
		)
	}
	w.resolve(ctx, job, runErr)
	if w.metrics != nil {
		w.metrics.JobExecuted(ctx, job.JobType, runErr == nil, elapsed)
	}
}

// resolve maps the handler outcome onto broker state.
func (w *Worker) resolve(ctx context.Context, job *types.Job, runErr error) {
	dbc := dbctx.Context{Ctx: ctx}
	if runErr == nil {
		if err := w.repo.Ack(dbc, job.ID); err != nil {
			w.log.Warn("Ack failed", "job_id", job.ID, "error", err)
		}
		return
	}

	kind := errkind.Of(runErr)
	switch kind {
	case errkind.NotFound:
		// The referenced record vanished between enqueue and execute.
		// Nothing to do; the job is a no-op success.
		if err := w.repo.Ack(dbc, job.ID); err != nil {
			w.log.Warn("Ack failed", "job_id", job.ID, "error", err)
		}
	case errkind.Permanent:
		w.deadLetter(ctx, job, string(kind), runErr.Error())
	case errkind.TenantViolation:
		w.log.Error("Tenant violation in job; failing closed",
			"job_id", job.ID,
			"job_type", job.JobType,
			"error", runErr,
		)
		w.deadLetter(ctx, job, string(kind), runErr.Error())
	default:
		// Transient (and unresolved Conflict, which retries as transient).
		if job.Attempts >= w.cfg.MaxAttempts {
			w.deadLetter(ctx, job, "max_attempts", runErr.Error())
			return
		}
		backoff := jobrepos.RetryBackoff(w.cfg.BackoffBase, w.cfg.BackoffCap, job.Attempts, rand.Float64)
		if err := w.repo.Nack(dbc, job.ID, backoff, runErr.Error()); err != nil {
			w.log.Warn("Nack failed", "job_id", job.ID, "error", err)
			return
		}
		w.log.Debug("Job requeued",
			"job_id", job.ID,
			"job_type", job.JobType,
			"attempt", job.Attempts,
			"backoff", backoff.String(),
		)
	}
}

func (w *Worker) deadLetter(ctx context.Context, job *types.Job, reason, errMsg string) {
	if err := w.repo.DeadLetter(dbctx.Context{Ctx: ctx}, job, reason, errMsg); err != nil {
		w.log.Error("Dead-letter write failed", "job_id", job.ID, "error", err)
		return
	}
	w.log.Warn("Job dead-lettered",
		"job_id", job.ID,
		"job_type", job.JobType,
		"reason", reason,
		"attempts", job.Attempts,
	)
	if w.metrics != nil {
		w.metrics.JobDeadLettered(ctx, job.JobType, reason)
	}
}
