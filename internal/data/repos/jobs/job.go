package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
)

type JobRepo interface {
	Enqueue(dbc dbctx.Context, job *types.Job, dedupWindow time.Duration) (created bool, err error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Job, error)
	Claim(dbc dbctx.Context, workerID string, classes []string, visibility time.Duration) (*types.Job, error)
	Ack(dbc dbctx.Context, id uuid.UUID) error
	Nack(dbc dbctx.Context, id uuid.UUID, backoff time.Duration, reason string) error
	DeadLetter(dbc dbctx.Context, job *types.Job, reason string, errMsg string) error
	CountQueued(dbc dbctx.Context) (int64, error)
	CountQueuedByPriority(dbc dbctx.Context) (map[string]int64, error)
	ListDeadLetters(dbc dbctx.Context, guildID int64, limit int) ([]*types.JobDeadLetter, error)
}

type jobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return &jobRepo{db: db, log: baseLog.With("repo", "JobRepo")}
}

// Enqueue inserts a queue row. When the job carries a dedup key, a second
// enqueue with the same key inside the sliding window coalesces into the
// already-pending row and reports created=false.
func (r *jobRepo) Enqueue(dbc dbctx.Context, job *types.Job, dedupWindow time.Duration) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.NotBefore.IsZero() {
		job.NotBefore = time.Now().UTC()
	}
	created := false
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		if job.DedupKey != "" && dedupWindow > 0 {
			cutoff := time.Now().UTC().Add(-dedupWindow)
			var existing types.Job
			qErr := txx.
				Where("dedup_key = ? AND status = ? AND created_at > ?", job.DedupKey, types.JobStatusQueued, cutoff).
				Limit(1).
				Find(&existing).Error
			if qErr != nil {
				return qErr
			}
			if existing.ID != uuid.Nil {
				return nil
			}
		}
		if err := txx.Create(job).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (r *jobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Job, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var job types.Job
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

// Claim atomically leases one runnable job: queued rows whose NotBefore
// has passed, plus running rows whose lease expired (an implicit nack
// from a crashed worker). Priority drains high before default before
// low; within a class the queue is FIFO by creation time. SKIP LOCKED
// keeps concurrent claimers from blocking each other.
func (r *jobRepo) Claim(dbc dbctx.Context, workerID string, classes []string, visibility time.Duration) (*types.Job, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(classes) == 0 {
		classes = []string{types.JobPriorityHigh, types.JobPriorityDefault, types.JobPriorityLow}
	}
	now := time.Now().UTC()
	var claimed *types.Job
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var job types.Job
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
        (
          (status = ? AND not_before <= ?)
          OR
          (status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at < ?)
        )
      `, types.JobStatusQueued, now, types.JobStatusRunning, now).
			Where("priority IN ?", classes).
			Order("CASE priority WHEN 'high' THEN 0 WHEN 'default' THEN 1 ELSE 2 END ASC, created_at ASC")
		qErr := q.First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		lease := now.Add(visibility)
		uErr := txx.Model(&types.Job{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":           types.JobStatusRunning,
				"attempts":         gorm.Expr("attempts + 1"),
				"lease_expires_at": lease,
				"worker_id":        workerID,
				"updated_at":       now,
			}).Error
		if uErr != nil {
			return uErr
		}
		job.Status = types.JobStatusRunning
		job.Attempts = job.Attempts + 1
		job.LeaseExpiresAt = &lease
		job.WorkerID = workerID
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *jobRepo) Ack(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Job{}).
		Where("id = ? AND status = ?", id, types.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":           types.JobStatusSucceeded,
			"lease_expires_at": nil,
			"worker_id":        "",
			"updated_at":       now,
		}).Error
}

func (r *jobRepo) Nack(dbc dbctx.Context, id uuid.UUID, backoff time.Duration, reason string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Job{}).
		Where("id = ? AND status = ?", id, types.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":           types.JobStatusQueued,
			"not_before":       now.Add(backoff),
			"lease_expires_at": nil,
			"worker_id":        "",
			"last_error":       reason,
			"last_error_at":    now,
			"updated_at":       now,
		}).Error
}

// DeadLetter terminally parks a job: the queue row flips to dead and an
// append-only dead-letter row preserves payload and reason for admin
// inspection. One transaction so the two can never disagree.
func (r *jobRepo) DeadLetter(dbc dbctx.Context, job *types.Job, reason string, errMsg string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Model(&types.Job{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":           types.JobStatusDead,
				"lease_expires_at": nil,
				"worker_id":        "",
				"last_error":       errMsg,
				"last_error_at":    now,
				"updated_at":       now,
			}).Error; err != nil {
			return err
		}
		dl := &types.JobDeadLetter{
			ID:       uuid.New(),
			JobID:    job.ID,
			GuildID:  job.GuildID,
			JobType:  job.JobType,
			Attempts: job.Attempts,
			Reason:   reason,
			Error:    errMsg,
			Payload:  job.Payload,
		}
		return txx.Create(dl).Error
	})
}

func (r *jobRepo) CountQueued(dbc dbctx.Context) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Job{}).
		Where("status = ?", types.JobStatusQueued).
		Count(&count).Error
	return count, err
}

func (r *jobRepo) CountQueuedByPriority(dbc dbctx.Context) (map[string]int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	type row struct {
		Priority string
		N        int64
	}
	var rows []row
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Job{}).
		Select("priority, COUNT(*) AS n").
		Where("status = ?", types.JobStatusQueued).
		Group("priority").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := map[string]int64{}
	for _, rr := range rows {
		out[rr.Priority] = rr.N
	}
	return out, nil
}

func (r *jobRepo) ListDeadLetters(dbc dbctx.Context, guildID int64, limit int) ([]*types.JobDeadLetter, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.JobDeadLetter
	q := transaction.WithContext(dbc.Ctx)
	if guildID != 0 {
		q = q.Where("guild_id = ?", guildID)
	}
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
