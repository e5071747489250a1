package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"replyhub/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository on PostgreSQL. Claiming
// relies on FOR UPDATE SKIP LOCKED so concurrent worker replicas never
// select the same row.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

const jobColumns = `id, type, status, attempts, max_attempts, run_at, payload, last_error, created_at, updated_at`

// Enqueue validates the payload and inserts a queued job. No uniqueness is
// enforced here; the scheduler de-duplicates before calling.
func (r *JobRepositoryPG) Enqueue(ctx context.Context, p domain.EnqueueParams) (*domain.Job, error) {
	raw, err := domain.EncodePayload(p.Payload)
	if err != nil {
		return nil, err
	}
	runAt := p.RunAt
	if runAt.IsZero() {
		runAt = time.Now().UTC()
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}

	query := `
INSERT INTO jobs (id, type, status, attempts, max_attempts, run_at, payload)
VALUES ($1, $2, $3, 0, $4, $5, $6)
RETURNING ` + jobColumns + `;
`
	row := r.pool.QueryRow(ctx, query, uuid.NewString(), p.Payload.JobType(), domain.JobStatusQueued, maxAttempts, runAt, raw)
	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// FetchForWork claims up to limit due jobs ordered by (run_at, id) and flips
// them to running in the same statement, so the claim and the transition
// commit atomically and the row locks are released immediately.
func (r *JobRepositoryPG) FetchForWork(ctx context.Context, limit int) ([]*domain.Job, error) {
	query := `
WITH due AS (
    SELECT id
    FROM jobs
    WHERE status = $1 AND run_at <= now()
    ORDER BY run_at, id
    FOR UPDATE SKIP LOCKED
    LIMIT $2
)
UPDATE jobs j
SET status = $3, updated_at = now()
FROM due
WHERE j.id = due.id
RETURNING j.id, j.type, j.status, j.attempts, j.max_attempts, j.run_at, j.payload, j.last_error, j.created_at, j.updated_at;
`
	rows, err := r.pool.Query(ctx, query, domain.JobStatusQueued, limit, domain.JobStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, err
	}
	// The claiming UPDATE returns rows in storage order; restore queue order.
	sortJobs(jobs)
	return jobs, nil
}

// MarkDone transitions running -> done. Terminal rows are left untouched.
func (r *JobRepositoryPG) MarkDone(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE jobs SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3;
`, id, domain.JobStatusDone, domain.JobStatusRunning)
	return err
}

// MarkFailed applies the retry contract: bump attempts, requeue with a
// backoff delay while budget remains, otherwise park the job as failed with
// the (truncated) diagnostic.
func (r *JobRepositoryPG) MarkFailed(ctx context.Context, id string, jobErr string, retryIn time.Duration) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var attempts, maxAttempts int
	var status domain.JobStatus
	err = tx.QueryRow(ctx, `
SELECT attempts, max_attempts, status FROM jobs WHERE id = $1 FOR UPDATE;
`, id).Scan(&attempts, &maxAttempts, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock job: %w", err)
	}
	if status.Terminal() {
		return nil
	}

	attempts++
	truncated := truncateError(jobErr)
	if attempts >= maxAttempts {
		_, err = tx.Exec(ctx, `
UPDATE jobs SET status = $2, attempts = $3, last_error = $4, updated_at = now()
WHERE id = $1;
`, id, domain.JobStatusFailed, attempts, truncated)
	} else {
		runAt := time.Now().UTC()
		if retryIn > 0 {
			runAt = runAt.Add(retryIn)
		}
		_, err = tx.Exec(ctx, `
UPDATE jobs SET status = $2, attempts = $3, last_error = $4, run_at = $5, updated_at = now()
WHERE id = $1;
`, id, domain.JobStatusQueued, attempts, truncated, runAt)
	}
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return tx.Commit(ctx)
}

// Cancel flips queued/running jobs to cancelled; terminal ids are skipped.
func (r *JobRepositoryPG) Cancel(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE jobs SET status = $2, updated_at = now()
WHERE id = ANY($1) AND status IN ($3, $4);
`, ids, domain.JobStatusCancelled, domain.JobStatusQueued, domain.JobStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("cancel jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ExistsPendingForShop reports whether a recent queued/running job of the
// given type exists for the shop. Only reasonably recent rows count, so a
// permanently stuck old record cannot block scheduling forever.
func (r *JobRepositoryPG) ExistsPendingForShop(ctx context.Context, t domain.JobType, shopID string, maxAge time.Duration) (bool, error) {
	since := time.Now().UTC().Add(-maxAge)
	var count int
	err := r.pool.QueryRow(ctx, `
SELECT count(*) FROM jobs
WHERE type = $1
  AND status IN ($2, $3)
  AND created_at >= $4
  AND payload->>'shop_id' = $5;
`, t, domain.JobStatusQueued, domain.JobStatusRunning, since, shopID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count pending jobs: %w", err)
	}
	return count > 0, nil
}

func (r *JobRepositoryPG) CountByStatus(ctx context.Context, s domain.JobStatus) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM jobs WHERE status = $1;`, s).Scan(&count); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return count, nil
}

func (r *JobRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1;`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// List returns jobs for the admin surface, newest first.
func (r *JobRepositoryPG) List(ctx context.Context, f domain.JobFilter) ([]*domain.Job, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `
SELECT ` + jobColumns + ` FROM jobs
WHERE ($1 = '' OR status = $1)
  AND ($2 = '' OR type = $2)
  AND ($3 = '' OR payload->>'shop_id' = $3)
ORDER BY created_at DESC, id DESC
LIMIT $4 OFFSET $5;
`
	rows, err := r.pool.Query(ctx, query, string(f.Status), string(f.Type), f.ShopID, limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (r *JobRepositoryPG) ListFailed(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx, `
SELECT `+jobColumns+` FROM jobs WHERE status = $1 ORDER BY updated_at DESC LIMIT $2;
`, domain.JobStatusFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("list failed jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// RetryFailed requeues failed jobs, optionally scoped to one shop.
func (r *JobRepositoryPG) RetryFailed(ctx context.Context, shopID string, limit int) (int, error) {
	if limit <= 0 {
		limit = 200
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE jobs SET status = $1, run_at = now(), last_error = NULL, updated_at = now()
WHERE id IN (
    SELECT id FROM jobs
    WHERE status = $2 AND ($3 = '' OR payload->>'shop_id' = $3)
    ORDER BY updated_at DESC
    LIMIT $4
);
`, domain.JobStatusQueued, domain.JobStatusFailed, shopID, limit)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var lastErr pgtype.Text
	if err := row.Scan(
		&job.ID,
		&job.Type,
		&job.Status,
		&job.Attempts,
		&job.MaxAttempts,
		&job.RunAt,
		&job.Payload,
		&lastErr,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lastErr.Valid {
		job.LastError = lastErr.String
	}
	return &job, nil
}

func collectJobs(rows pgx.Rows) ([]*domain.Job, error) {
	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

func sortJobs(jobs []*domain.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].RunAt.Equal(jobs[j].RunAt) {
			return jobs[i].RunAt.Before(jobs[j].RunAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
}

func truncateError(msg string) string {
	if len(msg) > domain.MaxLastErrorLen {
		return msg[:domain.MaxLastErrorLen]
	}
	return msg
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
