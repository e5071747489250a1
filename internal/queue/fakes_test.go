package queue

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"replyhub/internal/domain"
	"replyhub/internal/infra"
)

// memJobRepo is an in-memory stand-in for the Postgres queue, honoring the
// same lifecycle contract: claim flips queued to running, terminal states
// are immutable, retries push run_at into the future.
type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
	now  func() time.Time
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[string]*domain.Job), now: time.Now}
}

func (r *memJobRepo) Enqueue(ctx context.Context, p domain.EnqueueParams) (*domain.Job, error) {
	raw, err := domain.EncodePayload(p.Payload)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	runAt := p.RunAt
	if runAt.IsZero() {
		runAt = r.now()
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	job := &domain.Job{
		ID:          uuid.NewString(),
		Type:        p.Payload.JobType(),
		Status:      domain.JobStatusQueued,
		MaxAttempts: maxAttempts,
		RunAt:       runAt,
		Payload:     raw,
		CreatedAt:   r.now(),
		UpdatedAt:   r.now(),
	}
	r.jobs[job.ID] = job
	return cloneJob(job), nil
}

func (r *memJobRepo) FetchForWork(ctx context.Context, limit int) ([]*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*domain.Job
	now := r.now()
	for _, j := range r.jobs {
		if j.Status == domain.JobStatusQueued && !j.RunAt.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(i, k int) bool {
		if !due[i].RunAt.Equal(due[k].RunAt) {
			return due[i].RunAt.Before(due[k].RunAt)
		}
		return due[i].ID < due[k].ID
	})
	if len(due) > limit {
		due = due[:limit]
	}
	out := make([]*domain.Job, 0, len(due))
	for _, j := range due {
		j.Status = domain.JobStatusRunning
		j.UpdatedAt = now
		out = append(out, cloneJob(j))
	}
	return out, nil
}

func (r *memJobRepo) MarkDone(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status.Terminal() {
		return nil
	}
	j.Status = domain.JobStatusDone
	j.UpdatedAt = r.now()
	return nil
}

func (r *memJobRepo) MarkFailed(ctx context.Context, id string, jobErr string, retryIn time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status.Terminal() {
		return nil
	}
	if len(jobErr) > domain.MaxLastErrorLen {
		jobErr = jobErr[:domain.MaxLastErrorLen]
	}
	j.Attempts++
	j.LastError = jobErr
	j.UpdatedAt = r.now()
	if j.Attempts >= j.MaxAttempts {
		j.Status = domain.JobStatusFailed
		return nil
	}
	j.Status = domain.JobStatusQueued
	j.RunAt = r.now().Add(retryIn)
	return nil
}

func (r *memJobRepo) Cancel(ctx context.Context, ids []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range ids {
		j, ok := r.jobs[id]
		if !ok || j.Status.Terminal() {
			continue
		}
		j.Status = domain.JobStatusCancelled
		j.UpdatedAt = r.now()
		n++
	}
	return n, nil
}

func (r *memJobRepo) ExistsPendingForShop(ctx context.Context, t domain.JobType, shopID string, maxAge time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-maxAge)
	for _, j := range r.jobs {
		if j.Type != t {
			continue
		}
		if j.Status != domain.JobStatusQueued && j.Status != domain.JobStatusRunning {
			continue
		}
		if j.CreatedAt.Before(cutoff) {
			continue
		}
		if domain.PayloadShopID(j.Payload) == shopID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memJobRepo) CountByStatus(ctx context.Context, s domain.JobStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, j := range r.jobs {
		if j.Status == s {
			n++
		}
	}
	return n, nil
}

func (r *memJobRepo) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(j), nil
}

func (r *memJobRepo) List(ctx context.Context, f domain.JobFilter) ([]*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Job
	for _, j := range r.jobs {
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		if f.Type != "" && j.Type != f.Type {
			continue
		}
		if f.ShopID != "" && domain.PayloadShopID(j.Payload) != f.ShopID {
			continue
		}
		out = append(out, cloneJob(j))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out, nil
}

func (r *memJobRepo) ListFailed(ctx context.Context, limit int) ([]*domain.Job, error) {
	out, err := r.List(ctx, domain.JobFilter{Status: domain.JobStatusFailed, Limit: limit})
	if err != nil {
		return nil, err
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memJobRepo) RetryFailed(ctx context.Context, shopID string, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, j := range r.jobs {
		if n >= limit {
			break
		}
		if j.Status != domain.JobStatusFailed {
			continue
		}
		if shopID != "" && domain.PayloadShopID(j.Payload) != shopID {
			continue
		}
		j.Status = domain.JobStatusQueued
		j.RunAt = r.now()
		j.LastError = ""
		j.UpdatedAt = r.now()
		n++
	}
	return n, nil
}

func cloneJob(j *domain.Job) *domain.Job {
	c := *j
	c.Payload = append([]byte(nil), j.Payload...)
	return &c
}

var _ domain.JobRepository = (*memJobRepo)(nil)

func testLogger() *infra.Logger {
	l := infra.Logger(zerolog.New(io.Discard))
	return &l
}
