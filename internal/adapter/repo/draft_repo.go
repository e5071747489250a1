package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"replyhub/internal/domain"
)

const draftColumns = `id, shop_id, subject, subject_id, text, status, model, response_id, published_at, created_at`

// DraftRepositoryPG implements domain.DraftRepository.
type DraftRepositoryPG struct {
	pool *pgxpool.Pool
}

func NewDraftRepository(pool *pgxpool.Pool) *DraftRepositoryPG {
	return &DraftRepositoryPG{pool: pool}
}

func (r *DraftRepositoryPG) Create(ctx context.Context, d *domain.Draft) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = domain.DraftStatusDrafted
	}
	err := r.pool.QueryRow(ctx, `
INSERT INTO drafts (id, shop_id, subject, subject_id, text, status, model, response_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at;
`, d.ID, d.ShopID, d.Subject, d.SubjectID, d.Text, d.Status, d.Model, d.ResponseID).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("create draft: %w", err)
	}
	return nil
}

func (r *DraftRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Draft, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id = $1;`, id)
	d, err := scanDraft(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return d, nil
}

// LatestForSubject returns the newest draft replying to the given review,
// question, or chat, or ErrNotFound when none exists yet.
func (r *DraftRepositoryPG) LatestForSubject(ctx context.Context, subject domain.DraftSubject, subjectID string) (*domain.Draft, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+draftColumns+` FROM drafts
WHERE subject = $1 AND subject_id = $2
ORDER BY created_at DESC
LIMIT 1;
`, subject, subjectID)
	d, err := scanDraft(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest draft: %w", err)
	}
	return d, nil
}

func (r *DraftRepositoryPG) SetStatus(ctx context.Context, id string, status domain.DraftStatus, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE drafts SET status = $2, published_at = $3 WHERE id = $1;
`, id, status, at)
	if err != nil {
		return fmt.Errorf("set draft status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanDraft(row pgx.Row) (*domain.Draft, error) {
	var d domain.Draft
	var publishedAt pgtype.Timestamptz
	if err := row.Scan(
		&d.ID, &d.ShopID, &d.Subject, &d.SubjectID, &d.Text,
		&d.Status, &d.Model, &d.ResponseID, &publishedAt, &d.CreatedAt,
	); err != nil {
		return nil, err
	}
	d.PublishedAt = tsPtr(publishedAt)
	return &d, nil
}

var _ domain.DraftRepository = (*DraftRepositoryPG)(nil)
