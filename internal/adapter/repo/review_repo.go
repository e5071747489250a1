package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"replyhub/internal/domain"
)

const reviewColumns = `id, shop_id, external_id, product_name, product_sku, rating, text, pros, cons, answer_text, created_date, created_at, updated_at`

// ReviewRepositoryPG implements domain.ReviewRepository.
type ReviewRepositoryPG struct {
	pool *pgxpool.Pool
}

func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepositoryPG {
	return &ReviewRepositoryPG{pool: pool}
}

func (r *ReviewRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1;`, id)
	rv, err := scanReview(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return rv, nil
}

// Upsert inserts a review or refreshes the mutable fields of an existing one.
// A reply published on the marketplace side is never erased by a later sync
// page that carries an empty answer.
func (r *ReviewRepositoryPG) Upsert(ctx context.Context, rv *domain.Review) (*domain.Review, error) {
	if rv.ID == "" {
		rv.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx, `
INSERT INTO reviews (id, shop_id, external_id, product_name, product_sku, rating, text, pros, cons, answer_text, created_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (shop_id, external_id) DO UPDATE SET
    product_name = EXCLUDED.product_name,
    product_sku  = EXCLUDED.product_sku,
    rating       = EXCLUDED.rating,
    text         = EXCLUDED.text,
    pros         = EXCLUDED.pros,
    cons         = EXCLUDED.cons,
    answer_text  = CASE WHEN EXCLUDED.answer_text <> '' THEN EXCLUDED.answer_text ELSE reviews.answer_text END,
    updated_at   = now()
RETURNING `+reviewColumns+`;
`, rv.ID, rv.ShopID, rv.ExternalID, rv.ProductName, rv.ProductSKU, rv.Rating, rv.Text, rv.Pros, rv.Cons, rv.AnswerText, rv.CreatedDate)
	stored, err := scanReview(row)
	if err != nil {
		return nil, fmt.Errorf("upsert review: %w", err)
	}
	return stored, nil
}

// ListUnansweredWithoutDrafts returns reviews with no marketplace reply and
// no draft yet, oldest first so backlog drains in arrival order.
func (r *ReviewRepositoryPG) ListUnansweredWithoutDrafts(ctx context.Context, shopID string, limit int) ([]*domain.Review, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+reviewColumns+`
FROM reviews rv
WHERE rv.shop_id = $1
  AND rv.answer_text = ''
  AND NOT EXISTS (
        SELECT 1 FROM drafts d
        WHERE d.subject = $2 AND d.subject_id = rv.id
  )
ORDER BY rv.created_date, rv.id
LIMIT $3;
`, shopID, domain.DraftSubjectReview, limit)
	if err != nil {
		return nil, fmt.Errorf("list undrafted reviews: %w", err)
	}
	defer rows.Close()

	var out []*domain.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *ReviewRepositoryPG) SetAnswered(ctx context.Context, id, text string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE reviews SET answer_text = $2, updated_at = now() WHERE id = $1;
`, id, text)
	if err != nil {
		return fmt.Errorf("set review answered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanReview(row pgx.Row) (*domain.Review, error) {
	var rv domain.Review
	if err := row.Scan(
		&rv.ID, &rv.ShopID, &rv.ExternalID, &rv.ProductName, &rv.ProductSKU, &rv.Rating,
		&rv.Text, &rv.Pros, &rv.Cons, &rv.AnswerText, &rv.CreatedDate, &rv.CreatedAt, &rv.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &rv, nil
}

var _ domain.ReviewRepository = (*ReviewRepositoryPG)(nil)
