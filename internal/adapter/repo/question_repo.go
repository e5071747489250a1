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

const questionColumns = `id, shop_id, external_id, product_name, text, answer_text, created_date, created_at, updated_at`

// QuestionRepositoryPG implements domain.QuestionRepository.
type QuestionRepositoryPG struct {
	pool *pgxpool.Pool
}

func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepositoryPG {
	return &QuestionRepositoryPG{pool: pool}
}

func (r *QuestionRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Question, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1;`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

func (r *QuestionRepositoryPG) Upsert(ctx context.Context, q *domain.Question) (*domain.Question, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx, `
INSERT INTO questions (id, shop_id, external_id, product_name, text, answer_text, created_date)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (shop_id, external_id) DO UPDATE SET
    product_name = EXCLUDED.product_name,
    text         = EXCLUDED.text,
    answer_text  = CASE WHEN EXCLUDED.answer_text <> '' THEN EXCLUDED.answer_text ELSE questions.answer_text END,
    updated_at   = now()
RETURNING `+questionColumns+`;
`, q.ID, q.ShopID, q.ExternalID, q.ProductName, q.Text, q.AnswerText, q.CreatedDate)
	stored, err := scanQuestion(row)
	if err != nil {
		return nil, fmt.Errorf("upsert question: %w", err)
	}
	return stored, nil
}

func (r *QuestionRepositoryPG) ListUnansweredWithoutDrafts(ctx context.Context, shopID string, limit int) ([]*domain.Question, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+questionColumns+`
FROM questions q
WHERE q.shop_id = $1
  AND q.answer_text = ''
  AND NOT EXISTS (
        SELECT 1 FROM drafts d
        WHERE d.subject = $2 AND d.subject_id = q.id
  )
ORDER BY q.created_date, q.id
LIMIT $3;
`, shopID, domain.DraftSubjectQuestion, limit)
	if err != nil {
		return nil, fmt.Errorf("list undrafted questions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *QuestionRepositoryPG) SetAnswered(ctx context.Context, id, text string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE questions SET answer_text = $2, updated_at = now() WHERE id = $1;
`, id, text)
	if err != nil {
		return fmt.Errorf("set question answered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanQuestion(row pgx.Row) (*domain.Question, error) {
	var q domain.Question
	if err := row.Scan(
		&q.ID, &q.ShopID, &q.ExternalID, &q.ProductName,
		&q.Text, &q.AnswerText, &q.CreatedDate, &q.CreatedAt, &q.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &q, nil
}

var _ domain.QuestionRepository = (*QuestionRepositoryPG)(nil)
