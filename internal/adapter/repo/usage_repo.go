package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"replyhub/internal/domain"
)

// UsageRepositoryPG implements domain.UsageRepository.
type UsageRepositoryPG struct {
	pool *pgxpool.Pool
}

func NewUsageRepository(pool *pgxpool.Pool) *UsageRepositoryPG {
	return &UsageRepositoryPG{pool: pool}
}

func (r *UsageRepositoryPG) Record(ctx context.Context, u *domain.AIUsage) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx, `
INSERT INTO ai_usage (id, shop_id, model, operation, prompt_tokens, completion_tokens, response_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at;
`, u.ID, u.ShopID, u.Model, u.Operation, u.PromptTokens, u.CompletionTokens, u.ResponseID).Scan(&u.CreatedAt)
	if err != nil {
		return fmt.Errorf("record ai usage: %w", err)
	}
	return nil
}

var _ domain.UsageRepository = (*UsageRepositoryPG)(nil)
