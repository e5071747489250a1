package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"replyhub/internal/domain"
)

// ProductCardRepositoryPG implements domain.ProductCardRepository.
type ProductCardRepositoryPG struct {
	pool *pgxpool.Pool
}

func NewProductCardRepository(pool *pgxpool.Pool) *ProductCardRepositoryPG {
	return &ProductCardRepositoryPG{pool: pool}
}

func (r *ProductCardRepositoryPG) Upsert(ctx context.Context, c *domain.ProductCard) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, err := r.pool.Exec(ctx, `
INSERT INTO product_cards (id, shop_id, external_id, name, brand, photo_url)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (shop_id, external_id) DO UPDATE SET
    name       = EXCLUDED.name,
    brand      = EXCLUDED.brand,
    photo_url  = EXCLUDED.photo_url,
    updated_at = now();
`, c.ID, c.ShopID, c.ExternalID, c.Name, c.Brand, c.PhotoURL); err != nil {
		return fmt.Errorf("upsert product card: %w", err)
	}
	return nil
}

var _ domain.ProductCardRepository = (*ProductCardRepositoryPG)(nil)
