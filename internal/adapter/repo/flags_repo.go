package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"replyhub/internal/domain"
)

// FlagsRepositoryPG serves the single-row system_flags table. The row is
// seeded by the migrations, so reads never have to create it.
type FlagsRepositoryPG struct {
	pool *pgxpool.Pool
}

func NewFlagsRepository(pool *pgxpool.Pool) *FlagsRepositoryPG {
	return &FlagsRepositoryPG{pool: pool}
}

func (r *FlagsRepositoryPG) IsKillSwitchOn(ctx context.Context) (bool, error) {
	var on bool
	if err := r.pool.QueryRow(ctx, `SELECT kill_switch FROM system_flags WHERE id = 1;`).Scan(&on); err != nil {
		return false, fmt.Errorf("read kill switch: %w", err)
	}
	return on, nil
}

func (r *FlagsRepositoryPG) SetKillSwitch(ctx context.Context, on bool) error {
	if _, err := r.pool.Exec(ctx, `
UPDATE system_flags SET kill_switch = $1, updated_at = now() WHERE id = 1;
`, on); err != nil {
		return fmt.Errorf("set kill switch: %w", err)
	}
	return nil
}

var _ domain.FlagsRepository = (*FlagsRepositoryPG)(nil)
