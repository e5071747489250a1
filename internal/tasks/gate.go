package tasks

import (
	"context"
	"fmt"

	"replyhub/internal/domain"
)

// ensureAllowed checks the global kill switch and the per-shop flags before
// a costly or irreversible operation. A blocked operation returns an error,
// so the job fails visibly and retries once the flag is cleared, rather than
// silently reporting success.
func (d *Deps) ensureAllowed(ctx context.Context, st *domain.ShopSettings, kind domain.OpKind) error {
	globalOn, err := d.Flags.IsKillSwitchOn(ctx)
	if err != nil {
		return fmt.Errorf("read kill switch: %w", err)
	}
	if globalOn {
		return domain.ErrKillSwitchEnabled
	}
	if st.Ops.Blocks(kind) {
		if st.Ops.KillSwitch {
			return domain.ErrKillSwitchEnabled
		}
		switch kind {
		case domain.OpGeneration:
			return domain.ErrGenerationDisabled
		case domain.OpPublish:
			return domain.ErrPublishingDisabled
		}
	}
	return nil
}
