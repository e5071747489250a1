package tasks

import (
	"context"
	"fmt"

	"replyhub/internal/ai"
	"replyhub/internal/domain"
	"replyhub/internal/infra"
	"replyhub/internal/marketplace"
	"replyhub/internal/queue"
)

// Deps bundles everything the job handlers need. One value is shared across
// all handlers; every field must be set.
type Deps struct {
	Cfg    *infra.Config
	Logger *infra.Logger

	Jobs      domain.JobRepository
	Shops     domain.ShopRepository
	Reviews   domain.ReviewRepository
	Questions domain.QuestionRepository
	Drafts    domain.DraftRepository
	Chats     domain.ChatRepository
	Cards     domain.ProductCardRepository
	Billing   domain.BillingRepository
	Flags     domain.FlagsRepository
	Usage     domain.UsageRepository

	Market  marketplace.API
	Drafter ai.Drafter
}

// Registry returns the full handler table, one entry per known job type.
func Registry(d *Deps) map[domain.JobType]queue.Handler {
	return map[domain.JobType]queue.Handler{
		domain.JobTypeSyncReviews:           d.handleSyncReviews,
		domain.JobTypeSyncQuestions:         d.handleSyncQuestions,
		domain.JobTypeSyncChats:             d.handleSyncChats,
		domain.JobTypeSyncChatEvents:        d.handleSyncChatEvents,
		domain.JobTypeSyncProductCards:      d.handleSyncProductCards,
		domain.JobTypeGenerateReviewDraft:   d.handleGenerateReviewDraft,
		domain.JobTypePublishReviewAnswer:   d.handlePublishReviewAnswer,
		domain.JobTypeGenerateQuestionDraft: d.handleGenerateQuestionDraft,
		domain.JobTypePublishQuestionAnswer: d.handlePublishQuestionAnswer,
		domain.JobTypeGenerateChatDraft:     d.handleGenerateChatDraft,
		domain.JobTypeSendChatMessage:       d.handleSendChatMessage,
	}
}

// shopContext loads the shop and its settings in one go, which every handler
// starts with.
func (d *Deps) shopContext(ctx context.Context, shopID string) (*domain.Shop, *domain.ShopSettings, error) {
	shop, err := d.Shops.GetByID(ctx, shopID)
	if err != nil {
		return nil, nil, fmt.Errorf("load shop %s: %w", shopID, err)
	}
	if !shop.IsActive || shop.IsFrozen {
		return nil, nil, fmt.Errorf("shop %s: %w", shopID, domain.ErrAccountInactive)
	}
	st, err := d.Shops.GetSettings(ctx, shopID)
	if err != nil {
		return nil, nil, fmt.Errorf("load settings %s: %w", shopID, err)
	}
	return shop, st, nil
}

func decode[T domain.JobPayload](job *domain.Job) (*T, error) {
	p, err := domain.DecodePayload(job.Type, job.Payload)
	if err != nil {
		return nil, err
	}
	typed, ok := any(p).(*T)
	if !ok {
		return nil, fmt.Errorf("unexpected payload type %T for %s", p, job.Type)
	}
	return typed, nil
}
