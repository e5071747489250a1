package domain

import (
	"context"
	"time"
)

// EnqueueParams collects the inputs for inserting a new queued job.
// RunAt zero means "eligible now"; MaxAttempts zero means DefaultMaxAttempts.
type EnqueueParams struct {
	Payload     JobPayload
	RunAt       time.Time
	MaxAttempts int
}

// JobFilter narrows admin job listings.
type JobFilter struct {
	Status JobStatus
	Type   JobType
	ShopID string
	Limit  int
	Offset int
}

// JobRepository is the durable queue. Enqueue enforces no uniqueness; the
// scheduler de-duplicates via ExistsPendingForShop.
type JobRepository interface {
	// Enqueue validates the payload and inserts a queued job.
	Enqueue(ctx context.Context, p EnqueueParams) (*Job, error)
	// FetchForWork claims up to limit due queued jobs, ordered by
	// (run_at, id), and flips them to running in the same transaction.
	// Two concurrent claimers never receive the same job.
	FetchForWork(ctx context.Context, limit int) ([]*Job, error)
	// MarkDone transitions running -> done. Terminal states are untouched.
	MarkDone(ctx context.Context, id string) error
	// MarkFailed increments attempts and either requeues with run_at
	// pushed retryIn into the future, or, once attempts reach the budget,
	// transitions to terminal failed with last_error set.
	MarkFailed(ctx context.Context, id string, jobErr string, retryIn time.Duration) error
	// Cancel flips queued/running jobs to cancelled; terminal ids are
	// skipped. Returns how many rows changed.
	Cancel(ctx context.Context, ids []string) (int, error)
	// ExistsPendingForShop reports whether a queued/running job of the
	// given type exists for the shop, created within maxAge.
	ExistsPendingForShop(ctx context.Context, t JobType, shopID string, maxAge time.Duration) (bool, error)
	CountByStatus(ctx context.Context, s JobStatus) (int, error)
	GetByID(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, f JobFilter) ([]*Job, error)
	ListFailed(ctx context.Context, limit int) ([]*Job, error)
	// RetryFailed requeues failed jobs (optionally scoped to a shop),
	// clearing last_error. Returns how many rows changed.
	RetryFailed(ctx context.Context, shopID string, limit int) (int, error)
}

// BillingRepository is the credit ledger contract. The append-only journal
// is the only mutation path; the balance is derived, never overwritten.
type BillingRepository interface {
	GetBalance(ctx context.Context, accountID string) (int, error)
	// ApplyCredits locks the account row, rejects mutations that would
	// drive the balance negative with ErrInsufficientCredits, persists
	// the new balance and appends a ledger row, all in one transaction.
	// Returns the new balance.
	ApplyCredits(ctx context.Context, accountID string, delta int, reason string, meta map[string]any) (int, error)
	// TryCharge is a pre-flight gate: a failed charge returns false
	// instead of an error and leaves the ledger untouched.
	TryCharge(ctx context.Context, accountID string, amount int, reason string, meta map[string]any) (bool, error)
	ListEntries(ctx context.Context, accountID string, limit int) ([]LedgerEntry, error)
}

// FlagsRepository manages the global kill switch row.
type FlagsRepository interface {
	IsKillSwitchOn(ctx context.Context) (bool, error)
	SetKillSwitch(ctx context.Context, on bool) error
}

// ShopRepository serves shops, their settings, and sync watermarks.
type ShopRepository interface {
	GetByID(ctx context.Context, id string) (*Shop, error)
	GetSettings(ctx context.Context, shopID string) (*ShopSettings, error)
	// ListActiveWithSettings returns active, non-frozen shops joined with
	// settings, for scheduler iteration.
	ListActiveWithSettings(ctx context.Context) ([]ShopWithSettings, error)
	TouchReviewSync(ctx context.Context, shopID string, at time.Time) error
	// AdvanceReviewWatermark moves the watermark forward only; calls with
	// an older timestamp are no-ops.
	AdvanceReviewWatermark(ctx context.Context, shopID string, seenAt time.Time) error
	TouchQuestionsSync(ctx context.Context, shopID string, at time.Time) error
	TouchChatSync(ctx context.Context, shopID string, at time.Time, nextMS *int64) error
	TouchCardsSync(ctx context.Context, shopID string, at time.Time) error
	SetOpsFlags(ctx context.Context, shopID string, flags OpsFlags) error
}

// ReviewRepository persists marketplace reviews.
type ReviewRepository interface {
	GetByID(ctx context.Context, id string) (*Review, error)
	// Upsert inserts or refreshes a review keyed by (shop, external id)
	// and returns the stored row.
	Upsert(ctx context.Context, r *Review) (*Review, error)
	// ListUnansweredWithoutDrafts returns reviews eligible for auto-draft.
	ListUnansweredWithoutDrafts(ctx context.Context, shopID string, limit int) ([]*Review, error)
	SetAnswered(ctx context.Context, id, text string) error
}

// QuestionRepository persists marketplace buyer questions.
type QuestionRepository interface {
	GetByID(ctx context.Context, id string) (*Question, error)
	Upsert(ctx context.Context, q *Question) (*Question, error)
	ListUnansweredWithoutDrafts(ctx context.Context, shopID string, limit int) ([]*Question, error)
	SetAnswered(ctx context.Context, id, text string) error
}

// DraftRepository persists AI reply drafts across all subjects.
type DraftRepository interface {
	Create(ctx context.Context, d *Draft) error
	GetByID(ctx context.Context, id string) (*Draft, error)
	LatestForSubject(ctx context.Context, subject DraftSubject, subjectID string) (*Draft, error)
	SetStatus(ctx context.Context, id string, status DraftStatus, at time.Time) error
}

// ChatRepository persists chat sessions and their events.
type ChatRepository interface {
	GetByID(ctx context.Context, id string) (*Chat, error)
	UpsertChat(ctx context.Context, c *Chat) (*Chat, error)
	AddMessage(ctx context.Context, m *ChatMessage) error
	// RecentMessages returns the newest messages for a chat, oldest first.
	RecentMessages(ctx context.Context, chatID string, limit int) ([]ChatMessage, error)
}

// ProductCardRepository persists catalog cards.
type ProductCardRepository interface {
	Upsert(ctx context.Context, c *ProductCard) error
}

// UsageRepository records AI token accounting rows.
type UsageRepository interface {
	Record(ctx context.Context, u *AIUsage) error
}
