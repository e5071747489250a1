package queue

import (
	"context"
	"time"

	"replyhub/internal/domain"
	"replyhub/internal/infra"
	"replyhub/internal/telemetry"
)

// Scheduler turns per-shop sync intervals into queued jobs. Every tick is a
// full pass over active shops; idempotency comes from the pending-job dedup
// check, not from tick bookkeeping, so N replicas can run the same loop.
type Scheduler struct {
	cfg    *infra.Config
	jobs   domain.JobRepository
	shops  domain.ShopRepository
	logger *infra.Logger
	now    func() time.Time
}

func NewScheduler(cfg *infra.Config, jobs domain.JobRepository, shops domain.ShopRepository, logger *infra.Logger) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		jobs:   jobs,
		shops:  shops,
		logger: logger,
		now:    time.Now,
	}
}

// Run starts the periodic loop until context cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info().
		Dur("poll_interval", s.cfg.SchedulerPollInterval).
		Bool("auto_sync_enabled", s.cfg.AutoSyncEnabled).
		Msg("scheduler started")

	ticker := time.NewTicker(s.cfg.SchedulerPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick enqueues the sync jobs that are due right now. Returns how many jobs
// were enqueued.
func (s *Scheduler) Tick(ctx context.Context) int {
	if !s.cfg.AutoSyncEnabled {
		return 0
	}
	shops, err := s.shops.ListActiveWithSettings(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list shops for scheduling")
		return 0
	}

	enqueued := 0
	for i := range shops {
		enqueued += s.scheduleShop(ctx, &shops[i])
	}
	return enqueued
}

func (s *Scheduler) scheduleShop(ctx context.Context, sw *domain.ShopWithSettings) int {
	st := &sw.Settings
	if !st.AutoSync || st.Ops.KillSwitch {
		return 0
	}
	now := s.now()
	enqueued := 0

	if due(st.LastReviewSyncAt, s.cfg.ReviewSyncInterval, now) {
		if s.enqueueOnce(ctx, s.reviewSyncPayload(st)) {
			enqueued++
		}
	}
	if due(st.LastQuestionsSyncAt, s.cfg.QuestionsSyncInterval, now) {
		unanswered := false
		if s.enqueueOnce(ctx, domain.SyncQuestionsPayload{
			ShopID:     st.ShopID,
			IsAnswered: &unanswered,
			Take:       s.cfg.AutoSyncTake,
		}) {
			enqueued++
		}
	}
	if st.ChatEnabled && due(st.LastChatSyncAt, s.cfg.ChatSyncInterval, now) {
		if s.enqueueOnce(ctx, domain.SyncChatsPayload{ShopID: st.ShopID}) {
			enqueued++
		}
		if s.enqueueOnce(ctx, domain.SyncChatEventsPayload{ShopID: st.ShopID}) {
			enqueued++
		}
	}
	if s.cfg.CardsSyncEnabled && due(st.LastCardsSyncAt, s.cfg.CardsSyncInterval, now) {
		if s.enqueueOnce(ctx, domain.SyncProductCardsPayload{
			ShopID: st.ShopID,
			Pages:  s.cfg.CardsPagesPerRun,
			Limit:  s.cfg.CardsPageLimit,
		}) {
			enqueued++
		}
	}
	return enqueued
}

// reviewSyncPayload builds the incremental fetch window: from the shop
// watermark minus a small overlap, so marketplace-side ordering wobble near
// the boundary cannot lose reviews. First sync has no window at all.
func (s *Scheduler) reviewSyncPayload(st *domain.ShopSettings) domain.SyncReviewsPayload {
	unanswered := false
	p := domain.SyncReviewsPayload{
		ShopID:     st.ShopID,
		IsAnswered: &unanswered,
		Take:       s.cfg.AutoSyncTake,
		Order:      "dateAsc",
		MaxTotal:   s.cfg.AutoSyncMaxTotal,
	}
	if st.LastReviewSeenAt != nil {
		from := st.LastReviewSeenAt.Add(-s.cfg.SyncOverlap).Unix()
		p.DateFromUnix = &from
	}
	return p
}

// enqueueOnce inserts the job unless an equivalent one is already pending.
func (s *Scheduler) enqueueOnce(ctx context.Context, p domain.JobPayload) bool {
	t := p.JobType()
	shopID := shopIDOf(p)
	exists, err := s.jobs.ExistsPendingForShop(ctx, t, shopID, s.cfg.DedupWindow)
	if err != nil {
		s.logger.Error().Err(err).Str("job_type", string(t)).Str("shop_id", shopID).Msg("dedup check")
		return false
	}
	if exists {
		return false
	}
	if _, err := s.jobs.Enqueue(ctx, domain.EnqueueParams{Payload: p}); err != nil {
		s.logger.Error().Err(err).Str("job_type", string(t)).Str("shop_id", shopID).Msg("enqueue sync job")
		return false
	}
	telemetry.SchedulerEnqueue.WithLabelValues(string(t)).Inc()
	telemetry.JobsEnqueued.WithLabelValues(string(t)).Inc()
	s.logger.Debug().Str("job_type", string(t)).Str("shop_id", shopID).Msg("sync job enqueued")
	return true
}

func shopIDOf(p domain.JobPayload) string {
	switch v := p.(type) {
	case domain.SyncReviewsPayload:
		return v.ShopID
	case domain.SyncQuestionsPayload:
		return v.ShopID
	case domain.SyncChatsPayload:
		return v.ShopID
	case domain.SyncChatEventsPayload:
		return v.ShopID
	case domain.SyncProductCardsPayload:
		return v.ShopID
	default:
		return ""
	}
}

func due(last *time.Time, interval time.Duration, now time.Time) bool {
	if last == nil {
		return true
	}
	return now.Sub(*last) >= interval
}
