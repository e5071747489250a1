package queue

import (
	"context"
	"testing"
	"time"

	"replyhub/internal/domain"
	"replyhub/internal/infra"
)

// stubShopRepo serves a fixed shop list; only the methods the scheduler
// touches are live.
type stubShopRepo struct {
	domain.ShopRepository
	shops []domain.ShopWithSettings
}

func (s *stubShopRepo) ListActiveWithSettings(ctx context.Context) ([]domain.ShopWithSettings, error) {
	return s.shops, nil
}

func schedulerConfig() *infra.Config {
	return &infra.Config{
		AutoSyncEnabled:       true,
		CardsSyncEnabled:      true,
		SchedulerPollInterval: 10 * time.Millisecond,
		ReviewSyncInterval:    10 * time.Minute,
		QuestionsSyncInterval: 15 * time.Minute,
		ChatSyncInterval:      5 * time.Minute,
		CardsSyncInterval:     6 * time.Hour,
		SyncOverlap:           5 * time.Minute,
		DedupWindow:           3 * time.Hour,
		AutoSyncTake:          200,
		AutoSyncMaxTotal:      1000,
		CardsPagesPerRun:      5,
		CardsPageLimit:        100,
	}
}

func shopWithSettings(shopID string) domain.ShopWithSettings {
	return domain.ShopWithSettings{
		Shop: domain.Shop{ID: shopID, IsActive: true},
		Settings: domain.ShopSettings{
			ShopID:      shopID,
			AutoSync:    true,
			ChatEnabled: true,
		},
	}
}

func TestSchedulerEnqueuesAllDueStreams(t *testing.T) {
	repo := newMemJobRepo()
	shops := &stubShopRepo{shops: []domain.ShopWithSettings{shopWithSettings("shop-1")}}
	s := NewScheduler(schedulerConfig(), repo, shops, testLogger())

	n := s.Tick(context.Background())
	// reviews, questions, chats, chat events, cards
	if n != 5 {
		t.Fatalf("Tick enqueued %d jobs, want 5", n)
	}
	for _, jt := range []domain.JobType{
		domain.JobTypeSyncReviews,
		domain.JobTypeSyncQuestions,
		domain.JobTypeSyncChats,
		domain.JobTypeSyncChatEvents,
		domain.JobTypeSyncProductCards,
	} {
		jobs, _ := repo.List(context.Background(), domain.JobFilter{Type: jt})
		if len(jobs) != 1 {
			t.Fatalf("%s: %d jobs enqueued, want 1", jt, len(jobs))
		}
	}
}

func TestSchedulerDedupAgainstPendingJobs(t *testing.T) {
	repo := newMemJobRepo()
	shops := &stubShopRepo{shops: []domain.ShopWithSettings{shopWithSettings("shop-1")}}
	s := NewScheduler(schedulerConfig(), repo, shops, testLogger())

	first := s.Tick(context.Background())
	if first == 0 {
		t.Fatal("first tick enqueued nothing")
	}
	// Nothing was claimed or finished, so a second tick must be a no-op.
	if again := s.Tick(context.Background()); again != 0 {
		t.Fatalf("second tick enqueued %d jobs, want 0", again)
	}
	jobs, _ := repo.List(context.Background(), domain.JobFilter{Type: domain.JobTypeSyncReviews})
	if len(jobs) != 1 {
		t.Fatalf("review sync jobs = %d, want 1", len(jobs))
	}
}

func TestSchedulerHonorsIntervals(t *testing.T) {
	repo := newMemJobRepo()
	now := time.Now()
	recent := now.Add(-time.Minute)
	stale := now.Add(-time.Hour)

	sw := shopWithSettings("shop-1")
	sw.Settings.LastReviewSyncAt = &stale   // 1h > 10m: due
	sw.Settings.LastQuestionsSyncAt = &recent // 1m < 15m: not due
	sw.Settings.LastChatSyncAt = &recent      // 1m < 5m: not due
	sw.Settings.LastCardsSyncAt = &stale      // 1h < 6h: not due
	shops := &stubShopRepo{shops: []domain.ShopWithSettings{sw}}
	s := NewScheduler(schedulerConfig(), repo, shops, testLogger())
	s.now = func() time.Time { return now }

	if n := s.Tick(context.Background()); n != 1 {
		t.Fatalf("Tick enqueued %d jobs, want 1 (reviews only)", n)
	}
	jobs, _ := repo.List(context.Background(), domain.JobFilter{})
	if len(jobs) != 1 || jobs[0].Type != domain.JobTypeSyncReviews {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
}

func TestSchedulerReviewWindowFromWatermark(t *testing.T) {
	repo := newMemJobRepo()
	now := time.Now()
	seen := now.Add(-2 * time.Hour)
	sw := shopWithSettings("shop-1")
	sw.Settings.LastReviewSeenAt = &seen
	shops := &stubShopRepo{shops: []domain.ShopWithSettings{sw}}
	cfg := schedulerConfig()
	s := NewScheduler(cfg, repo, shops, testLogger())
	s.now = func() time.Time { return now }

	s.Tick(context.Background())

	jobs, _ := repo.List(context.Background(), domain.JobFilter{Type: domain.JobTypeSyncReviews})
	if len(jobs) != 1 {
		t.Fatalf("review sync jobs = %d, want 1", len(jobs))
	}
	p, err := domain.DecodePayload(domain.JobTypeSyncReviews, jobs[0].Payload)
	if err != nil {
		t.Fatalf("DecodePayload returned error: %v", err)
	}
	sp := p.(*domain.SyncReviewsPayload)
	if sp.DateFromUnix == nil {
		t.Fatal("DateFromUnix not set despite watermark")
	}
	want := seen.Add(-cfg.SyncOverlap).Unix()
	if *sp.DateFromUnix != want {
		t.Fatalf("DateFromUnix = %d, want %d (watermark minus overlap)", *sp.DateFromUnix, want)
	}
}

func TestSchedulerFirstSyncHasNoWindow(t *testing.T) {
	repo := newMemJobRepo()
	shops := &stubShopRepo{shops: []domain.ShopWithSettings{shopWithSettings("shop-1")}}
	s := NewScheduler(schedulerConfig(), repo, shops, testLogger())

	s.Tick(context.Background())

	jobs, _ := repo.List(context.Background(), domain.JobFilter{Type: domain.JobTypeSyncReviews})
	p, err := domain.DecodePayload(domain.JobTypeSyncReviews, jobs[0].Payload)
	if err != nil {
		t.Fatalf("DecodePayload returned error: %v", err)
	}
	if p.(*domain.SyncReviewsPayload).DateFromUnix != nil {
		t.Fatal("first sync should have no lower bound")
	}
}

func TestSchedulerSkipsDisabledShops(t *testing.T) {
	repo := newMemJobRepo()

	off := shopWithSettings("shop-off")
	off.Settings.AutoSync = false
	killed := shopWithSettings("shop-killed")
	killed.Settings.Ops.KillSwitch = true
	noChat := shopWithSettings("shop-nochat")
	noChat.Settings.ChatEnabled = false

	shops := &stubShopRepo{shops: []domain.ShopWithSettings{off, killed, noChat}}
	s := NewScheduler(schedulerConfig(), repo, shops, testLogger())

	n := s.Tick(context.Background())
	// Only shop-nochat contributes: reviews, questions, cards.
	if n != 3 {
		t.Fatalf("Tick enqueued %d jobs, want 3", n)
	}
	for _, jt := range []domain.JobType{domain.JobTypeSyncChats, domain.JobTypeSyncChatEvents} {
		jobs, _ := repo.List(context.Background(), domain.JobFilter{Type: jt})
		if len(jobs) != 0 {
			t.Fatalf("%s enqueued for chat-disabled shop", jt)
		}
	}
}

func TestSchedulerGlobalSwitchOff(t *testing.T) {
	repo := newMemJobRepo()
	shops := &stubShopRepo{shops: []domain.ShopWithSettings{shopWithSettings("shop-1")}}
	cfg := schedulerConfig()
	cfg.AutoSyncEnabled = false
	s := NewScheduler(cfg, repo, shops, testLogger())

	if n := s.Tick(context.Background()); n != 0 {
		t.Fatalf("Tick enqueued %d jobs with automation off, want 0", n)
	}
}
