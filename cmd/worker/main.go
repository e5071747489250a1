package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"replyhub/internal/adapter/repo"
	"replyhub/internal/ai"
	"replyhub/internal/infra"
	"replyhub/internal/marketplace"
	"replyhub/internal/queue"
	"replyhub/internal/tasks"
	"replyhub/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	if err := infra.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("worker: migrations failed")
	}

	market := marketplace.NewClient(marketplace.Options{
		BaseURL:     cfg.MarketplaceBaseURL,
		ChatBaseURL: cfg.MarketplaceChatBaseURL,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		Logger:      &logger,
	})
	aiClient, err := ai.NewClient(ai.Options{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: ai client configuration failed")
	}

	jobs := repo.NewJobRepository(pool)
	shops := repo.NewShopRepository(pool)
	deps := &tasks.Deps{
		Cfg:       cfg,
		Logger:    &logger,
		Jobs:      jobs,
		Shops:     shops,
		Reviews:   repo.NewReviewRepository(pool),
		Questions: repo.NewQuestionRepository(pool),
		Drafts:    repo.NewDraftRepository(pool),
		Chats:     repo.NewChatRepository(pool),
		Cards:     repo.NewProductCardRepository(pool),
		Billing:   repo.NewBillingRepository(pool),
		Flags:     repo.NewFlagsRepository(pool),
		Usage:     repo.NewUsageRepository(pool),
		Market:    market,
		Drafter:   ai.NewService(aiClient),
	}

	worker := queue.NewWorker(cfg, jobs, &logger)
	worker.RegisterAll(tasks.Registry(deps))
	scheduler := queue.NewScheduler(cfg, jobs, shops, &logger)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: telemetry.Mux()}
	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("worker metrics listening")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("worker metrics server stopped")
		}
	}()

	errCh := make(chan error, 2)
	go func() { errCh <- worker.Run(ctx) }()
	go func() { errCh <- scheduler.Run(ctx) }()

	err = <-errCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker stopped")
}
