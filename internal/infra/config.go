package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment
// variables. It is immutable after load and threaded explicitly through
// constructors; nothing reads process-wide state at runtime.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	AdminToken  string

	MarketplaceBaseURL     string
	MarketplaceChatBaseURL string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string

	// MetricsAddr is the listen address of the worker's metrics and
	// liveness endpoint.
	MetricsAddr string

	// Worker loop.
	WorkerPollInterval time.Duration
	MaxJobsPerTick     int
	BackoffBase        time.Duration
	BackoffMax         time.Duration

	// Scheduler loop.
	AutoSyncEnabled       bool
	CardsSyncEnabled      bool
	SchedulerPollInterval time.Duration
	ReviewSyncInterval    time.Duration
	QuestionsSyncInterval time.Duration
	ChatSyncInterval      time.Duration
	CardsSyncInterval     time.Duration
	SyncOverlap           time.Duration
	DedupWindow           time.Duration
	AutoSyncTake          int
	AutoSyncMaxTotal      int
	CardsPagesPerRun      int
	CardsPageLimit        int

	// Billing.
	CreditsPerDraft   int
	CreditsPerPublish int
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		AdminToken:  os.Getenv("ADMIN_TOKEN"),

		MarketplaceBaseURL:     getEnv("MARKETPLACE_BASE_URL", "https://feedbacks-api.wildberries.ru"),
		MarketplaceChatBaseURL: getEnv("MARKETPLACE_CHAT_BASE_URL", "https://buyer-chat-api.wildberries.ru"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),

		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		MetricsAddr:        getEnv("METRICS_ADDR", ":9090"),

		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 2*time.Second),
		MaxJobsPerTick:     getEnvInt("WORKER_MAX_JOBS_PER_TICK", 10),
		BackoffBase:        getEnvDuration("WORKER_BACKOFF_BASE", 5*time.Second),
		BackoffMax:         getEnvDuration("WORKER_BACKOFF_MAX", 5*time.Minute),

		AutoSyncEnabled:       getEnvBool("AUTO_SYNC_ENABLED", true),
		CardsSyncEnabled:      getEnvBool("CARDS_SYNC_ENABLED", true),
		SchedulerPollInterval: getEnvDuration("SCHEDULER_POLL_INTERVAL", 15*time.Second),
		ReviewSyncInterval:    getEnvDuration("REVIEW_SYNC_INTERVAL", 10*time.Minute),
		QuestionsSyncInterval: getEnvDuration("QUESTIONS_SYNC_INTERVAL", 15*time.Minute),
		ChatSyncInterval:      getEnvDuration("CHAT_SYNC_INTERVAL", 5*time.Minute),
		CardsSyncInterval:     getEnvDuration("CARDS_SYNC_INTERVAL", 6*time.Hour),
		SyncOverlap:           getEnvDuration("SYNC_OVERLAP", 5*time.Minute),
		DedupWindow:           getEnvDuration("JOB_DEDUP_WINDOW", 3*time.Hour),
		AutoSyncTake:          getEnvInt("AUTO_SYNC_TAKE", 200),
		AutoSyncMaxTotal:      getEnvInt("AUTO_SYNC_MAX_TOTAL", 1000),
		CardsPagesPerRun:      getEnvInt("CARDS_SYNC_PAGES_PER_RUN", 5),
		CardsPageLimit:        getEnvInt("CARDS_SYNC_LIMIT", 100),

		CreditsPerDraft:   getEnvInt("CREDITS_PER_DRAFT", 1),
		CreditsPerPublish: getEnvInt("CREDITS_PER_PUBLISH", 0),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
