// Package app wires every domain service, the job engine, and the HTTP
// layer together from a loaded config.Config. It is the single composition
// root; nothing outside of it constructs a domain service directly.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/auth"
	"github.com/taskwarden/taskwarden/internal/app/services/achievements"
	"github.com/taskwarden/taskwarden/internal/app/services/ai"
	"github.com/taskwarden/taskwarden/internal/app/services/credits"
	"github.com/taskwarden/taskwarden/internal/app/services/events"
	"github.com/taskwarden/taskwarden/internal/app/services/idempotency"
	"github.com/taskwarden/taskwarden/internal/app/services/jobs"
	"github.com/taskwarden/taskwarden/internal/app/services/push"
	"github.com/taskwarden/taskwarden/internal/app/services/recovery"
	"github.com/taskwarden/taskwarden/internal/app/services/reminders"
	"github.com/taskwarden/taskwarden/internal/app/services/subscriptions"
	"github.com/taskwarden/taskwarden/internal/app/services/tasks"
	"github.com/taskwarden/taskwarden/internal/app/storage"
	"github.com/taskwarden/taskwarden/internal/app/storage/memory"
	"github.com/taskwarden/taskwarden/internal/app/storage/postgres"
	"github.com/taskwarden/taskwarden/internal/app/system"
	"github.com/taskwarden/taskwarden/internal/config"
	"github.com/taskwarden/taskwarden/internal/platform/cache"
	"github.com/taskwarden/taskwarden/internal/platform/database"
	"github.com/taskwarden/taskwarden/internal/platform/migrations"
	"github.com/taskwarden/taskwarden/pkg/logger"
)

// Application holds every long-lived dependency the HTTP layer and the job
// engine are built from. Entrypoints in cmd/ construct one Application and
// register whichever of its services it needs with a system.Manager.
type Application struct {
	Config  *config.Config
	Log     *logger.Logger
	DB      *sql.DB
	Storage *storage.Storage
	Cache   cache.Cache

	Bus *events.Bus

	Tokens        *auth.TokenManager
	RefreshTokens *auth.RefreshService
	Identity      auth.IdentityProvider

	Achievements  *achievements.Service
	Credits       *credits.Service
	Recovery      *recovery.Service
	Reminders     *reminders.Service
	Tasks         *tasks.Service
	Subscriptions *subscriptions.Service
	AI            *ai.Service
	Idempotency   *idempotency.Service

	JobRegistry *jobs.Registry
	Worker      *jobs.Worker
	Scheduler   *jobs.Scheduler

	// Manager is an empty lifecycle coordinator; each cmd/ entrypoint
	// registers the system.Service values relevant to its own process
	// (the HTTP server in apiserver, the worker in worker, ...) before
	// calling Manager.Start.
	Manager *system.Manager
}

// New builds an Application from cfg: opens (and migrates) the database if
// DatabaseURL is set, otherwise falls back to the in-memory store; connects
// Redis if REDIS_URL is set; and wires every domain service in dependency
// order.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.New(logger.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: "stdout"})

	var (
		db    *sql.DB
		store *storage.Storage
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := migrations.Apply(ctx, db); err != nil {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		store = postgres.NewStorage(db)
	} else {
		log.Warn("DATABASE_URL not set, running against the in-memory store")
		store = memory.New()
	}

	var redisCache cache.Cache
	if cfg.RedisURL != "" {
		r, err := cache.NewRedis(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		redisCache = r
	}

	key, err := auth.LoadOrGenerateKeyPair(cfg.JWTKeyDir)
	if err != nil {
		return nil, fmt.Errorf("load or generate signing key: %w", err)
	}
	tokens := auth.NewTokenManager(key, "taskwarden", cfg.JWTAccessTokenTTL)
	refreshTokens := auth.NewRefreshService(store.RefreshTokens, cfg.JWTRefreshTokenTTL)
	identity := auth.NewOIDCProvider(googleJWKSURL, cfg.OAuthClientID, cfg.OAuthIssuers)

	bus := events.New(log)

	achievementsSvc := achievements.New(store.Achievements, bus, log)
	creditsSvc := credits.New(store.Credits, cfg.KickstartCreditAmount, cfg.DailyCreditAmount, cfg.SubscriptionCarryoverCap, cfg.MonthlyPurchaseCap)
	recoverySvc := recovery.New(store.Tasks, store.Tombstones, bus, cfg.TombstoneMaxPerUser, cfg.TombstoneRetention)

	pusher := push.NewHTTPPusher(10 * time.Second)
	remindersSvc := reminders.New(store.Reminders, store.Notifications, pusher, bus, log)

	tasksSvc := tasks.New(
		store.Tasks,
		store.Subtasks,
		store.Templates,
		store.Notes,
		achievementsSvc,
		recoverySvc,
		remindersSvc,
		bus,
		tasks.Limits{
			FreeTaskMax:    cfg.FreeTaskMax,
			ProTaskMax:     cfg.ProTaskMax,
			FreeNoteMax:    cfg.FreeNoteMax,
			ProNoteMax:     cfg.ProNoteMax,
			FreeSubtaskMax: cfg.FreeSubtaskMax,
			ProSubtaskMax:  cfg.ProSubtaskMax,
		},
	)

	subscriptionsSvc := subscriptions.New(store.Subscriptions, store.Users, store.Notifications, creditsSvc, bus, log)

	vendor := ai.NewHTTPVendor(cfg.AIVendorBaseURL, cfg.AIVendorAPIKey, cfg.AIChatTimeout)
	aiSvc := ai.New(vendor, creditsSvc, tasksSvc, store.Notes, bus, ai.Config{
		ChatTimeout:                   cfg.AIChatTimeout,
		TranscriptionTimeout:          cfg.AITranscriptionTimeout,
		TranscriptionMaxSeconds:       cfg.TranscriptionMaxSeconds,
		PerTaskWarnAt:                 cfg.AIPerTaskWarnAt,
		PerTaskHardCapAt:              cfg.AIPerTaskHardCapAt,
		CreditsPerOperation:           cfg.CreditsPerAIOperation,
		CreditsPerTranscriptionMinute: cfg.CreditsPerTranscriptionMinute,
	})

	idempotencySvc := idempotency.New(store.Idempotency, cfg.IdempotencyKeyTTL)

	registry := jobs.NewRegistry()
	jobs.RegisterStandardHandlers(registry, jobs.Deps{
		Users:             store.Users,
		Templates:         store.Templates,
		Tasks:             tasksSvc,
		Reminders:         remindersSvc,
		Achievements:      achievementsSvc,
		Credits:           creditsSvc,
		Subscriptions:     subscriptionsSvc,
		Activity:          store.Activity,
		Log:               log,
		ReminderBatchSize: cfg.JobBatchSize,
		ActivityRetention: cfg.ActivityLogRetention,
	})
	worker := jobs.NewWorker(store.Jobs, registry, log, jobs.Config{
		PollInterval:   cfg.JobPollInterval,
		BatchSize:      cfg.JobBatchSize,
		StaleLockAfter: cfg.JobStaleLockAfter,
		RetryBackoff:   cfg.JobRetryBackoff,
	})
	scheduler := jobs.NewScheduler(store.Jobs, store.Templates, log, cfg.JobMaxAttempts)

	return &Application{
		Config:  cfg,
		Log:     log,
		DB:      db,
		Storage: store,
		Cache:   redisCache,

		Bus: bus,

		Tokens:        tokens,
		RefreshTokens: refreshTokens,
		Identity:      identity,

		Achievements:  achievementsSvc,
		Credits:       creditsSvc,
		Recovery:      recoverySvc,
		Reminders:     remindersSvc,
		Tasks:         tasksSvc,
		Subscriptions: subscriptionsSvc,
		AI:            aiSvc,
		Idempotency:   idempotencySvc,

		JobRegistry: registry,
		Worker:      worker,
		Scheduler:   scheduler,

		Manager: system.NewManager(),
	}, nil
}

// googleJWKSURL is Google's well-known OIDC signing key set, the only
// external identity provider currently supported.
const googleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

// Close releases the database connection, if one was opened.
func (a *Application) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
