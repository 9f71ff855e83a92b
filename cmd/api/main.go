package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadflow_backend/internal/classifier"
	"leadflow_backend/internal/email"
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/http/router"
	"leadflow_backend/internal/ingest"
	"leadflow_backend/internal/mailbox"
	"leadflow_backend/internal/mailbox/gmail"
	"leadflow_backend/internal/notification"
	"leadflow_backend/internal/people"
	"leadflow_backend/internal/rotation"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	sender := initEmailSender(cfg, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	peopleModule := people.NewModule(pool, eventBus, val, log)
	rotationModule := rotation.NewModule(pool, val)

	mailClient := gmail.New(
		cfg.GetMailboxAPIBaseURL(),
		cfg.GetMailboxOAuthClientID(),
		cfg.GetMailboxOAuthClientSecret(),
		log,
	)
	mailboxModule := mailbox.NewModule(pool, mailClient, eventBus, val, log)

	var leadClassifier classifier.LeadClassifier
	if cfg.IsClassifierEnabled() {
		leadClassifier = classifier.NewKimi(classifier.Config{
			APIKey:  cfg.GetClassifierAPIKey(),
			BaseURL: cfg.GetClassifierBaseURL(),
			Model:   cfg.GetClassifierModel(),
		}, log)
		log.Info("lead classifier enabled", "model", cfg.GetClassifierModel())
	} else {
		log.Warn("CLASSIFIER_API_KEY not configured; mailbox sweeps disabled")
	}

	ingestModule := ingest.NewModule(
		pool,
		peopleModule.Repository(),
		rotationModule.Repository(),
		mailboxModule.Service(),
		mailboxModule.Repository(),
		mailClient,
		leadClassifier,
		eventBus,
		cfg,
		val,
		log,
	)

	// Notification module subscribes to domain events (not HTTP-facing)
	notificationModule := notification.New(sender, mailboxModule.Repository(), log)
	notificationModule.RegisterHandlers(eventBus)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			peopleModule,
			rotationModule,
			mailboxModule,
			ingestModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initEmailSender(cfg *config.Config, log *logger.Logger) email.Sender {
	if !cfg.GetEmailEnabled() {
		log.Warn("email sending disabled; notifications will be logged only")
		return email.NopSender{}
	}
	log.Info("smtp sender initialized", "host", cfg.GetSMTPHost(), "from", cfg.GetEmailFromAddress())
	return email.NewSMTPSender(cfg)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
