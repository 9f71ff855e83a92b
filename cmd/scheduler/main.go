package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadflow_backend/internal/classifier"
	"leadflow_backend/internal/email"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/ingest"
	"leadflow_backend/internal/mailbox"
	"leadflow_backend/internal/mailbox/gmail"
	"leadflow_backend/internal/notification"
	"leadflow_backend/internal/people"
	"leadflow_backend/internal/rotation"
	"leadflow_backend/internal/scheduler"
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

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	var sender email.Sender = email.NopSender{}
	if cfg.GetEmailEnabled() {
		sender = email.NewSMTPSender(cfg)
	}

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
	} else {
		log.Warn("CLASSIFIER_API_KEY not configured; mailbox sweeps will be skipped")
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

	notificationModule := notification.New(sender, mailboxModule.Repository(), log)
	notificationModule.RegisterHandlers(eventBus)

	enqueuer, err := scheduler.NewEnqueuer(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic enqueuer", "error", err)
		panic("failed to initialize periodic enqueuer: " + err.Error())
	}
	go enqueuer.Run(ctx)

	var mailboxSweeper scheduler.MailboxSweeper
	if sweeper := ingestModule.Sweeper(); sweeper != nil {
		mailboxSweeper = sweeper
	}

	worker, err := scheduler.NewWorker(cfg, mailboxSweeper, mailboxModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
