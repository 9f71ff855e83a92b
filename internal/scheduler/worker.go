package scheduler

import (
	"context"
	"fmt"

	"leadflow_backend/internal/ingest"
	"leadflow_backend/internal/mailbox"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// MailboxSweeper drains registered mailboxes through the ingestion pipeline.
type MailboxSweeper interface {
	Sweep(ctx context.Context) (ingest.SweepReport, error)
}

// TokenSweeper refreshes or retires stored mailbox credentials.
type TokenSweeper interface {
	Sweep(ctx context.Context) (mailbox.SweepResult, error)
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	mailboxes MailboxSweeper
	tokens    TokenSweeper
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, mailboxes MailboxSweeper, tokens TokenSweeper, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		mailboxes: mailboxes,
		tokens:    tokens,
		log:       log,
	}

	mux.HandleFunc(TaskMailboxSweep, w.handleMailboxSweep)
	mux.HandleFunc(TaskTokenSweep, w.handleTokenSweep)

	return w, nil
}

func (w *Worker) handleMailboxSweep(ctx context.Context, _ *asynq.Task) error {
	if w.mailboxes == nil {
		w.log.Debug("mailbox sweeper not configured, sweep skipped")
		return nil
	}

	report, err := w.mailboxes.Sweep(ctx)
	if err != nil {
		w.log.Error("mailbox sweep failed", "error", err)
		return err
	}

	w.log.Info("mailbox sweep completed",
		"mailboxes", len(report.PerSource),
		"processed", report.TotalProcessed,
	)
	return nil
}

func (w *Worker) handleTokenSweep(ctx context.Context, _ *asynq.Task) error {
	result, err := w.tokens.Sweep(ctx)
	if err != nil {
		w.log.Error("token sweep failed", "error", err)
		return err
	}

	w.log.Info("token sweep completed",
		"processed", result.Processed,
		"refreshed", result.Refreshed,
		"deactivated", result.Deactivated,
	)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
