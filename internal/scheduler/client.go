package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Enqueuer registers the periodic sweep tasks with asynq's scheduler so
// they are enqueued on their configured intervals.
type Enqueuer struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewEnqueuer(cfg config.SchedulerConfig, log *logger.Logger) (*Enqueuer, error) {
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

	mailboxInterval := cfg.GetMailboxSweepInterval()
	if mailboxInterval <= 0 {
		mailboxInterval = 5 * time.Minute
	}
	tokenInterval := cfg.GetTokenSweepInterval()
	if tokenInterval <= 0 {
		tokenInterval = 30 * time.Minute
	}

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{})

	if _, err := scheduler.Register(
		fmt.Sprintf("@every %s", mailboxInterval),
		NewMailboxSweepTask(),
		asynq.Queue(queue),
	); err != nil {
		return nil, fmt.Errorf("register mailbox sweep: %w", err)
	}
	if _, err := scheduler.Register(
		fmt.Sprintf("@every %s", tokenInterval),
		NewTokenSweepTask(),
		asynq.Queue(queue),
	); err != nil {
		return nil, fmt.Errorf("register token sweep: %w", err)
	}

	log.Info("periodic sweeps registered",
		"mailboxInterval", mailboxInterval.String(),
		"tokenInterval", tokenInterval.String(),
	)

	return &Enqueuer{scheduler: scheduler, log: log}, nil
}

// Run starts the scheduler and blocks until the context is cancelled.
func (e *Enqueuer) Run(ctx context.Context) {
	if e == nil || e.scheduler == nil {
		return
	}

	go func() {
		<-ctx.Done()
		e.scheduler.Shutdown()
	}()

	if err := e.scheduler.Run(); err != nil {
		e.log.Error("scheduler stopped", "error", err)
	}
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
