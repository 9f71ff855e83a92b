package ingest

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"leadflow_backend/internal/classifier"
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/mailbox"
	peoplerepo "leadflow_backend/internal/people/repository"
	"leadflow_backend/internal/rotation"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"
)

// ModuleConfig narrows the configuration the ingest module consumes.
type ModuleConfig interface {
	config.IngestConfig
	config.MailboxConfig
}

// Module is the ingestion bounded context module implementing http.Module.
type Module struct {
	handler       *Handler
	pipeline      *Pipeline
	sweeper       *Sweeper
	webhookSecret string
	submitSecret  string
}

// NewModule wires the ingestion pipeline. The classifier may be nil when
// no API key is configured; mailbox sweeps are then disabled while the
// webhook, pixel and direct submission surfaces keep working.
func NewModule(
	pool *pgxpool.Pool,
	people *peoplerepo.Repository,
	rot *rotation.Repository,
	tokens *mailbox.Service,
	leases *mailbox.Repository,
	client mailbox.Client,
	cls classifier.LeadClassifier,
	eventBus events.Bus,
	cfg ModuleConfig,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	ledger := NewLedger(pool)
	units := NewUnits(pool, people, rot, ledger)
	pipeline := NewPipeline(units, NewNormalizer(cfg), NewResolver(cfg, log), eventBus, log)

	var sweeper *Sweeper
	if cls != nil {
		sweeper = NewSweeper(tokens, leases, client, cls, pipeline, cfg, log)
	}

	return &Module{
		handler:       NewHandler(pipeline, sweeper, val, log),
		pipeline:      pipeline,
		sweeper:       sweeper,
		webhookSecret: cfg.GetWebhookSigningSecret(),
		submitSecret:  cfg.GetSubmitSharedSecret(),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "ingest"
}

// Pipeline exposes the pipeline for the scheduler worker.
func (m *Module) Pipeline() *Pipeline {
	return m.pipeline
}

// Sweeper exposes the mailbox sweeper for the scheduler worker; nil when
// the classifier is disabled.
func (m *Module) Sweeper() *Sweeper {
	return m.sweeper
}

// RegisterRoutes mounts the ingestion surface on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	rateLimit := ctx.IngestRateLimiter.RateLimit()

	webhook := ctx.V1.Group("/webhook", rateLimit, SignatureMiddleware(m.webhookSecret))
	webhook.POST("/leads", m.handler.Webhook)

	track := ctx.V1.Group("/track", rateLimit)
	track.GET("/pixel.gif", m.handler.Pixel)

	leads := ctx.V1.Group("/leads", rateLimit, SharedSecretMiddleware(m.submitSecret))
	leads.POST("/submit", m.handler.Submit)

	ctx.Admin.POST("/ingest/sweep", m.handler.SweepMailboxes)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
