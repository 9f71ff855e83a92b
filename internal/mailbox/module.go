package mailbox

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"
)

// Module is the mailbox token bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	repo    *Repository
	svc     *Service
	client  Client
}

// NewModule creates and initializes the mailbox module. The provider client
// is injected so cmd wiring decides which mail provider backs it.
func NewModule(pool *pgxpool.Pool, client Client, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	svc := NewService(repo, client, eventBus, log)
	h := NewHandler(svc, val)

	return &Module{
		handler: h,
		repo:    repo,
		svc:     svc,
		client:  client,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "mailbox"
}

// Repository exposes the token repository for the sweep orchestrator.
func (m *Module) Repository() *Repository {
	return m.repo
}

// Service exposes the token lifecycle service for the scheduler worker.
func (m *Module) Service() *Service {
	return m.svc
}

// Client exposes the provider client for the sweep orchestrator.
func (m *Module) Client() Client {
	return m.client
}

// RegisterRoutes mounts token admin routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	tokens := ctx.Admin.Group("/tokens")
	m.handler.RegisterRoutes(tokens)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
