// Package people provides the person/lead records bounded context module.
// This file defines the module that encapsulates all people setup and route
// registration.
package people

import (
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/people/handler"
	"leadflow_backend/internal/people/repository"
	"leadflow_backend/internal/people/service"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the people bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	repo    *repository.Repository
	svc     *service.Service
}

// NewModule creates and initializes the people module with all its dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, eventBus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		repo:    repo,
		svc:     svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "people"
}

// Repository exposes the people repository for the ingestion pipeline's
// transactional store.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// Service exposes the people service for cross-module use.
func (m *Module) Service() *service.Service {
	return m.svc
}

// RegisterRoutes mounts people routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	peopleGroup := ctx.Protected.Group("/people")
	m.handler.RegisterRoutes(peopleGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
