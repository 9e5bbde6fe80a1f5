// Package booking provides the booking reconciliation bounded context module.
// This file defines the module that encapsulates all booking setup and route registration.
package booking

import (
	"dealroom_backend/internal/events"
	apphttp "dealroom_backend/internal/http"
	leads "dealroom_backend/internal/leads/repository"
	"dealroom_backend/platform/config"
	"dealroom_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ModuleConfig combines the config interfaces the booking module needs.
type ModuleConfig interface {
	config.WebhookConfig
	config.FollowupConfig
}

// Module is the booking bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
	cfg     ModuleConfig
}

// NewModule creates and initializes the booking module with all its dependencies.
// The follow-up canceller is wired afterwards via Service().SetFollowupCanceller
// to break the booking/followup dependency cycle.
func NewModule(pool *pgxpool.Pool, leadReader *leads.Repository, cfg ModuleConfig, eventBus events.Bus, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, leadReader, cfg, eventBus, log)
	handler := NewHandler(service)

	return &Module{
		handler: handler,
		service: service,
		cfg:     cfg,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "booking"
}

// Service exposes the booking service for cross-module wiring.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts booking webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhooks/booking")
	group.GET("/health", m.handler.HandleHealth)
	group.POST("", TokenAuthMiddleware(m.cfg), m.handler.HandleWebhook)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
