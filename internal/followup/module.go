// Package followup provides the follow-up timer bounded context module.
// This file defines the module that encapsulates all follow-up setup and route registration.
package followup

import (
	"dealroom_backend/internal/email"
	"dealroom_backend/internal/events"
	apphttp "dealroom_backend/internal/http"
	leads "dealroom_backend/internal/leads/repository"
	"dealroom_backend/platform/config"
	"dealroom_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ModuleConfig is the configuration surface the follow-up module needs.
type ModuleConfig interface {
	config.FollowupConfig
	config.NotificationConfig
}

// Module is the follow-up bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
	sweeper *Sweeper
}

// NewModule creates and initializes the follow-up module with all its dependencies.
// The booking checker is wired afterwards via SetBookingChecker.
func NewModule(pool *pgxpool.Pool, leadStore *leads.Repository, mailer email.Sender, cfg ModuleConfig, eventBus events.Bus, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, leadStore, cfg, eventBus, log)
	sweeper := NewSweeper(repo, mailer, cfg, eventBus, log)
	handler := NewHandler(service)

	return &Module{
		handler: handler,
		service: service,
		sweeper: sweeper,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "followup"
}

// Service exposes the timer controller for cross-module wiring.
func (m *Module) Service() *Service {
	return m.service
}

// Sweeper exposes the dispatch sweeper for the scheduler worker.
func (m *Module) Sweeper() *Sweeper {
	return m.sweeper
}

// SetBookingChecker wires the booking service into the sweeper and handler.
func (m *Module) SetBookingChecker(bc BookingChecker) {
	m.sweeper.SetBookingChecker(bc)
	m.handler.SetBookingChecker(bc)
}

// RegisterRoutes mounts follow-up routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/followups")
	group.POST("/:leadId/:documentId/start", m.handler.HandleStartTimer)
	group.POST("/:leadId/:documentId/stop", m.handler.HandleStopTimer)
	group.GET("/:leadId/booking-check", m.handler.HandleBookingCheck)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
