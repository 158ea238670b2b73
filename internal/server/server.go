// Package server exposes the controller's HTTP API: machine inventory and
// reservation endpoints guarded by a bearer token, plus the legacy ticket
// endpoints the lab tooling still depends on.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/switchyard-lab/switchyard/internal/metrics"
	"github.com/switchyard-lab/switchyard/pkg/inventory"
	"github.com/switchyard-lab/switchyard/pkg/ticket"
)

const requestTimeout = 60 * time.Second

// Server wires the inventory engine and ticket scheduler into HTTP handlers.
type Server struct {
	inv     *inventory.Manager
	tickets *ticket.Manager
	metrics *metrics.Metrics
	token   string
}

// New builds the server. metrics may be nil in tests.
func New(inv *inventory.Manager, tickets *ticket.Manager, m *metrics.Metrics, token string) *Server {
	return &Server{inv: inv, tickets: tickets, metrics: m, token: token}
}

// Router assembles the full route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(httprate.LimitByIP(300, time.Minute))
	r.Use(corsHeaders)
	r.Use(requestLogger)
	if s.metrics != nil {
		r.Use(countRequests(s.metrics))
	}

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(s.token))
		r.Get("/machines", s.handleListMachines)
		r.Post("/reserve/{vendor}/{model}/{version}", s.handleReserve)
		r.Post("/release/{serial}", s.handleRelease)
		r.Post("/admin/reload", s.handleReload)
	})

	r.Post("/request/{vendor}/{model}/{version}", s.handleCreateRequest)
	r.Get("/result/", s.handleQueueInfo)
	r.Get("/result/{id}", s.handleGetResult)
	r.Post("/tickets/search", s.handleSearchTickets)
	r.Get("/devices/options", s.handleDeviceOptions)

	return r
}
