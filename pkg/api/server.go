// Package api wires the entitlement engine into its HTTP surface: the
// self-service entitlement endpoints, the admin CRUD for roles, grants
// and bans, and the operational endpoints.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/accounts"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/audit"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/bans"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/entitlements"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/grants"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/httputil"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/observability"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/roles"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/subscriptions"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/usage"
)

// Deps bundles everything the API server needs. Health, Metrics,
// Registry, Usage and Audit are optional.
type Deps struct {
	Roles         *roles.Store
	Accounts      *accounts.Store
	Subscriptions *subscriptions.Store
	SubManager    *subscriptions.Manager
	Grants        *grants.Store
	Bans          *bans.Store
	Resolver      *entitlements.Resolver
	Checker       *entitlements.Checker
	Usage         *usage.Counter
	Audit         audit.Logger
	Auth          mux.MiddlewareFunc
	Health        *observability.HealthChecker
	Metrics       *observability.Metrics
	Registry      *prometheus.Registry
	Logger        *observability.Logger
}

// Server is the HTTP API server
type Server struct {
	router *mux.Router
	deps   Deps
	guards *entitlements.Middleware
	logger *observability.Logger
}

// NewServer creates the API server and sets up all routes
func NewServer(deps Deps) *Server {
	if deps.Audit == nil {
		deps.Audit = audit.NopLogger{}
	}

	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
		guards: entitlements.NewMiddleware(deps.Checker),
		logger: deps.Logger,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// operational endpoints stay outside the auth chain
	if s.deps.Health != nil {
		s.router.HandleFunc("/health", s.deps.Health.Liveness).Methods("GET")
		s.router.HandleFunc("/ready", s.deps.Health.Readiness).Methods("GET")
	}
	if s.deps.Registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.deps.Registry)).Methods("GET")
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(httputil.RequestIDMiddleware)
	api.Use(httputil.LoggingMiddleware(s.logger))
	api.Use(httputil.RecoveryMiddleware(s.logger))
	if s.deps.Auth != nil {
		api.Use(s.deps.Auth)
	}

	me := &meHandlers{deps: s.deps}
	me.RegisterRoutes(api)

	gated := &gatedHandlers{deps: s.deps, guards: s.guards}
	gated.RegisterRoutes(api)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.guards.RequireAdmin())

	roleAdmin := &roleAdminHandlers{deps: s.deps}
	roleAdmin.RegisterRoutes(admin)

	grantAdmin := &grantAdminHandlers{deps: s.deps}
	grantAdmin.RegisterRoutes(admin)

	banAdmin := &banAdminHandlers{deps: s.deps}
	banAdmin.RegisterRoutes(admin)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
