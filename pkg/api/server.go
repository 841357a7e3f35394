package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/authbridge/authbridge/pkg/clientcert"
	"github.com/authbridge/authbridge/pkg/login"
	"github.com/authbridge/authbridge/pkg/observability"
	"github.com/authbridge/authbridge/pkg/provider"
	"github.com/authbridge/authbridge/pkg/settings"
)

// Server wires the HTTP surface: the administrative settings API, the login
// request lifecycle, and the SAML/OIDC handshake endpoints.
type Server struct {
	router   *mux.Router
	settings *settings.Layered
	file     *settings.FileRepository
	registry *provider.Registry
	svc      *login.Service
	hub      *login.Hub
	certs    *clientcert.Engine
	metrics  *observability.Metrics
	health   *observability.HealthChecker
	logger   *observability.Logger

	settingsHandlers *SettingsHandlers
	requestHandlers  *RequestHandlers
	loginHandlers    *LoginHandlers
}

// Options carries the collaborators a Server needs. The file repository may
// be nil when settings changes should not be persisted to disk.
type Options struct {
	Settings *settings.Layered
	File     *settings.FileRepository
	Registry *provider.Registry
	Service  *login.Service
	Hub      *login.Hub
	Certs    *clientcert.Engine
	Metrics  *observability.Metrics
	Health   *observability.HealthChecker
	Logger   *observability.Logger
}

// NewServer creates the API server and registers all routes.
func NewServer(opts Options) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		settings: opts.Settings,
		file:     opts.File,
		registry: opts.Registry,
		svc:      opts.Service,
		hub:      opts.Hub,
		certs:    opts.Certs,
		metrics:  opts.Metrics,
		health:   opts.Health,
		logger:   opts.Logger,
	}
	s.settingsHandlers = NewSettingsHandlers(s)
	s.requestHandlers = NewRequestHandlers(s)
	s.loginHandlers = NewLoginHandlers(s)
	s.setupRoutes()
	s.updateProviderGauge()
	return s
}

// Router returns the configured handler, wrapped with the ambient
// middleware.
func (s *Server) Router() http.Handler {
	var handler http.Handler = s.router
	if s.metrics != nil {
		handler = s.metrics.Middleware(handler)
	}
	return s.recoverPanics(handler)
}

func (s *Server) setupRoutes() {
	admin := s.router.PathPrefix("/settings").Subrouter()
	admin.Use(s.requireAdminToken, s.requireClientCert)
	s.settingsHandlers.RegisterRoutes(admin)

	s.requestHandlers.RegisterRoutes(s.router)
	s.loginHandlers.RegisterRoutes(s.router)

	s.router.HandleFunc("/healthz", s.health.Liveness).Methods("GET")
	s.router.HandleFunc("/readyz", s.health.Readiness).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.WithField("panic", rec).Error("handler panicked")
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
