package server

import (
	"database/sql"
	"net/http"

	"pagesmith-deployment/internal/config"
	"pagesmith-deployment/internal/handlers"
	"pagesmith-deployment/internal/logger"
	"pagesmith-deployment/internal/orchestrator"

	"github.com/gorilla/mux"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
)

type Server struct {
	config  *config.Config
	handler *handlers.Handler
	router  *mux.Router
	nrApp   *newrelic.Application
	logger  *logrus.Entry
}

func NewServer(cfg *config.Config, db *sql.DB, pipeline *orchestrator.Orchestrator, nrApp *newrelic.Application) *Server {
	s := &Server{
		config:  cfg,
		handler: handlers.NewHandler(db, pipeline),
		router:  mux.NewRouter(),
		nrApp:   nrApp,
		logger:  logger.WithModule("server"),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health endpoint (unprotected)
	s.router.HandleFunc(s.wrap("/health", s.handler.Health)).Methods("GET")

	// Protected routes with secret key validation
	protectedRouter := s.router.PathPrefix("").Subrouter()
	protectedRouter.Use(s.authMiddleware)

	protectedRouter.HandleFunc(s.wrap("/deploy", s.handler.Deploy)).Methods("POST")
	protectedRouter.HandleFunc(s.wrap("/status/{task}", s.handler.Status)).Methods("GET")
}

// wrap adds New Relic instrumentation when monitoring is configured.
func (s *Server) wrap(pattern string, handler func(http.ResponseWriter, *http.Request)) (string, func(http.ResponseWriter, *http.Request)) {
	if s.nrApp == nil {
		return pattern, handler
	}
	return newrelic.WrapHandleFunc(s.nrApp, pattern, handler)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secretKey := r.Header.Get("X-Secret-Key")

		if secretKey != s.config.DeploySecret {
			s.logger.WithFields(logrus.Fields{
				"path":   r.URL.Path,
				"method": r.Method,
				"ip":     r.RemoteAddr,
			}).Warn("Invalid secret key provided")
			http.Error(w, "Invalid secret key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Router exposes the configured routes, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.WithField("port", s.config.Port).Info("Server starting")
	return http.ListenAndServe(":"+s.config.Port, s.router)
}
