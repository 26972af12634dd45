// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/listing-api/internal/auth"
	"github.com/vyrodovalexey/listing-api/internal/config"
	"github.com/vyrodovalexey/listing-api/internal/handler"
	"github.com/vyrodovalexey/listing-api/internal/middleware"
	"github.com/vyrodovalexey/listing-api/internal/store"
)

// Deps are the collaborators the server routes to.
type Deps struct {
	Store         store.Store
	Blobs         handler.BlobStore
	Authenticator auth.Authenticator // nil disables seller authentication
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	handler    http.Handler
	config     *config.Config
	logger     *zap.Logger
	feed       *handler.ItemFeed
}

// New creates a new Server instance.
func New(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	router := mux.NewRouter()

	s := &Server{
		router: router,
		config: cfg,
		logger: logger,
	}

	s.setupMiddleware()
	s.setupRoutes(deps)
	s.setupHTTPServer()

	return s
}

// setupMiddleware configures the middleware chain. CORS wraps the router
// itself because preflight requests match no route.
func (s *Server) setupMiddleware() {
	allowedMethods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
	}

	chain := []middleware.Middleware{
		middleware.Recovery(s.logger),
		middleware.RequestID(),
	}
	if s.config.MetricsEnabled {
		chain = append(chain, middleware.Metrics())
	}
	chain = append(chain, middleware.Logging(s.logger))

	// Inside the router so Metrics can read the matched route template.
	s.router.Use(mux.MiddlewareFunc(middleware.Chain(chain...)))

	s.handler = middleware.CORS(s.config.FrontURL, allowedMethods)(s.router)
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes(deps Deps) {
	s.feed = handler.NewItemFeed(s.config.FrontURL, s.logger)
	s.feed.RegisterRoutes(s.router)

	listing := handler.NewListingHandler(
		deps.Store,
		deps.Blobs,
		s.feed,
		handler.Options{
			ImageRequired:  s.config.ImageRequired,
			MaxUploadBytes: s.config.MaxUploadBytes,
		},
		s.logger,
	)
	listing.RegisterRoutes(s.router, middleware.RequireSeller(deps.Authenticator, s.logger))

	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Not Found"}` + "\n"))
	})
}

// setupHTTPServer configures the HTTP server.
func (s *Server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.handler,
		ReadTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		zap.String("address", s.config.Address()),
		zap.String("front_url", s.config.FrontURL),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
		zap.String("auth_mode", s.config.AuthMode),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if s.feed != nil {
		s.feed.CloseAllConnections()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Router returns the server's router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the full handler chain, CORS included.
func (s *Server) Handler() http.Handler {
	return s.handler
}
