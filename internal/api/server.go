package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rma-advocacia/client-portal/internal/catalog"
	"github.com/rma-advocacia/client-portal/internal/config"
	"github.com/rma-advocacia/client-portal/internal/health"
	"github.com/rma-advocacia/client-portal/internal/portal"
)

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	manager        portal.Manager
	catalog        *catalog.Loader
	health         *health.Registry
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	manager portal.Manager,
	offerings *catalog.Loader,
	clients ClientResolver,
	checks *health.Registry,
) *Server {
	s := &Server{
		config:         cfg,
		manager:        manager,
		catalog:        offerings,
		health:         checks,
		authMiddleware: NewAuthMiddleware(clients),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", AccessCodeHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (outside versioned API - public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		// Catalog (public)
		r.Route("/catalog", func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Get("/offerings", s.handleListOfferings)
			r.Get("/offerings/{id}", s.handleGetOffering)
		})

		// Engagement (access code)
		r.Route("/engagement", func(r chi.Router) {
			r.Use(s.authMiddleware.Authenticate)

			// The feed is long-lived and stays outside the request timeout
			r.Get("/feed", s.handleFeed)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(60 * time.Second))

				r.Get("/", s.handleOpen)
				r.Delete("/", s.handleClose)
				r.Get("/progress", s.handleProgress)
				r.Put("/documents/{name}", s.handleSetDocument)
				r.Post("/documents/{name}/upload", s.handleUploadDocument)
				r.Put("/installments/{ordinal}", s.handleSetInstallment)
				r.Put("/stages/{name}", s.handleSetStage)
				r.Get("/meetings", s.handleListMeetings)
				r.Post("/meetings", s.handleRecordMeeting)
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
