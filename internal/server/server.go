// Package server builds the router and runs the HTTP server.
//
// ROUTES:
//
//	GET  /api/health                          public
//	POST /api/auth/send-code, /api/auth/verify  public
//	everything else under /api                 bearer token (auth.RequireAuth)
//
// MIDDLEWARE ORDER:
// RequestID → RealIP → Logger → Recoverer → CORS. The logger sits outside
// Recoverer so a panicking request is still logged with its 500.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/sanctuary/internal/handler"
	"github.com/sakif/sanctuary/internal/middleware"
)

// shutdownTimeout is how long in-flight requests get after a stop signal.
const shutdownTimeout = 30 * time.Second

// Config holds the listener settings.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// Handlers are the endpoint groups the router mounts.
type Handlers struct {
	Health        *handler.HealthHandler
	Auth          *handler.AuthHandler
	Spaces        *handler.SpaceHandler
	Memories      *handler.MemoryHandler
	Milestones    *handler.MilestoneHandler
	Notifications *handler.NotificationHandler
	Reactions     *handler.ReactionHandler
	Comments      *handler.CommentHandler
}

// Server owns the router and the http.Server.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
}

// New wires the routes. requireAuth guards every route that needs a
// signed-in user.
func New(cfg Config, h Handlers, requireAuth func(http.Handler) http.Handler, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	s.setupRoutes(h, requireAuth)
	return s
}

// Handler exposes the router, e.g. to httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(h Handlers, requireAuth func(http.Handler) http.Handler) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health.HandleHealth)
		r.Post("/auth/send-code", h.Auth.HandleSendCode)
		r.Post("/auth/verify", h.Auth.HandleVerify)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Route("/auth", func(r chi.Router) {
				r.Get("/me", h.Auth.HandleMe)
				r.Put("/profile", h.Auth.HandleUpdateProfile)
				r.Post("/refresh", h.Auth.HandleRefresh)
				r.Post("/logout", h.Auth.HandleLogout)
				r.Post("/logout-all", h.Auth.HandleLogoutAll)
			})

			r.Route("/spaces", func(r chi.Router) {
				r.Post("/", h.Spaces.HandleCreate)
				r.Get("/my", h.Spaces.HandleMine)
				r.Post("/join", h.Spaces.HandleJoin)
				r.Get("/pet-names", h.Spaces.HandlePetNames)
				r.Put("/pet-names", h.Spaces.HandleUpdatePetNames)
				r.Get("/{id}", h.Spaces.HandleGet)
				r.Put("/{id}", h.Spaces.HandleUpdate)
				r.Delete("/{id}", h.Spaces.HandleDelete)
				r.Get("/{id}/unbind", h.Spaces.HandleUnbindStatus)
				r.Post("/{id}/unbind", h.Spaces.HandleRequestUnbind)
				r.Delete("/{id}/unbind", h.Spaces.HandleCancelUnbind)
			})

			r.Route("/memories", func(r chi.Router) {
				r.Get("/", h.Memories.HandleList)
				r.Post("/", h.Memories.HandleCreate)
				r.Get("/{id}", h.Memories.HandleGet)
				r.Put("/{id}", h.Memories.HandleUpdate)
				r.Delete("/{id}", h.Memories.HandleDelete)
			})

			r.Route("/milestones", func(r chi.Router) {
				r.Get("/", h.Milestones.HandleList)
				r.Post("/", h.Milestones.HandleCreate)
				r.Get("/{id}", h.Milestones.HandleGet)
				r.Put("/{id}", h.Milestones.HandleUpdate)
				r.Delete("/{id}", h.Milestones.HandleDelete)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.Notifications.HandleList)
				r.Put("/read-all", h.Notifications.HandleMarkAllRead)
				r.Put("/{id}/read", h.Notifications.HandleMarkRead)
			})

			r.Route("/reactions", func(r chi.Router) {
				r.Post("/{memoryId}", h.Reactions.HandleToggle)
				r.Get("/{memoryId}", h.Reactions.HandleList)
				r.Get("/{memoryId}/me", h.Reactions.HandleMine)
			})

			r.Route("/comments", func(r chi.Router) {
				r.Delete("/item/{commentId}", h.Comments.HandleDelete)
				r.Get("/{memoryId}", h.Comments.HandleList)
				r.Post("/{memoryId}", h.Comments.HandleAdd)
				r.Get("/{memoryId}/count", h.Comments.HandleCount)
			})
		})
	})
}

// Run serves until ctx is cancelled, then gives in-flight requests
// shutdownTimeout to finish.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	}
}
