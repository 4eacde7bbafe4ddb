package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appMiddleware "github.com/helphive/backend/internal/middleware"
	"github.com/helphive/backend/internal/models"
	"github.com/helphive/backend/internal/services"
)

// RouterConfig carries everything the HTTP surface is built from.
type RouterConfig struct {
	Users         *services.UserService
	Lifecycle     *services.LifecycleService
	JWTSecret     string
	JWTExpiration time.Duration
	CORSOrigins   []string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Health reports backend reachability for /health.
	Health func(ctx context.Context) error
}

func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := NewAuthHandler(cfg.Users, cfg.JWTSecret, cfg.JWTExpiration)
	userHandler := NewUserHandler(cfg.Users)
	requestHandler := NewRequestHandler(cfg.Lifecycle)
	adminHandler := NewAdminHandler(cfg.Lifecycle)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Health(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, models.NewCodedErrorResponse("unavailable", "Storage unreachable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/users/register", authHandler.Register)
		r.Post("/users/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.JWTAuth(cfg.JWTSecret))

			r.Route("/users", func(r chi.Router) {
				r.Get("/me", authHandler.GetProfile)
				r.Put("/me", authHandler.UpdateProfile)

				r.Group(func(r chi.Router) {
					r.Use(appMiddleware.RequireRole(models.RoleAdmin))
					r.Get("/", userHandler.ListUsers)
					r.Put("/{userId}/approve", userHandler.ApproveHelper)
				})
			})

			r.Route("/requests", func(r chi.Router) {
				r.Get("/", requestHandler.ListRequests)
				r.Post("/", requestHandler.CreateRequest)
				r.Get("/mine", requestHandler.MyRequests)
				r.Get("/available", requestHandler.AvailableRequests)
				r.Get("/stats", requestHandler.Stats)

				r.Route("/{requestId}", func(r chi.Router) {
					r.Get("/", requestHandler.GetRequest)
					r.Put("/", requestHandler.UpdateRequest)
					r.Delete("/", requestHandler.DeleteRequest)
					r.Get("/timeline", requestHandler.Timeline)
					r.Post("/offers", requestHandler.MakeOffer)
					r.Put("/accept/{helperId}", requestHandler.AcceptOffer)
					r.Put("/status", requestHandler.UpdateStatus)
				})
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(appMiddleware.RequireRole(models.RoleAdmin))
				r.Route("/requests/{requestId}", func(r chi.Router) {
					r.Put("/status", adminHandler.OverrideStatus)
					r.Get("/audit", adminHandler.AuditTrail)
					r.Delete("/", adminHandler.DeleteRequest)
				})
			})
		})
	})

	return r
}
