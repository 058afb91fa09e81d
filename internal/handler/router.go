package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/alpine-chat/internal/middleware"
	"github.com/capitalize-ai/alpine-chat/pkg/logger"
)

// RouterConfig carries the handlers and limits used to build the router.
type RouterConfig struct {
	Auth          *AuthHandler
	Conversations *ConversationHandler
	Chat          *ChatHandler
	Health        *HealthHandler
	Verifier      middleware.Verifier
	Logger        *logger.Logger

	CORSOrigins           []string
	RateLimitRequests     int
	AuthRateLimitRequests int
	RateLimitWindow       time.Duration
}

// NewRouter builds the HTTP routing tree.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(cfg.AuthRateLimitRequests, cfg.RateLimitWindow))
				r.Post("/register", cfg.Auth.Register)
				r.Post("/login", cfg.Auth.Login)
			})
			r.With(middleware.Auth(cfg.Verifier, cfg.Logger)).Get("/me", cfg.Auth.Me)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Verifier, cfg.Logger))

			r.Post("/conversation", cfg.Conversations.Create)
			r.Get("/conversations", cfg.Conversations.List)
			r.Route("/conversation/{id}", func(r chi.Router) {
				r.Get("/", cfg.Conversations.Get)
				r.Delete("/", cfg.Conversations.Delete)
				r.Get("/messages", cfg.Conversations.Messages)
			})

			r.With(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)).
				Post("/message", cfg.Chat.SendMessage)
		})
	})

	return r
}
