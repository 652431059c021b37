package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/archpal/coaching-platform/internal/middleware"
	"github.com/archpal/coaching-platform/pkg/logger"
)

// RouterConfig collects the handlers and middleware settings.
type RouterConfig struct {
	Logger *logger.Logger
	Codec  *middleware.SessionCodec

	Health        *HealthHandler
	Auth          *AuthHandler
	Profile       *ProfileHandler
	Conversations *ConversationHandler
	Chat          *ChatHandler

	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the HTTP routes.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Get("/login", cfg.Auth.Login)
		r.Get("/callback", cfg.Auth.Callback)
		r.Post("/logout", cfg.Auth.Logout)
	})

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Codec))
		r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		r.Use(middleware.LimitBody(middleware.MaxBodyBytes))

		r.Get("/session", cfg.Profile.Session)
		r.Get("/profile", cfg.Profile.Get)
		r.Put("/profile", cfg.Profile.Put)
		r.Get("/profile/options", cfg.Profile.Options)

		// Conversations
		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", cfg.Conversations.List)
			r.Post("/new", cfg.Conversations.New)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.Conversations.Get)
				r.Patch("/", cfg.Conversations.Rename)
				r.Post("/select", cfg.Conversations.Select)
			})
		})

		// Chat turns
		r.Post("/chat", cfg.Chat.Send)
		r.Post("/chat/stream", cfg.Chat.Stream)
	})

	return r
}
