package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/career-coach/internal/channels/whatsapp"
	"github.com/wolfman30/career-coach/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/career-coach/internal/http/middleware"
	"github.com/wolfman30/career-coach/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger *logging.Logger

	WhatsApp       *whatsapp.WebhookHandler
	LiveKitWebhook http.Handler
	Status         *handlers.StatusHandler
	SendMessage    *handlers.SendMessageHandler
	Calls          *handlers.CallsHandler
	CallStream     *handlers.CallStreamHandler
	MetricsHandler http.Handler

	// AdminAuthSecret enables HS256 bearer auth on operator routes.
	AdminAuthSecret string
	// AdminLimiter throttles operator routes per client when set.
	AdminLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		if cfg.Status != nil {
			public.Get("/", cfg.Status.Root)
			public.Get("/health", cfg.Status.Health)
			public.Get("/test-webhook", cfg.Status.WebhookCheck)
		} else {
			public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"status":"healthy"}`))
			})
		}
		if cfg.WhatsApp != nil {
			public.Get("/webhook", cfg.WhatsApp.HandleVerification)
			public.Post("/webhook", cfg.WhatsApp.HandleInbound)
		}
		if cfg.LiveKitWebhook != nil {
			public.Post("/webhooks/livekit", cfg.LiveKitWebhook.ServeHTTP)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Operator routes
	r.Group(func(admin chi.Router) {
		if cfg.AdminLimiter != nil {
			admin.Use(cfg.AdminLimiter.Middleware)
		}
		if cfg.AdminAuthSecret != "" {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		}
		if cfg.SendMessage != nil {
			admin.Post("/send-message", cfg.SendMessage.ServeHTTP)
			admin.Post("/broadcast", cfg.SendMessage.Broadcast)
		}
		if cfg.Calls != nil {
			admin.Route("/calls", func(calls chi.Router) {
				calls.Post("/", cfg.Calls.Create)
				calls.Get("/{roomID}", cfg.Calls.Get)
				calls.Post("/{roomID}/complete", cfg.Calls.Complete)
				if cfg.CallStream != nil {
					calls.Get("/{roomID}/stream", cfg.CallStream.ServeHTTP)
				}
			})
		}
	})

	return r
}
