package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/barber-agent/internal/conversation"
	httpmiddleware "github.com/wolfman30/barber-agent/internal/http/middleware"
	"github.com/wolfman30/barber-agent/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	MetricsHandler      http.Handler
	AdminAuthSecret     string
	CORSAllowedOrigins  []string

	// Per-IP limit on the agent endpoint; zero disables it.
	RateLimitRPS   float64
	RateLimitBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	h := cfg.ConversationHandler

	r.Group(func(public chi.Router) {
		public.Get("/", h.Root)
		public.Get("/health", h.Health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		public.Route("/v1", func(v1 chi.Router) {
			agent := v1.With()
			if cfg.RateLimitRPS > 0 {
				agent = v1.With(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
			}
			agent.Post("/agent/respond", h.Respond)
			v1.Get("/locations/cities", h.Cities)
			v1.Get("/locations/districts", h.Districts)
		})
	})

	// Admin routes only exist when a signing secret is configured.
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/sessions/{tenantID}/{fromNumber}", h.GetSession)
			admin.Delete("/sessions/{tenantID}/{fromNumber}", h.ResetSession)
			admin.Get("/transcripts/{tenantID}/{fromNumber}", h.Transcripts)
		})
	}

	return r
}
