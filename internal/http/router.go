package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/safetap/api/internal/alert"
	"github.com/safetap/api/internal/auth"
	"github.com/safetap/api/internal/config"
	"github.com/safetap/api/internal/contact"
	"github.com/safetap/api/internal/history"
	httpmiddleware "github.com/safetap/api/internal/http/middleware"
	"github.com/safetap/api/internal/location"
	"github.com/safetap/api/internal/metrics"
	"github.com/safetap/api/internal/protocol"
	"github.com/safetap/api/internal/report"
	"github.com/safetap/api/internal/settings"
	"github.com/safetap/api/internal/user"
)

// Dependencies reúne os serviços já construídos em cmd/api.
type Dependencies struct {
	JWT       *auth.JWTManager
	Users     *user.Service
	Contacts  contact.Directory
	Settings  settings.Store
	Locations *location.Tracker
	History   history.Log
	Audit     history.AuditLog
	Alerts    *alert.Engine
	Reports   *report.Service
	Protocols *protocol.Table
	// Checks são as verificações de prontidão (postgres, redis), por nome.
	Checks map[string]func(ctx context.Context) error
}

type Handler struct {
	cfg           *config.Config
	deps          Dependencies
	logger        zerolog.Logger
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, deps Dependencies) http.Handler {
	if deps.Protocols == nil {
		deps.Protocols = protocol.DefaultTable()
	}
	h := &Handler{
		cfg:           cfg,
		deps:          deps,
		logger:        log.With().Str("component", "http").Logger(),
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Handle("/metrics", metrics.Handler())

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)
		public.Get("/protocols", h.ListProtocols)

		public.Route("/auth", func(a chi.Router) {
			a.Post("/register", h.Register)
			a.Post("/login", h.Login)
			a.Post("/anonymous", h.NewAnonymousSession)
		})

		public.Route("/panic/anonymous/{token}", func(p chi.Router) {
			p.Use(httpmiddleware.AnonymousSession)
			p.Use(httpmiddleware.SessionRateLimit(h.authLimiter))
			p.Get("/", h.PollAnonymousPanic)
			p.Post("/start", h.StartAnonymousPanic)
			p.Post("/cancel", h.CancelAnonymousPanic)
		})
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(deps.JWT))
		private.Use(httpmiddleware.ActiveAccount(deps.Users.SessionActive))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

		private.Get("/me", h.Me)

		private.Route("/contacts", func(c chi.Router) {
			c.Get("/", h.ListContacts)
			c.Post("/", h.AddContact)
			c.Put("/{id}", h.UpdateContact)
			c.Delete("/{id}", h.DeleteContact)
		})

		private.Get("/settings", h.GetSettings)
		private.Put("/settings", h.UpdateSettings)
		private.Delete("/settings", h.ResetSettings)

		private.Get("/location", h.GetLocation)
		private.Put("/location", h.UpdateLocation)

		private.Get("/history", h.ListHistory)
		private.Delete("/history", h.ClearHistory)

		private.Route("/panic", func(p chi.Router) {
			p.Get("/", h.PollPanic)
			p.Post("/start", h.StartPanic)
			p.Post("/cancel", h.CancelPanic)
		})

		private.Group(func(rescue chi.Router) {
			rescue.Use(httpmiddleware.RequireRoles(string(user.RoleRescue), string(user.RoleAdmin)))
			rescue.Get("/rescue/active", h.ListActiveAlerts)
			rescue.Get("/rescue/emergencies", h.ListEmergencies)
		})

		private.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.RequireRoles(string(user.RoleAdmin)))
			admin.Get("/stats", h.AdminStats)
			admin.Route("/users", func(u chi.Router) {
				u.Get("/", h.ListUsers)
				u.Patch("/{username}/status", h.SetUserStatus)
				u.Patch("/{username}/role", h.SetUserRole)
				u.Post("/{username}/reset-password", h.ResetUserPassword)
				u.Delete("/{username}", h.DeleteUser)
			})
			admin.Get("/export", h.Export)
			admin.Post("/import", h.Import)
			admin.Get("/reports/users.csv", h.UsersReport)
			admin.Get("/reports/emergencies.csv", h.EmergenciesReport)
			admin.Post("/history/trim", h.TrimHistory)
			admin.Post("/reset", h.ResetDemoData)
		})
	})

	return r
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready executa as verificações de dependências configuradas.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failures := map[string]string{}
	for name, check := range h.deps.Checks {
		if err := check(ctx); err != nil {
			failures[name] = errorString(err)
		}
	}
	if len(failures) > 0 {
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "dependências indisponíveis", failures)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

// ListProtocols devolve a tabela de protocolos de emergência.
func (h *Handler) ListProtocols(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"protocols": h.deps.Protocols.All()})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
