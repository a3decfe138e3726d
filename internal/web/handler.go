package web

import (
	"net/http"
	"time"

	"cdr.dev/slog"
	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/teamclock/teamclock/internal/auth"
	"github.com/teamclock/teamclock/internal/config"
	"github.com/teamclock/teamclock/internal/database"
	"github.com/teamclock/teamclock/internal/integration"
	"github.com/teamclock/teamclock/internal/metrics"
	"github.com/teamclock/teamclock/internal/presence"
	"github.com/teamclock/teamclock/internal/reporter"
	"github.com/teamclock/teamclock/internal/storage"
	"github.com/teamclock/teamclock/internal/tracker"
)

// Version is reported by the index endpoint.
var Version = "dev"

// Deps are the services the API is built on.
type Deps struct {
	Repo         *database.Repository
	Auth         *auth.Service
	Tracker      *tracker.Service
	Reporter     *reporter.Reporter
	Presence     *presence.Manager
	Integrations *integration.Service
	Screenshots  *storage.Screenshots

	// Registry backs /metrics; nil disables the endpoint
	Registry *prometheus.Registry
	Clock    quartz.Clock
	Logger   slog.Logger
}

type Handler struct {
	config       *config.Config
	repo         *database.Repository
	auth         *auth.Service
	tracker      *tracker.Service
	reporter     *reporter.Reporter
	presence     *presence.Manager
	integrations *integration.Service
	screenshots  *storage.Screenshots
	registry     *prometheus.Registry
	clock        quartz.Clock
	log          slog.Logger
}

func NewHandler(cfg *config.Config, deps Deps) *Handler {
	if deps.Clock == nil {
		deps.Clock = quartz.NewReal()
	}
	return &Handler{
		config:       cfg,
		repo:         deps.Repo,
		auth:         deps.Auth,
		tracker:      deps.Tracker,
		reporter:     deps.Reporter,
		presence:     deps.Presence,
		integrations: deps.Integrations,
		screenshots:  deps.Screenshots,
		registry:     deps.Registry,
		clock:        deps.Clock,
		log:          deps.Logger.Named("web"),
	}
}

// Routes builds the router for the whole API.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		requestID,
		h.accessLog,
		h.recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   h.config.Web.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)
	if h.registry != nil {
		r.Use(metrics.NewHTTP(h.registry).Middleware)
		r.Handle("/metrics", metrics.Handler(h.registry))
	}

	r.Get("/health", h.handleHealth)
	r.Get("/ws/{token}", h.handleWebSocket)
	if h.screenshots != nil {
		prefix := h.screenshots.Prefix()
		r.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(afero.NewHttpFs(h.screenshots.FS()))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/", h.handleIndex)

		r.Route("/auth", func(r chi.Router) {
			if n := h.config.Web.AuthRateLimit; n > 0 {
				r.Use(httprate.LimitByIP(n, time.Minute))
			}
			r.Post("/register", h.handleRegister)
			r.Post("/login", h.handleLogin)
			r.Post("/refresh", h.handleRefresh)
			r.Group(func(r chi.Router) {
				r.Use(h.authenticate)
				r.Post("/logout", h.handleLogout)
				r.Get("/me", h.handleMe)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)
			r.Route("/users", h.userRoutes)
			r.Route("/projects", h.projectRoutes)
			r.Route("/time-tracking", h.trackingRoutes)
			r.Route("/analytics", h.analyticsRoutes)
			r.Route("/integrations", h.integrationRoutes)
			r.Get("/ws/online-users", h.handleOnlineUsers)
		})
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   h.clock.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "TeamClock API",
		"version": Version,
	})
}

type onlineUser struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	ConnectedAt time.Time `json:"connected_at"`
}

// handleOnlineUsers lists connected users that still exist in the store.
func (h *Handler) handleOnlineUsers(w http.ResponseWriter, r *http.Request) {
	ids := h.presence.OnlineUsers()
	users, err := h.repo.GetUsersByIDs(r.Context(), ids)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	online := make([]onlineUser, 0, len(ids))
	for _, id := range ids {
		u, ok := users[id]
		if !ok {
			continue
		}
		sess, ok := h.presence.Session(id)
		if !ok {
			continue
		}
		online = append(online, onlineUser{ID: u.ID, Name: u.Name, Status: sess.Status, ConnectedAt: sess.ConnectedAt})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"online_users": online,
		"count":        len(online),
	})
}
