// Package httptransport is the thin HTTP layer. Handlers decode requests,
// delegate to the domain services and translate domain errors into the JSON
// error envelope; business rules live below this package.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trailmark/internal/auth/resolver"
	checkinservice "trailmark/internal/checkin/service"
	"trailmark/internal/platform/middleware"
	userservice "trailmark/internal/user/service"
	"trailmark/pkg/platform/httputil"
)

// Rules are the externally configured validation limits, advertised on the
// service index.
type Rules struct {
	MaxDistanceMeters float64 `json:"max_distance"`
	QuarantineSeconds int     `json:"quarantine"`
}

// Handler bundles the domain services behind the routes.
type Handler struct {
	checkins *checkinservice.Service
	users    *userservice.Service
	rules    Rules
	logger   *slog.Logger
}

// NewHandler creates the HTTP handler set.
func NewHandler(checkins *checkinservice.Service, users *userservice.Service, rules Rules, logger *slog.Logger) *Handler {
	return &Handler{
		checkins: checkins,
		users:    users,
		rules:    rules,
		logger:   logger,
	}
}

// NewRouter wires all endpoints. The metrics handler stays outside the
// request middleware so scrapes do not show up in request logs.
func NewRouter(h *Handler, auth *resolver.Resolver, metricsHandler http.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", h.handleHealth)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestMetadata)
		r.Use(middleware.RequestLogger(logger))
		r.Use(middleware.Principal(auth, logger))

		r.Get("/", h.handleIndex)

		r.Route("/checkins", func(r chi.Router) {
			r.Post("/", h.handleCheckinCreate)
			r.Get("/{checkinID}", h.handleCheckinGet)
			r.Put("/{checkinID}", h.handleCheckinUpdate)
			r.Delete("/{checkinID}", h.handleCheckinDelete)
		})

		r.Route("/places/{placeID}", func(r chi.Router) {
			r.Get("/log", h.handlePlaceLog)
			r.Get("/stats", h.handlePlaceStats)
			r.Get("/users", h.handlePlaceUsers)
		})

		r.Route("/lists/{listID}", func(r chi.Router) {
			r.Get("/log", h.handleListLog)
			r.Get("/stats", h.handleListStats)
			r.Get("/users", h.handleListUsers)
			r.Post("/join", h.handleListJoin)
			r.Post("/leave", h.handleListLeave)
		})

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/", h.handleUserProfile)
			r.Get("/log", h.handleUserLog)
			r.Get("/stats", h.handleUserStats)
			r.Post("/migrate", h.handleUserMigrate)
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIndex advertises the API surface and the configured validation
// rules so clients can present them without hardcoding limits.
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"checkin": map[string]string{
			"create": "POST /checkins",
			"get":    "GET /checkins/{id}",
			"update": "PUT /checkins/{id}",
			"delete": "DELETE /checkins/{id}",
		},
		"places": map[string]string{
			"log":   "GET /places/{id}/log",
			"stats": "GET /places/{id}/stats",
			"users": "GET /places/{id}/users",
		},
		"lists": map[string]string{
			"log":   "GET /lists/{id}/log",
			"stats": "GET /lists/{id}/stats",
			"users": "GET /lists/{id}/users",
			"join":  "POST /lists/{id}/join",
			"leave": "POST /lists/{id}/leave",
		},
		"users": map[string]string{
			"profile": "GET /users/{id}",
			"log":     "GET /users/{id}/log",
			"stats":   "GET /users/{id}/stats",
			"migrate": "POST /users/{id}/migrate",
		},
		"rules": h.rules,
	})
}
