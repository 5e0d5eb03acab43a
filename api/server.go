/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the dashboard
  5. Actor:      Caller identity from X-Actor-ID / X-Actor-Role

AUTHORIZATION:
  Authentication happens upstream. This service trusts the actor headers
  set by the gateway and checks the role's capabilities: write routes are
  wrapped in RequireCapability, and the domain services check again.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/payroll-engine/generic"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// RouterOptions tunes the router; the zero value is usable.
type RouterOptions struct {
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderActorID, HeaderActorRole},
			AllowCredentials: true,
		}))
	}
	r.Use(ActorMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetEmployee)
				r.Get("/payroll", h.PreviewPayroll)
				r.Get("/vacation/log", h.VacationLog)
				r.Post("/shifts", h.ScheduleShift)
				r.Post("/bonuses", h.AssignBonus)

				r.With(RequireCapability(generic.CapEditAttendance)).Put("/attendance/{date}", h.SetDay)
				r.With(RequireCapability(generic.CapAdjustVacation)).Post("/vacation/adjustments", h.AdjustVacation)

				r.Group(func(r chi.Router) {
					r.Use(RequireCapability(generic.CapRequestLeave))
					r.Post("/incident-requests", h.ApproveIncidentRequest)
					r.Delete("/incident-requests", h.RemoveIncidentRequest)
				})
			})
		})

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
		})

		r.Route("/bonuses", func(r chi.Router) {
			r.Get("/", h.ListBonuses)
			r.Post("/", h.CreateBonus)
		})

		r.Route("/payroll", func(r chi.Router) {
			r.With(RequireCapability(generic.CapSettlePayroll)).Post("/close", h.ClosePeriod)
			r.Get("/receipts", h.ListReceipts)
			r.Get("/receipts/export", h.ExportReceipts)
		})
	})

	return r
}

// =============================================================================
// ACTOR
// =============================================================================

type actorKey struct{}

// ActorMiddleware reads the caller from the actor headers. A missing role
// means an ordinary employee; an unknown role is rejected.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := generic.Actor{
			ID:   r.Header.Get(HeaderActorID),
			Role: generic.Role(r.Header.Get(HeaderActorRole)),
		}
		switch actor.Role {
		case "":
			actor.Role = generic.RoleEmployee
		case generic.RoleAdmin, generic.RoleManager, generic.RoleEmployee:
		default:
			writeError(w, http.StatusBadRequest, "Unknown actor role", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// RequireCapability rejects callers whose role lacks c.
func RequireCapability(c generic.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ActorFrom(r.Context()).Can(c) {
				writeError(w, http.StatusForbidden, "Forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithActor(ctx context.Context, a generic.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the actor stored by ActorMiddleware, or an anonymous
// employee when there is none.
func ActorFrom(ctx context.Context) generic.Actor {
	if a, ok := ctx.Value(actorKey{}).(generic.Actor); ok {
		return a
	}
	return generic.Actor{Role: generic.RoleEmployee}
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
