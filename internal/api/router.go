package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hackgods/optician-booking/internal/appointment"
	redisclient "github.com/hackgods/optician-booking/internal/redis"
	"github.com/hackgods/optician-booking/internal/staff"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Staff        *staff.Service
	Health       *HealthHandler
	RateLimiter  *redisclient.RateLimiter // nil disables booking rate limits
	Logger       *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(middleware.Recoverer)

	// Health endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	h := &handlers{svc: cfg.Appointments, staff: cfg.Staff, log: log}

	// Public endpoints
	r.Get("/slots", h.listSlots)
	r.Get("/services", h.listServices)
	r.Get("/availability", h.getAvailability)
	r.Group(func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}
		r.Post("/appointments", h.createAppointment)
	})

	// Staff endpoints
	r.Route("/admin", func(r chi.Router) {
		r.Post("/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(RequireStaff(cfg.Staff))

			r.Get("/availability", h.getAdminAvailability)
			r.Put("/availability", h.updateAvailability)
			r.Get("/appointments", h.listAppointments)
			r.Get("/appointments/{id}", h.getAppointment)
			r.Delete("/appointments/{id}", h.cancelAppointment)
		})
	})

	return r
}
