package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sehatkor/care-gateway/internal/appointment"
	"github.com/sehatkor/care-gateway/internal/emergency"
	"github.com/sehatkor/care-gateway/internal/session"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Emergencies  *emergency.Service
	Sessions     *session.Registry
	Manager      *emergency.Manager
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Log          zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Appointment endpoints
	r.Post("/appointments", bookAppointmentHandler(cfg.Appointments))
	r.Get("/appointments", listAppointmentsHandler(cfg.Appointments))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/cancel", transitionHandler(func(req *http.Request, id uuid.UUID) (*appointment.Appointment, error) {
		return cfg.Appointments.CancelAppointment(req.Context(), id)
	}))
	r.Post("/appointments/{id}/complete", transitionHandler(func(req *http.Request, id uuid.UUID) (*appointment.Appointment, error) {
		return cfg.Appointments.CompleteAppointment(req.Context(), id)
	}))
	r.Get("/appointments/{id}/chat-status", chatStatusHandler(cfg.Appointments))
	r.Post("/appointments/{id}/chat-room", chatRoomHandler(cfg.Appointments))

	// Session posture reporting drives notification suppression and the
	// per-nurse emergency routers.
	r.Put("/sessions/{userID}", upsertSessionHandler(cfg.Sessions, cfg.Manager))
	r.Delete("/sessions/{userID}", removeSessionHandler(cfg.Sessions, cfg.Manager))
	r.Put("/sessions/{userID}/active-room", setActiveRoomHandler(cfg.Sessions))
	r.Put("/sessions/{userID}/focus", setFocusHandler(cfg.Sessions))
	r.Put("/sessions/{userID}/location", setLocationHandler(cfg.Sessions))

	// Emergency intake and dispatch coverage
	r.Post("/emergencies", createEmergencyHandler(cfg.Emergencies))
	r.Get("/emergencies/coverage", coverageHandler(cfg.Sessions, cfg.Manager))

	return r
}
