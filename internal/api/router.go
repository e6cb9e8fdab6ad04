package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dentexa/clinic-scheduling/internal/booking"
	"github.com/dentexa/clinic-scheduling/internal/clinic"
)

// BookingService is the slice of the booking workflow the handlers call.
type BookingService interface {
	Availability(ctx context.Context, actor clinic.Actor, dentistID uuid.UUID, date time.Time, durationMinutes int) ([]booking.Span, error)
	CreateAppointment(ctx context.Context, actor clinic.Actor, in booking.CreateAppointmentInput) (*booking.Appointment, error)
	ConfirmAppointment(ctx context.Context, actor clinic.Actor, id uuid.UUID) (*booking.Appointment, error)
	CancelAppointment(ctx context.Context, actor clinic.Actor, id uuid.UUID, reason string) (*booking.Appointment, error)
	CompleteAppointment(ctx context.Context, actor clinic.Actor, id uuid.UUID, treatmentNotes *string) (*booking.Appointment, error)
	RescheduleAppointment(ctx context.Context, actor clinic.Actor, id uuid.UUID, newStart time.Time) (*booking.Appointment, error)
	GetAppointment(ctx context.Context, actor clinic.Actor, id uuid.UUID) (*booking.Appointment, error)
	ListPatientAppointments(ctx context.Context, actor clinic.Actor, patientID uuid.UUID, limit, offset int) ([]booking.Appointment, error)
	ListDentistAppointments(ctx context.Context, actor clinic.Actor, dentistID uuid.UUID, limit, offset int) ([]booking.Appointment, error)

	ListWorkingHours(ctx context.Context, actor clinic.Actor, dentistID uuid.UUID) ([]booking.WorkingHour, error)
	CreateWorkingHour(ctx context.Context, actor clinic.Actor, wh booking.WorkingHour) (*booking.WorkingHour, error)
	UpdateWorkingHour(ctx context.Context, actor clinic.Actor, wh booking.WorkingHour) (*booking.WorkingHour, error)
	DeleteWorkingHour(ctx context.Context, actor clinic.Actor, dentistID, id uuid.UUID) error

	ListBlockedDates(ctx context.Context, actor clinic.Actor, dentistID uuid.UUID) ([]booking.BlockedDate, error)
	CreateBlockedDate(ctx context.Context, actor clinic.Actor, bd booking.BlockedDate) (*booking.BlockedDate, error)
	DeleteBlockedDate(ctx context.Context, actor clinic.Actor, dentistID, id uuid.UUID) error
}

// DirectoryService is the slice of the clinic directory the handlers call.
type DirectoryService interface {
	GetDentist(ctx context.Context, id uuid.UUID) (*clinic.Dentist, error)
	ListDentists(ctx context.Context, limit, offset int) ([]clinic.Dentist, error)
	CreateDentist(ctx context.Context, actor clinic.Actor, d clinic.Dentist) (*clinic.Dentist, error)
	UpdateDentist(ctx context.Context, actor clinic.Actor, d clinic.Dentist) (*clinic.Dentist, error)
	DeleteDentist(ctx context.Context, actor clinic.Actor, id uuid.UUID) error

	GetPatient(ctx context.Context, actor clinic.Actor, id uuid.UUID) (*clinic.Patient, error)
	ListPatients(ctx context.Context, actor clinic.Actor, limit, offset int) ([]clinic.Patient, error)
	CreatePatient(ctx context.Context, actor clinic.Actor, p clinic.Patient) (*clinic.Patient, error)
	UpdatePatient(ctx context.Context, actor clinic.Actor, p clinic.Patient) (*clinic.Patient, error)
	DeletePatient(ctx context.Context, actor clinic.Actor, id uuid.UUID) error

	GetService(ctx context.Context, id uuid.UUID) (*clinic.Service, error)
	ListServices(ctx context.Context, activeOnly bool) ([]clinic.Service, error)
	CreateService(ctx context.Context, actor clinic.Actor, s clinic.Service) (*clinic.Service, error)
	UpdateService(ctx context.Context, actor clinic.Actor, s clinic.Service) (*clinic.Service, error)
	DeleteService(ctx context.Context, actor clinic.Actor, id uuid.UUID) error

	GetStats(ctx context.Context, actor clinic.Actor) (*clinic.Stats, error)
}

type RouterConfig struct {
	Booking   BookingService
	Directory DirectoryService
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Logger    zerolog.Logger
	Timezone  *time.Location
	JWTSecret string
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	loc := cfg.Timezone
	if loc == nil {
		loc = time.UTC
	}

	h := &handlers{
		booking:   cfg.Booking,
		directory: cfg.Directory,
		validate:  validator.New(),
		logger:    cfg.Logger.With().Str("component", "api").Logger(),
		loc:       loc,
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints stay unauthenticated for probes.
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(ActorMiddleware(cfg.JWTSecret))

		r.Get("/availability", h.getAvailability)

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", h.createAppointment)
			r.Get("/", h.listAppointments)
			r.Get("/{id}", h.getAppointment)
			r.Post("/{id}/confirm", h.confirmAppointment)
			r.Post("/{id}/cancel", h.cancelAppointment)
			r.Post("/{id}/complete", h.completeAppointment)
			r.Post("/{id}/reschedule", h.rescheduleAppointment)
		})

		r.Route("/dentists", func(r chi.Router) {
			r.Get("/", h.listDentists)
			r.Post("/", h.createDentist)
			r.Route("/{dentistID}", func(r chi.Router) {
				r.Get("/", h.getDentist)
				r.Put("/", h.updateDentist)
				r.Delete("/", h.deleteDentist)

				r.Route("/working-hours", func(r chi.Router) {
					r.Get("/", h.listWorkingHours)
					r.Post("/", h.createWorkingHour)
					r.Put("/{id}", h.updateWorkingHour)
					r.Delete("/{id}", h.deleteWorkingHour)
				})

				r.Route("/blocked-dates", func(r chi.Router) {
					r.Get("/", h.listBlockedDates)
					r.Post("/", h.createBlockedDate)
					r.Delete("/{id}", h.deleteBlockedDate)
				})
			})
		})

		r.Route("/patients", func(r chi.Router) {
			r.Get("/", h.listPatients)
			r.Post("/", h.createPatient)
			r.Get("/{patientID}", h.getPatient)
			r.Put("/{patientID}", h.updatePatient)
			r.Delete("/{patientID}", h.deletePatient)
		})

		r.Route("/services", func(r chi.Router) {
			r.Get("/", h.listServices)
			r.Post("/", h.createService)
			r.Get("/{serviceID}", h.getService)
			r.Put("/{serviceID}", h.updateService)
			r.Delete("/{serviceID}", h.deleteService)
		})

		r.Get("/admin/stats", h.getStats)
	})

	return r
}
