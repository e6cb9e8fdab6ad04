package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrWorkingHourNotFound = errors.New("working hour not found")
	ErrBlockedDateNotFound = errors.New("blocked date not found")
)

// Repository contains all DB interactions needed by the booking workflow and
// the availability calculator.
type Repository interface {
	// Working hours
	ListWorkingHours(ctx context.Context, dentistID uuid.UUID) ([]WorkingHour, error)
	ListActiveWorkingHours(ctx context.Context, dentistID uuid.UUID, weekday time.Weekday) ([]WorkingHour, error)
	CreateWorkingHour(ctx context.Context, wh WorkingHour) (*WorkingHour, error)
	UpdateWorkingHour(ctx context.Context, wh WorkingHour) (*WorkingHour, error)
	DeleteWorkingHour(ctx context.Context, dentistID, id uuid.UUID) error

	// Blocked dates
	ListBlockedDates(ctx context.Context, dentistID uuid.UUID, from time.Time) ([]BlockedDate, error)
	ListBlockedDatesForDay(ctx context.Context, dentistID uuid.UUID, day time.Time) ([]BlockedDate, error)
	CreateBlockedDate(ctx context.Context, bd BlockedDate) (*BlockedDate, error)
	DeleteBlockedDate(ctx context.Context, dentistID, id uuid.UUID) error

	// Appointments
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// ListActiveAppointments returns calendar-occupying appointments whose
	// interval intersects [dayStart, dayEnd).
	ListActiveAppointments(ctx context.Context, dentistID uuid.UUID, dayStart, dayEnd time.Time) ([]Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListAppointmentsByDentist(ctx context.Context, dentistID uuid.UUID, limit, offset int) ([]Appointment, error)

	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	// UpdateAppointmentStatus moves the appointment to a new status only if
	// its current status is in from; ErrAppointmentNotFound otherwise.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, from []AppointmentStatus, reason string) (*Appointment, error)
	CompleteAppointment(ctx context.Context, id uuid.UUID, treatmentNotes *string) (*Appointment, error)
	// RescheduleAppointment cancels the original and inserts the replacement
	// in a single transaction.
	RescheduleAppointment(ctx context.Context, originalID uuid.UUID, cancelReason string, replacement Appointment) (*Appointment, error)

	// Reminder worker
	FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error)
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error
}
