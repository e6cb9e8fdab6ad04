package booking

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusSuggested AppointmentStatus = "suggested"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// ActiveStatuses are the statuses that occupy the dentist's calendar.
// Suggested counts the same as pending; cancelled never occupies.
var ActiveStatuses = []AppointmentStatus{
	StatusPending,
	StatusSuggested,
	StatusConfirmed,
	StatusCompleted,
}

type Appointment struct {
	ID                 uuid.UUID
	PatientID          uuid.UUID
	DentistID          uuid.UUID
	ServiceID          uuid.UUID
	StartTime          time.Time
	DurationMinutes    int
	Status             AppointmentStatus
	Notes              *string
	TreatmentNotes     *string
	Cost               float64
	CancellationReason *string
	IsPaid             bool
	RemindedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// EndTime is the exclusive end of the occupied interval.
func (a *Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// WorkingHour is a recurring weekly open interval on a dentist's calendar.
// Times of day are minutes since midnight; multiple rows per weekday are
// treated as independent open intervals and unioned by the calculator.
type WorkingHour struct {
	ID          uuid.UUID
	DentistID   uuid.UUID
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BlockedDate is a one-off exception removing availability. With both
// StartMinute and EndMinute nil the whole day is blocked.
type BlockedDate struct {
	ID          uuid.UUID
	DentistID   uuid.UUID
	Date        time.Time // midnight in the clinic timezone
	StartMinute *int
	EndMinute   *int
	Reason      *string
	CreatedAt   time.Time
}

// FullDay reports whether the block removes the entire day.
func (b *BlockedDate) FullDay() bool {
	return b.StartMinute == nil && b.EndMinute == nil
}
