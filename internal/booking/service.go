package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentexa/clinic-scheduling/internal/clinic"
	redisclient "github.com/dentexa/clinic-scheduling/internal/redis"
)

var (
	ErrSlotUnavailable         = errors.New("slot is no longer available")
	ErrCalendarBusy            = errors.New("calendar is currently being booked, please retry")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// Directory is the slice of the clinic repository the booking workflow needs
// for reference lookups.
type Directory interface {
	GetDentistByID(ctx context.Context, id uuid.UUID) (*clinic.Dentist, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*clinic.Patient, error)
	GetServiceByID(ctx context.Context, id uuid.UUID) (*clinic.Service, error)
}

// Notifier receives workflow side effects. Implementations must not block the
// transition; failures are theirs to log.
type Notifier interface {
	AppointmentBooked(ctx context.Context, a *Appointment)
	AppointmentStatusChanged(ctx context.Context, a *Appointment, old AppointmentStatus)
	AppointmentRescheduled(ctx context.Context, original, replacement *Appointment)
	AppointmentReminder(ctx context.Context, a *Appointment)
}

type Service struct {
	repo      Repository
	directory Directory
	locker    redisclient.Locker
	notifier  Notifier
	logger    zerolog.Logger
	loc       *time.Location
	now       func() time.Time
}

func NewService(repo Repository, directory Directory, locker redisclient.Locker, notifier Notifier, logger zerolog.Logger, loc *time.Location) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		locker:    locker,
		notifier:  notifier,
		logger:    logger.With().Str("component", "booking").Logger(),
		loc:       loc,
		now:       time.Now,
	}
}

// day truncates t to midnight in the clinic timezone.
func (s *Service) day(t time.Time) time.Time {
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}

// spanWithinDay maps an absolute interval onto minutes of the given day,
// clipped to [00:00, 24:00).
func spanWithinDay(dayStart time.Time, start, end time.Time) (Span, bool) {
	sp := Span{
		Start: int(start.Sub(dayStart) / time.Minute),
		End:   int(end.Sub(dayStart) / time.Minute),
	}
	return clampSpan(sp)
}

// freeSpansForDay resolves working hours, applies blocked-date overrides and
// subtracts occupied appointments. excludeAppt skips one appointment from the
// busy set (used when rescheduling that appointment).
func (s *Service) freeSpansForDay(ctx context.Context, dentistID uuid.UUID, day time.Time, excludeAppt uuid.UUID) ([]Span, error) {
	hours, err := s.repo.ListActiveWorkingHours(ctx, dentistID, day.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load working hours: %w", err)
	}
	if len(hours) == 0 {
		return nil, nil
	}

	open := make([]Span, 0, len(hours))
	for _, wh := range hours {
		open = append(open, Span{Start: wh.StartMinute, End: wh.EndMinute})
	}

	blocks, err := s.repo.ListBlockedDatesForDay(ctx, dentistID, day)
	if err != nil {
		return nil, fmt.Errorf("load blocked dates: %w", err)
	}

	var busy []Span
	for _, b := range blocks {
		if b.FullDay() {
			return nil, nil
		}
		if b.StartMinute != nil && b.EndMinute != nil {
			busy = append(busy, Span{Start: *b.StartMinute, End: *b.EndMinute})
		}
	}

	dayEnd := day.Add(24 * time.Hour)
	appts, err := s.repo.ListActiveAppointments(ctx, dentistID, day, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	for _, a := range appts {
		if a.ID == excludeAppt {
			continue
		}
		if sp, ok := spanWithinDay(day, a.StartTime.In(s.loc), a.EndTime().In(s.loc)); ok {
			busy = append(busy, sp)
		}
	}

	return SubtractSpans(open, busy), nil
}

// Availability returns the free intervals of at least durationMinutes for a
// dentist on a date. Cancelled appointments do not occupy the calendar;
// pending, suggested, confirmed and completed ones do.
func (s *Service) Availability(ctx context.Context, actor clinic.Actor, dentistID uuid.UUID, date time.Time, durationMinutes int) ([]Span, error) {
	if durationMinutes <= 0 {
		return nil, &clinic.ValidationError{Field: "duration_minutes", Reason: "must be positive"}
	}

	day := s.day(date)
	if day.Before(s.day(s.now())) {
		return nil, &clinic.ValidationError{Field: "date", Reason: "must not be in the past"}
	}

	if _, err := s.directory.GetDentistByID(ctx, dentistID); err != nil {
		return nil, err
	}

	free, err := s.freeSpansForDay(ctx, dentistID, day, uuid.Nil)
	if err != nil {
		return nil, err
	}

	var result []Span
	for _, f := range free {
		if f.End-f.Start >= durationMinutes {
			result = append(result, f)
		}
	}
	return result, nil
}

type CreateAppointmentInput struct {
	PatientID uuid.UUID
	DentistID uuid.UUID
	ServiceID uuid.UUID
	StartTime time.Time
	Notes     *string
}

// CreateAppointment books a pending appointment for a patient. The chosen
// interval is re-validated against availability inside the per-dentist-day
// lock, so a lost race surfaces as ErrSlotUnavailable rather than a double
// booking.
func (s *Service) CreateAppointment(ctx context.Context, actor clinic.Actor, in CreateAppointmentInput) (*Appointment, error) {
	if actor.Role == clinic.RolePatient && actor.ID != in.PatientID {
		return nil, clinic.ErrForbidden
	}
	if actor.Role == clinic.RoleDentist {
		return nil, clinic.ErrForbidden
	}

	if _, err := s.directory.GetPatientByID(ctx, in.PatientID); err != nil {
		return nil, err
	}
	if _, err := s.directory.GetDentistByID(ctx, in.DentistID); err != nil {
		return nil, err
	}
	svc, err := s.directory.GetServiceByID(ctx, in.ServiceID)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return nil, &clinic.ValidationError{Field: "service_id", Reason: "service is not active"}
	}

	start := in.StartTime.In(s.loc)
	if !start.After(s.now()) {
		return nil, &clinic.ValidationError{Field: "start_time", Reason: "must be in the future"}
	}

	day := s.day(start)
	end := start.Add(time.Duration(svc.DurationMinutes) * time.Minute)
	want, ok := spanWithinDay(day, start, end)
	if !ok || !s.day(end.Add(-time.Nanosecond)).Equal(day) {
		return nil, &clinic.ValidationError{Field: "start_time", Reason: "appointment must fit within a single day"}
	}

	var created *Appointment

	err = s.locker.WithCalendarLock(ctx, in.DentistID, day, func(lockCtx context.Context) error {
		free, err := s.freeSpansForDay(lockCtx, in.DentistID, day, uuid.Nil)
		if err != nil {
			return err
		}
		if !spanIsFree(free, want) {
			return ErrSlotUnavailable
		}

		appt, err := s.repo.CreateAppointment(lockCtx, Appointment{
			PatientID:       in.PatientID,
			DentistID:       in.DentistID,
			ServiceID:       in.ServiceID,
			StartTime:       start,
			DurationMinutes: svc.DurationMinutes,
			Status:          StatusPending,
			Notes:           in.Notes,
			Cost:            svc.Price,
		})
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrCalendarBusy
		}
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", created.ID.String()).
		Str("dentist_id", created.DentistID.String()).
		Time("start_time", created.StartTime).
		Msg("appointment booked")

	s.notifier.AppointmentBooked(ctx, created)

	return created, nil
}

// ConfirmAppointment moves a pending or suggested appointment to confirmed.
// Dentist action, scoped to their own calendar.
func (s *Service) ConfirmAppointment(ctx context.Context, actor clinic.Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeDentist(actor, appt.DentistID); err != nil {
		return nil, err
	}
	if appt.Status != StatusPending && appt.Status != StatusSuggested {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, []AppointmentStatus{StatusPending, StatusSuggested}, StatusConfirmed)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Raced with another transition since the load above.
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	s.notifier.AppointmentStatusChanged(ctx, updated, appt.Status)

	return updated, nil
}

// CancelAppointment cancels a pending, suggested or confirmed appointment.
// Either party may cancel; the reason is mandatory and the interval is freed
// immediately for subsequent availability queries.
func (s *Service) CancelAppointment(ctx context.Context, actor clinic.Actor, id uuid.UUID, reason string) (*Appointment, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &clinic.ValidationError{Field: "cancellation_reason", Reason: "must not be empty"}
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() &&
		!(actor.Role == clinic.RolePatient && actor.ID == appt.PatientID) &&
		!(actor.Role == clinic.RoleDentist && actor.ID == appt.DentistID) {
		return nil, clinic.ErrForbidden
	}
	if appt.Status == StatusCompleted || appt.Status == StatusCancelled {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.CancelAppointment(ctx, id, []AppointmentStatus{StatusPending, StatusSuggested, StatusConfirmed}, reason)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.notifier.AppointmentStatusChanged(ctx, updated, appt.Status)

	return updated, nil
}

// CompleteAppointment moves a confirmed appointment to completed, optionally
// attaching treatment notes. Terminal; dentist action.
func (s *Service) CompleteAppointment(ctx context.Context, actor clinic.Actor, id uuid.UUID, treatmentNotes *string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeDentist(actor, appt.DentistID); err != nil {
		return nil, err
	}
	if appt.Status != StatusConfirmed {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.CompleteAppointment(ctx, id, treatmentNotes)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	s.notifier.AppointmentStatusChanged(ctx, updated, appt.Status)

	return updated, nil
}

// RescheduleAppointment is the dentist-initiated "suggest new time": the
// original row is cancelled with a system reason naming the new time and a
// fresh pending row is inserted carrying patient, dentist, service and the
// snapshotted cost. Both writes happen in one transaction.
func (s *Service) RescheduleAppointment(ctx context.Context, actor clinic.Actor, id uuid.UUID, newStart time.Time) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeDentist(actor, appt.DentistID); err != nil {
		return nil, err
	}
	if appt.Status == StatusCompleted || appt.Status == StatusCancelled {
		return nil, ErrInvalidStatusTransition
	}

	start := newStart.In(s.loc)
	if !start.After(s.now()) {
		return nil, &clinic.ValidationError{Field: "new_start_time", Reason: "must be in the future"}
	}

	day := s.day(start)
	end := start.Add(time.Duration(appt.DurationMinutes) * time.Minute)
	want, ok := spanWithinDay(day, start, end)
	if !ok || !s.day(end.Add(-time.Nanosecond)).Equal(day) {
		return nil, &clinic.ValidationError{Field: "new_start_time", Reason: "appointment must fit within a single day"}
	}

	cancelReason := fmt.Sprintf("rescheduled by dentist to %s", start.Format("2006-01-02 15:04"))

	var replacement *Appointment

	err = s.locker.WithCalendarLock(ctx, appt.DentistID, day, func(lockCtx context.Context) error {
		// The original still occupies its interval until the transaction
		// below cancels it, so it is excluded from the busy set.
		free, err := s.freeSpansForDay(lockCtx, appt.DentistID, day, appt.ID)
		if err != nil {
			return err
		}
		if !spanIsFree(free, want) {
			return ErrSlotUnavailable
		}

		created, err := s.repo.RescheduleAppointment(lockCtx, appt.ID, cancelReason, Appointment{
			PatientID:       appt.PatientID,
			DentistID:       appt.DentistID,
			ServiceID:       appt.ServiceID,
			StartTime:       start,
			DurationMinutes: appt.DurationMinutes,
			Status:          StatusPending,
			Notes:           appt.Notes,
			Cost:            appt.Cost,
		})
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return ErrInvalidStatusTransition
			}
			return fmt.Errorf("reschedule appointment: %w", err)
		}

		replacement = created
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrCalendarBusy
		}
		return nil, err
	}

	s.logger.Info().
		Str("original_id", appt.ID.String()).
		Str("replacement_id", replacement.ID.String()).
		Time("new_start", replacement.StartTime).
		Msg("appointment rescheduled")

	s.notifier.AppointmentRescheduled(ctx, appt, replacement)

	return replacement, nil
}

// GetAppointment returns a single appointment visible to the caller.
func (s *Service) GetAppointment(ctx context.Context, actor clinic.Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.ID != appt.PatientID && actor.ID != appt.DentistID {
		return nil, clinic.ErrForbidden
	}
	return appt, nil
}

func (s *Service) ListPatientAppointments(ctx context.Context, actor clinic.Actor, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if actor.Role == clinic.RolePatient && actor.ID != patientID {
		return nil, clinic.ErrForbidden
	}
	limit, offset = clampPage(limit, offset)
	return s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListDentistAppointments(ctx context.Context, actor clinic.Actor, dentistID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if actor.Role == clinic.RolePatient {
		return nil, clinic.ErrForbidden
	}
	if actor.Role == clinic.RoleDentist && actor.ID != dentistID {
		return nil, clinic.ErrForbidden
	}
	limit, offset = clampPage(limit, offset)
	return s.repo.ListAppointmentsByDentist(ctx, dentistID, limit, offset)
}

// Working hours

func (s *Service) ListWorkingHours(ctx context.Context, actor clinic.Actor, dentistID uuid.UUID) ([]WorkingHour, error) {
	return s.repo.ListWorkingHours(ctx, dentistID)
}

func (s *Service) CreateWorkingHour(ctx context.Context, actor clinic.Actor, wh WorkingHour) (*WorkingHour, error) {
	if err := s.authorizeDentist(actor, wh.DentistID); err != nil {
		return nil, err
	}
	if err := validateWorkingHour(wh); err != nil {
		return nil, err
	}
	if _, err := s.directory.GetDentistByID(ctx, wh.DentistID); err != nil {
		return nil, err
	}
	return s.repo.CreateWorkingHour(ctx, wh)
}

func (s *Service) UpdateWorkingHour(ctx context.Context, actor clinic.Actor, wh WorkingHour) (*WorkingHour, error) {
	if err := s.authorizeDentist(actor, wh.DentistID); err != nil {
		return nil, err
	}
	if err := validateWorkingHour(wh); err != nil {
		return nil, err
	}
	return s.repo.UpdateWorkingHour(ctx, wh)
}

func (s *Service) DeleteWorkingHour(ctx context.Context, actor clinic.Actor, dentistID, id uuid.UUID) error {
	if err := s.authorizeDentist(actor, dentistID); err != nil {
		return err
	}
	return s.repo.DeleteWorkingHour(ctx, dentistID, id)
}

// Blocked dates

func (s *Service) ListBlockedDates(ctx context.Context, actor clinic.Actor, dentistID uuid.UUID) ([]BlockedDate, error) {
	return s.repo.ListBlockedDates(ctx, dentistID, s.day(s.now()))
}

func (s *Service) CreateBlockedDate(ctx context.Context, actor clinic.Actor, bd BlockedDate) (*BlockedDate, error) {
	if err := s.authorizeDentist(actor, bd.DentistID); err != nil {
		return nil, err
	}

	bd.Date = s.day(bd.Date)
	if bd.Date.Before(s.day(s.now())) {
		return nil, &clinic.ValidationError{Field: "blocked_date", Reason: "must not be in the past"}
	}
	if (bd.StartMinute == nil) != (bd.EndMinute == nil) {
		return nil, &clinic.ValidationError{Field: "start_time", Reason: "partial blocks need both start and end"}
	}
	if bd.StartMinute != nil {
		if *bd.StartMinute < 0 || *bd.EndMinute > minutesPerDay || *bd.StartMinute >= *bd.EndMinute {
			return nil, &clinic.ValidationError{Field: "start_time", Reason: "block interval is invalid"}
		}
	}
	if _, err := s.directory.GetDentistByID(ctx, bd.DentistID); err != nil {
		return nil, err
	}

	return s.repo.CreateBlockedDate(ctx, bd)
}

func (s *Service) DeleteBlockedDate(ctx context.Context, actor clinic.Actor, dentistID, id uuid.UUID) error {
	if err := s.authorizeDentist(actor, dentistID); err != nil {
		return err
	}
	return s.repo.DeleteBlockedDate(ctx, dentistID, id)
}

// SendDueReminders is called periodically by the reminder worker. It scans
// for confirmed appointments starting within the window and dispatches one
// reminder each. Notification failures are logged by the notifier, never
// propagated.
func (s *Service) SendDueReminders(ctx context.Context, window time.Duration) error {
	now := s.now()
	due, err := s.repo.FindDueReminders(ctx, now, now.Add(window))
	if err != nil {
		return fmt.Errorf("find due reminders: %w", err)
	}

	for i := range due {
		appt := &due[i]
		s.notifier.AppointmentReminder(ctx, appt)
		if err := s.repo.MarkReminded(ctx, appt.ID, now); err != nil {
			s.logger.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to mark appointment reminded")
		}
	}

	if len(due) > 0 {
		s.logger.Info().Int("count", len(due)).Msg("reminders dispatched")
	}

	return nil
}

func (s *Service) authorizeDentist(actor clinic.Actor, dentistID uuid.UUID) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.Role == clinic.RoleDentist && actor.ID == dentistID {
		return nil
	}
	return clinic.ErrForbidden
}

// spanIsFree reports whether want lies fully inside one of the free spans.
func spanIsFree(free []Span, want Span) bool {
	for _, f := range free {
		if f.Contains(want) {
			return true
		}
	}
	return false
}

func validateWorkingHour(wh WorkingHour) error {
	if wh.Weekday < time.Sunday || wh.Weekday > time.Saturday {
		return &clinic.ValidationError{Field: "day_of_week", Reason: "must be 0 through 6"}
	}
	if wh.StartMinute < 0 || wh.EndMinute > minutesPerDay {
		return &clinic.ValidationError{Field: "start_time", Reason: "must lie within the day"}
	}
	if wh.StartMinute >= wh.EndMinute {
		return &clinic.ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}
	return nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
