package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

const appointmentColumns = `id, patient_id, dentist_id, service_id, start_time, duration_minutes,
	status, notes, treatment_notes, cost, cancellation_reason, is_paid, reminded_at,
	created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DentistID,
		&a.ServiceID,
		&a.StartTime,
		&a.DurationMinutes,
		&a.Status,
		&a.Notes,
		&a.TreatmentNotes,
		&a.Cost,
		&a.CancellationReason,
		&a.IsPaid,
		&a.RemindedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanWorkingHour(row pgx.Row) (*WorkingHour, error) {
	var wh WorkingHour
	var weekday int

	err := row.Scan(
		&wh.ID,
		&wh.DentistID,
		&weekday,
		&wh.StartMinute,
		&wh.EndMinute,
		&wh.IsActive,
		&wh.CreatedAt,
		&wh.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkingHourNotFound
		}
		return nil, err
	}

	wh.Weekday = time.Weekday(weekday)
	return &wh, nil
}

func scanBlockedDate(row pgx.Row) (*BlockedDate, error) {
	var bd BlockedDate

	err := row.Scan(
		&bd.ID,
		&bd.DentistID,
		&bd.Date,
		&bd.StartMinute,
		&bd.EndMinute,
		&bd.Reason,
		&bd.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockedDateNotFound
		}
		return nil, err
	}

	return &bd, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	return result, rows.Err()
}

// Working hours

func (r *PgRepository) ListWorkingHours(ctx context.Context, dentistID uuid.UUID) ([]WorkingHour, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, dentist_id, day_of_week, start_minute, end_minute, is_active, created_at, updated_at
		FROM working_hours
		WHERE dentist_id = $1
		ORDER BY day_of_week, start_minute
	`, dentistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WorkingHour
	for rows.Next() {
		wh, err := scanWorkingHour(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *wh)
	}

	return result, rows.Err()
}

func (r *PgRepository) ListActiveWorkingHours(ctx context.Context, dentistID uuid.UUID, weekday time.Weekday) ([]WorkingHour, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, dentist_id, day_of_week, start_minute, end_minute, is_active, created_at, updated_at
		FROM working_hours
		WHERE dentist_id = $1 AND day_of_week = $2 AND is_active
		ORDER BY start_minute
	`, dentistID, int(weekday))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WorkingHour
	for rows.Next() {
		wh, err := scanWorkingHour(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *wh)
	}

	return result, rows.Err()
}

func (r *PgRepository) CreateWorkingHour(ctx context.Context, wh WorkingHour) (*WorkingHour, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO working_hours (id, dentist_id, day_of_week, start_minute, end_minute, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, dentist_id, day_of_week, start_minute, end_minute, is_active, created_at, updated_at
	`, id, wh.DentistID, int(wh.Weekday), wh.StartMinute, wh.EndMinute, wh.IsActive)

	return scanWorkingHour(row)
}

func (r *PgRepository) UpdateWorkingHour(ctx context.Context, wh WorkingHour) (*WorkingHour, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE working_hours
		SET day_of_week = $3,
		    start_minute = $4,
		    end_minute = $5,
		    is_active = $6,
		    updated_at = now()
		WHERE id = $1 AND dentist_id = $2
		RETURNING id, dentist_id, day_of_week, start_minute, end_minute, is_active, created_at, updated_at
	`, wh.ID, wh.DentistID, int(wh.Weekday), wh.StartMinute, wh.EndMinute, wh.IsActive)

	return scanWorkingHour(row)
}

func (r *PgRepository) DeleteWorkingHour(ctx context.Context, dentistID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM working_hours WHERE id = $1 AND dentist_id = $2
	`, id, dentistID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkingHourNotFound
	}
	return nil
}

// Blocked dates

func (r *PgRepository) ListBlockedDates(ctx context.Context, dentistID uuid.UUID, from time.Time) ([]BlockedDate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, dentist_id, blocked_date, start_minute, end_minute, reason, created_at
		FROM blocked_dates
		WHERE dentist_id = $1 AND blocked_date >= $2
		ORDER BY blocked_date, start_minute NULLS FIRST
	`, dentistID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BlockedDate
	for rows.Next() {
		bd, err := scanBlockedDate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *bd)
	}

	return result, rows.Err()
}

func (r *PgRepository) ListBlockedDatesForDay(ctx context.Context, dentistID uuid.UUID, day time.Time) ([]BlockedDate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, dentist_id, blocked_date, start_minute, end_minute, reason, created_at
		FROM blocked_dates
		WHERE dentist_id = $1 AND blocked_date = $2
		ORDER BY start_minute NULLS FIRST
	`, dentistID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BlockedDate
	for rows.Next() {
		bd, err := scanBlockedDate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *bd)
	}

	return result, rows.Err()
}

func (r *PgRepository) CreateBlockedDate(ctx context.Context, bd BlockedDate) (*BlockedDate, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO blocked_dates (id, dentist_id, blocked_date, start_minute, end_minute, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id, dentist_id, blocked_date, start_minute, end_minute, reason, created_at
	`, id, bd.DentistID, bd.Date, bd.StartMinute, bd.EndMinute, bd.Reason)

	return scanBlockedDate(row)
}

func (r *PgRepository) DeleteBlockedDate(ctx context.Context, dentistID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM blocked_dates WHERE id = $1 AND dentist_id = $2
	`, id, dentistID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBlockedDateNotFound
	}
	return nil
}

// Appointments

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveAppointments(ctx context.Context, dentistID uuid.UUID, dayStart, dayEnd time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE dentist_id = $1
		  AND status = ANY($2)
		  AND start_time < $4
		  AND start_time + make_interval(mins => duration_minutes) > $3
		ORDER BY start_time
	`, dentistID, statusStrings(ActiveStatuses), dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsByDentist(ctx context.Context, dentistID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE dentist_id = $1
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3
	`, dentistID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// guardedAppointmentInsert is an insert that re-checks slot freedom in the
// same statement: the row only lands when no active appointment for the
// dentist overlaps the half-open interval [start, start+duration). The Redis
// lock is the primary serializer; this guard catches a booker whose critical
// section outlived the lock TTL.
const guardedAppointmentInsert = `
	INSERT INTO appointments (id, patient_id, dentist_id, service_id, start_time, duration_minutes,
		status, notes, cost, is_paid, created_at, updated_at)
	SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now()
	WHERE NOT EXISTS (
		SELECT 1 FROM appointments
		WHERE dentist_id = $3
		  AND status = ANY($11)
		  AND start_time < $5::timestamptz + make_interval(mins => $6::int)
		  AND start_time + make_interval(mins => duration_minutes) > $5::timestamptz
	)
	RETURNING ` + appointmentColumns

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, guardedAppointmentInsert,
		id, a.PatientID, a.DentistID, a.ServiceID, a.StartTime, a.DurationMinutes,
		a.Status, a.Notes, a.Cost, a.IsPaid, statusStrings(ActiveStatuses))

	created, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrSlotUnavailable
	}
	return created, err
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($3)
		RETURNING `+appointmentColumns+`
	`, id, to, statusStrings(from))

	return scanAppointment(row)
}

func (r *PgRepository) CancelAppointment(ctx context.Context, id uuid.UUID, from []AppointmentStatus, reason string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    cancellation_reason = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($4)
		RETURNING `+appointmentColumns+`
	`, id, StatusCancelled, reason, statusStrings(from))

	return scanAppointment(row)
}

func (r *PgRepository) CompleteAppointment(ctx context.Context, id uuid.UUID, treatmentNotes *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    treatment_notes = COALESCE($3, treatment_notes),
		    updated_at = now()
		WHERE id = $1
		  AND status = $4
		RETURNING `+appointmentColumns+`
	`, id, StatusCompleted, treatmentNotes, StatusConfirmed)

	return scanAppointment(row)
}

// RescheduleAppointment cancels the original and inserts the replacement in
// one transaction, so callers never observe a calendar with neither row.
func (r *PgRepository) RescheduleAppointment(ctx context.Context, originalID uuid.UUID, cancelReason string, replacement Appointment) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    cancellation_reason = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($4)
		RETURNING `+appointmentColumns+`
	`, originalID, StatusCancelled, cancelReason, statusStrings([]AppointmentStatus{StatusPending, StatusSuggested, StatusConfirmed}))
	if _, err := scanAppointment(row); err != nil {
		return nil, fmt.Errorf("cancel original appointment: %w", err)
	}

	id := replacement.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	// The original was cancelled above in this transaction, so the overlap
	// guard no longer counts it against the replacement's interval.
	row = tx.QueryRow(ctx, guardedAppointmentInsert,
		id, replacement.PatientID, replacement.DentistID, replacement.ServiceID,
		replacement.StartTime, replacement.DurationMinutes, replacement.Status,
		replacement.Notes, replacement.Cost, replacement.IsPaid, statusStrings(ActiveStatuses))

	created, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrSlotUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("insert replacement appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return created, nil
}

// Reminder worker

func (r *PgRepository) FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = $1
		  AND reminded_at IS NULL
		  AND start_time >= $2
		  AND start_time < $3
		ORDER BY start_time
	`, StatusConfirmed, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET reminded_at = $2
		WHERE id = $1
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func statusStrings(in []AppointmentStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
