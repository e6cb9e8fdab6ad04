package clinic

import (
	"context"
	"errors"
	"fmt"

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

func scanDentist(row pgx.Row) (*Dentist, error) {
	var d Dentist

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialty,
		&d.Email,
		&d.Phone,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDentistNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanService(row pgx.Row) (*Service, error) {
	var s Service

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Category,
		&s.Price,
		&s.DurationMinutes,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}

	return &s, nil
}

// Dentists

func (r *PgRepository) GetDentistByID(ctx context.Context, id uuid.UUID) (*Dentist, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, email, phone, created_at, updated_at
		FROM dentists
		WHERE id = $1
	`, id)
	return scanDentist(row)
}

func (r *PgRepository) ListDentists(ctx context.Context, limit, offset int) ([]Dentist, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialty, email, phone, created_at, updated_at
		FROM dentists
		ORDER BY name
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Dentist
	for rows.Next() {
		d, err := scanDentist(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	return result, rows.Err()
}

func (r *PgRepository) CreateDentist(ctx context.Context, d Dentist) (*Dentist, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO dentists (id, name, specialty, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id, name, specialty, email, phone, created_at, updated_at
	`, id, d.Name, d.Specialty, d.Email, d.Phone)

	return scanDentist(row)
}

func (r *PgRepository) UpdateDentist(ctx context.Context, d Dentist) (*Dentist, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE dentists
		SET name = $2,
		    specialty = $3,
		    email = $4,
		    phone = $5,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, name, specialty, email, phone, created_at, updated_at
	`, d.ID, d.Name, d.Specialty, d.Email, d.Phone)

	return scanDentist(row)
}

// DeleteDentist performs the cascade explicitly instead of relying on FK
// rules, so the same statements run regardless of schema options.
func (r *PgRepository) DeleteDentist(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM appointments WHERE dentist_id = $1`, id); err != nil {
		return fmt.Errorf("delete dentist appointments: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM working_hours WHERE dentist_id = $1`, id); err != nil {
		return fmt.Errorf("delete dentist working hours: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM blocked_dates WHERE dentist_id = $1`, id); err != nil {
		return fmt.Errorf("delete dentist blocked dates: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM dentists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete dentist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDentistNotFound
	}

	return tx.Commit(ctx)
}

// Patients

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) ListPatients(ctx context.Context, limit, offset int) ([]Patient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM patients
		ORDER BY name
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	return result, rows.Err()
}

func (r *PgRepository) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, name, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, name, email, phone, created_at, updated_at
	`, id, p.Name, p.Email, p.Phone)

	return scanPatient(row)
}

func (r *PgRepository) UpdatePatient(ctx context.Context, p Patient) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE patients
		SET name = $2,
		    email = $3,
		    phone = $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, name, email, phone, created_at, updated_at
	`, p.ID, p.Name, p.Email, p.Phone)

	return scanPatient(row)
}

func (r *PgRepository) DeletePatient(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM appointments WHERE patient_id = $1`, id); err != nil {
		return fmt.Errorf("delete patient appointments: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}

	return tx.Commit(ctx)
}

// Services

func (r *PgRepository) GetServiceByID(ctx context.Context, id uuid.UUID) (*Service, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, category, price, duration_minutes, is_active, created_at, updated_at
		FROM services
		WHERE id = $1
	`, id)
	return scanService(row)
}

func (r *PgRepository) ListServices(ctx context.Context, activeOnly bool) ([]Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, category, price, duration_minutes, is_active, created_at, updated_at
		FROM services
		WHERE NOT $1 OR is_active
		ORDER BY name
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	return result, rows.Err()
}

func (r *PgRepository) CreateService(ctx context.Context, s Service) (*Service, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO services (id, name, category, price, duration_minutes, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, name, category, price, duration_minutes, is_active, created_at, updated_at
	`, id, s.Name, s.Category, s.Price, s.DurationMinutes, s.IsActive)

	return scanService(row)
}

func (r *PgRepository) UpdateService(ctx context.Context, s Service) (*Service, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE services
		SET name = $2,
		    category = $3,
		    price = $4,
		    duration_minutes = $5,
		    is_active = $6,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, name, category, price, duration_minutes, is_active, created_at, updated_at
	`, s.ID, s.Name, s.Category, s.Price, s.DurationMinutes, s.IsActive)

	return scanService(row)
}

func (r *PgRepository) DeleteService(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM appointments WHERE service_id = $1`, id); err != nil {
		return fmt.Errorf("delete service appointments: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServiceNotFound
	}

	return tx.Commit(ctx)
}

// Stats

func (r *PgRepository) GetStats(ctx context.Context) (*Stats, error) {
	st := &Stats{AppointmentsByStatus: make(map[string]int)}

	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM dentists),
			(SELECT count(*) FROM patients),
			(SELECT count(*) FROM services WHERE is_active),
			(SELECT COALESCE(sum(cost), 0) FROM appointments WHERE status = 'completed'),
			(SELECT COALESCE(sum(cost), 0) FROM appointments WHERE status = 'completed' AND is_paid)
	`).Scan(&st.Dentists, &st.Patients, &st.ActiveServices, &st.CompletedRevenue, &st.CompletedPaidRevenue)
	if err != nil {
		return nil, fmt.Errorf("stats totals: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT status, count(*)
		FROM appointments
		GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("stats by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		st.AppointmentsByStatus[status] = n
	}

	return st, rows.Err()
}
