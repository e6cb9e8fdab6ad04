package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentexa/clinic-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, 0)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	dentistIDs, err := seedDentists(context.Background(), pool, 20)
	if err != nil {
		log.Fatalf("seed dentists: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedServices(context.Background(), pool); err != nil {
		log.Fatalf("seed services: %v", err)
	}
	if err := seedWorkingHours(context.Background(), pool, dentistIDs); err != nil {
		log.Fatalf("seed working hours: %v", err)
	}
	if err := seedBlockedDates(context.Background(), pool, dentistIDs); err != nil {
		log.Fatalf("seed blocked dates: %v", err)
	}

	log.Println("seed complete")
}

func seedDentists(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d dentists", count)

	specialties := []string{
		"General Dentistry",
		"Orthodontics",
		"Periodontics",
		"Endodontics",
		"Oral Surgery",
		"Pediatric Dentistry",
		"Prosthodontics",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO dentists (id, name, specialty, email, phone, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
		`, id, name, spec, gofakeit.Email(), gofakeit.Phone())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("dentists seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, phone, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, uuid.New(), gofakeit.Name(), gofakeit.Email(), gofakeit.Phone())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

func seedServices(ctx context.Context, pool *pgxpool.Pool) error {
	services := []struct {
		name     string
		category string
		price    float64
		duration int
	}{
		{"Checkup & Cleaning", "preventive", 90, 30},
		{"Dental X-Ray", "diagnostic", 60, 15},
		{"Composite Filling", "restorative", 180, 45},
		{"Root Canal", "endodontic", 650, 90},
		{"Tooth Extraction", "surgical", 220, 45},
		{"Crown Fitting", "restorative", 850, 60},
		{"Teeth Whitening", "cosmetic", 300, 60},
		{"Orthodontic Consultation", "orthodontic", 120, 30},
	}

	log.Printf("seeding %d services", len(services))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, s := range services {
		_, err := tx.Exec(ctx, `
			INSERT INTO services (id, name, category, price, duration_minutes, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, true, now(), now())
		`, uuid.New(), s.name, s.category, s.price, s.duration)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("services seeded")
	return nil
}

// seedWorkingHours gives every dentist a Mon-Fri schedule split around a
// lunch break, 09:00-13:00 and 14:00-17:00.
func seedWorkingHours(ctx context.Context, pool *pgxpool.Pool, dentistIDs []uuid.UUID) error {
	log.Printf("seeding working hours for %d dentists", len(dentistIDs))

	spans := []struct{ start, end int }{
		{9 * 60, 13 * 60},
		{14 * 60, 17 * 60},
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, dentistID := range dentistIDs {
		for weekday := int(time.Monday); weekday <= int(time.Friday); weekday++ {
			for _, span := range spans {
				_, err := tx.Exec(ctx, `
					INSERT INTO working_hours (id, dentist_id, day_of_week, start_minute, end_minute, is_active, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, true, now(), now())
				`, uuid.New(), dentistID, weekday, span.start, span.end)
				if err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("working hours seeded")
	return nil
}

// seedBlockedDates gives a few dentists a full-day block next week.
func seedBlockedDates(ctx context.Context, pool *pgxpool.Pool, dentistIDs []uuid.UUID) error {
	n := len(dentistIDs) / 4
	if n == 0 {
		n = 1
	}
	log.Printf("seeding blocked dates for %d dentists", n)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < n; i++ {
		day := time.Now().AddDate(0, 0, gofakeit.Number(3, 10))
		_, err := tx.Exec(ctx, `
			INSERT INTO blocked_dates (id, dentist_id, blocked_date, start_minute, end_minute, reason, created_at)
			VALUES ($1, $2, $3, NULL, NULL, $4, now())
		`, uuid.New(), dentistIDs[i], day.Format("2006-01-02"), "conference")
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("blocked dates seeded")
	return nil
}
