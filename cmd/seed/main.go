package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/sehatkor/care-gateway/internal/db"
)

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

var cities = []string{"Karachi", "Lahore", "Islamabad", "Rawalpindi", "Faisalabad", "Multan", "Peshawar", "Quetta"}

// cityCenters anchor seeded emergency requests to plausible coordinates.
var cityCenters = map[string][2]float64{
	"Karachi":    {24.8607, 67.0011},
	"Lahore":     {31.5204, 74.3587},
	"Islamabad":  {33.6844, 73.0479},
	"Rawalpindi": {33.5651, 73.0169},
	"Faisalabad": {31.4504, 73.1350},
	"Multan":     {30.1575, 71.5249},
	"Peshawar":   {34.0151, 71.5249},
	"Quetta":     {30.1798, 66.9750},
}

func main() {
	log.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	seedCtx := context.Background()

	patients, err := seedPatients(seedCtx, pool, 2000)
	if err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}
	doctors, nurses, err := seedProviders(seedCtx, pool, 60, 40)
	if err != nil {
		log.Fatal().Err(err).Msg("seed providers")
	}
	if err := seedAppointments(seedCtx, pool, patients, doctors, 500); err != nil {
		log.Fatal().Err(err).Msg("seed appointments")
	}
	if err := seedEmergencies(seedCtx, pool, patients, 80); err != nil {
		log.Fatal().Err(err).Msg("seed emergency requests")
	}

	log.Info().Int("nurses", len(nurses)).Msg("seed complete")
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500
	ids := make([]uuid.UUID, 0, count)

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			city := cities[gofakeit.Number(0, len(cities)-1)]

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, city, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, id, gofakeit.Name(), gofakeit.Email(), city)
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		log.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return ids, nil
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, doctorCount, nurseCount int) (doctors, nurses []uuid.UUID, err error) {
	log.Info().Int("doctors", doctorCount).Int("nurses", nurseCount).Msg("seeding providers")

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Gynecology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	insert := func(kind string, specialty *string, radius *float64) (uuid.UUID, error) {
		id := uuid.New()
		city := cities[gofakeit.Number(0, len(cities)-1)]
		// roughly 1 in 10 providers is still pending approval
		approved := gofakeit.Number(0, 9) > 0

		_, err := tx.Exec(ctx, `
			INSERT INTO providers (id, name, kind, specialty, approved, home_visit_radius_km, city, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		`, id, gofakeit.Name(), kind, specialty, approved, radius, city)
		return id, err
	}

	for i := 0; i < doctorCount; i++ {
		specialty := specialties[gofakeit.Number(0, len(specialties)-1)]
		id, err := insert("doctor", &specialty, nil)
		if err != nil {
			return nil, nil, err
		}
		doctors = append(doctors, id)
	}

	for i := 0; i < nurseCount; i++ {
		var radius *float64
		if gofakeit.Bool() {
			r := float64(gofakeit.Number(5, 25))
			radius = &r
		}
		id, err := insert("nurse", nil, radius)
		if err != nil {
			return nil, nil, err
		}
		nurses = append(nurses, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	log.Info().Msg("providers seeded")
	return doctors, nurses, nil
}

func seedAppointments(ctx context.Context, pool *pgxpool.Pool, patients, doctors []uuid.UUID, count int) error {
	log.Info().Int("count", count).Msg("seeding appointments")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		patient := patients[gofakeit.Number(0, len(patients)-1)]
		doctor := doctors[gofakeit.Number(0, len(doctors)-1)]

		date := time.Now().AddDate(0, 0, gofakeit.Number(0, 14)).Format("2006-01-02")
		hour := gofakeit.Number(9, 20)
		minute := []int{0, 15, 30, 45}[gofakeit.Number(0, 3)]
		clock := time.Date(2000, 1, 1, hour, minute, 0, 0, time.UTC).Format("3:04 PM")

		consultation := "online"
		if gofakeit.Number(0, 2) == 0 {
			consultation = "in_person"
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO appointments (id, provider_id, patient_id, appointment_date, appointment_time,
				consultation_type, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'scheduled', now(), now())
			ON CONFLICT DO NOTHING
		`, uuid.New(), doctor, patient, date, clock, consultation)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Info().Msg("appointments seeded")
	return nil
}

func seedEmergencies(ctx context.Context, pool *pgxpool.Pool, patients []uuid.UUID, count int) error {
	log.Info().Int("count", count).Msg("seeding emergency requests")

	urgencies := []string{"critical", "within_1_hour", "scheduled"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		patient := patients[gofakeit.Number(0, len(patients)-1)]
		city := cities[gofakeit.Number(0, len(cities)-1)]
		center := cityCenters[city]

		// scatter within roughly 0.1 degrees of the city center
		lat := center[0] + gofakeit.Float64Range(-0.1, 0.1)
		lng := center[1] + gofakeit.Float64Range(-0.1, 0.1)
		address := fmt.Sprintf("%s, %s", gofakeit.Street(), city)

		_, err := tx.Exec(ctx, `
			INSERT INTO emergency_requests (id, patient_id, patient_name, latitude, longitude,
				urgency, status, address, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'open', $7, now(), now())
		`, uuid.New(), patient, gofakeit.Name(), lat, lng,
			urgencies[gofakeit.Number(0, len(urgencies)-1)], address)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Info().Msg("emergency requests seeded")
	return nil
}
