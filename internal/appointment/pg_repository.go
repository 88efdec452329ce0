package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sehatkor/care-gateway/internal/chatwindow"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.City,
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

func scanProvider(row pgx.Row) (*Provider, error) {
	var pr Provider

	err := row.Scan(
		&pr.ID,
		&pr.Name,
		&pr.Kind,
		&pr.Specialty,
		&pr.Approved,
		&pr.HomeVisitRadiusKm,
		&pr.City,
		&pr.CreatedAt,
		&pr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	return &pr, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.ProviderID,
		&a.PatientID,
		&a.AppointmentDate,
		&a.AppointmentTime,
		&a.ConsultationType,
		&a.Status,
		&a.ChatRoomID,
		&a.ReminderSentAt,
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

const appointmentColumns = `id, provider_id, patient_id, appointment_date, appointment_time,
	consultation_type, status, chat_room_id, reminder_sent_at, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, city, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, kind, specialty, approved, home_visit_radius_km, city, created_at, updated_at
		FROM providers
		WHERE id = $1
	`, id)
	return scanProvider(row)
}

// NurseProfile implements the emergency router's approval/radius lookup.
func (r *PgRepository) NurseProfile(ctx context.Context, id uuid.UUID) (bool, *float64, error) {
	var approved bool
	var radius *float64

	err := r.pool.QueryRow(ctx, `
		SELECT approved, home_visit_radius_km
		FROM providers
		WHERE id = $1 AND kind = 'nurse'
	`, id).Scan(&approved, &radius)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil, ErrProviderNotFound
		}
		return false, nil, err
	}

	return approved, radius, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetScheduledAppointment(ctx context.Context, providerID uuid.UUID, date, clock string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND appointment_date = $2
		  AND appointment_time = $3
		  AND status = 'scheduled'
	`, providerID, date, clock)
	return scanAppointment(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, provider_id, patient_id, appointment_date, appointment_time,
			consultation_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'scheduled', now(), now())
		RETURNING `+appointmentColumns+`
	`, id, a.ProviderID, a.PatientID, a.AppointmentDate, a.AppointmentTime, a.ConsultationType)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to chatwindow.AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.provider_id, a.patient_id, a.appointment_date, a.appointment_time,
		       a.consultation_type, a.status, a.chat_room_id, a.reminder_sent_at, a.created_at, a.updated_at,
		       p.id, p.name, p.kind, p.specialty, p.approved, p.home_visit_radius_km, p.city, p.created_at, p.updated_at
		FROM appointments a
		JOIN providers p ON p.id = a.provider_id
		WHERE a.patient_id = $1
		ORDER BY a.appointment_date DESC, a.created_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		var d AppointmentDetail
		var pr Provider

		err := rows.Scan(
			&d.ID, &d.ProviderID, &d.PatientID, &d.AppointmentDate, &d.AppointmentTime,
			&d.ConsultationType, &d.Status, &d.ChatRoomID, &d.ReminderSentAt, &d.CreatedAt, &d.UpdatedAt,
			&pr.ID, &pr.Name, &pr.Kind, &pr.Specialty, &pr.Approved, &pr.HomeVisitRadiusKm, &pr.City, &pr.CreatedAt, &pr.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		d.Provider = &pr
		result = append(result, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// EnsureChatRoom assigns a chat room to an appointment exactly once.
func (r *PgRepository) EnsureChatRoom(ctx context.Context, appointmentID uuid.UUID) (uuid.UUID, error) {
	roomID := uuid.New()

	var assigned uuid.UUID
	err := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET chat_room_id = COALESCE(chat_room_id, $2),
		    updated_at = now()
		WHERE id = $1
		RETURNING chat_room_id
	`, appointmentID, roomID).Scan(&assigned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrAppointmentNotFound
		}
		return uuid.Nil, err
	}

	return assigned, nil
}

func (r *PgRepository) FindUnremindedOnline(ctx context.Context, fromDate string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'scheduled'
		  AND consultation_type = 'online'
		  AND reminder_sent_at IS NULL
		  AND appointment_date >= $1
	`, fromDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent_at = $2,
		    updated_at = now()
		WHERE id = $1
		  AND reminder_sent_at IS NULL
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
