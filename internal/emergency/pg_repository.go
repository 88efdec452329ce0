package emergency

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) CreateRequest(ctx context.Context, req Request) (*Request, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO emergency_requests (id, patient_id, patient_name, latitude, longitude,
			urgency, status, address, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING id, patient_id, patient_name, latitude, longitude, urgency, status,
			address, notes, created_at, updated_at
	`, id, req.PatientID, req.PatientName, req.Latitude, req.Longitude,
		req.Urgency, req.Status, req.Address, req.Notes)

	var created Request
	err := row.Scan(
		&created.ID,
		&created.PatientID,
		&created.PatientName,
		&created.Latitude,
		&created.Longitude,
		&created.Urgency,
		&created.Status,
		&created.Address,
		&created.Notes,
		&created.CreatedAt,
		&created.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &created, nil
}
